/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tzrules reads and writes compiled time zone rule files (TZif)
// and resolves the UTC offset in force at a given instant
package tzrules

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const magicHeader = "TZif"

// sanity limit for any of the header counts
const maxCount = 1 << 20

// ErrBadData is returned for malformed rule files
var ErrBadData = errors.New("malformed time zone information")

// ErrUnsupportedVersion is returned for unknown rule file versions
var ErrUnsupportedVersion = errors.New("unsupported version")

// Header represents file header structure. Fields names are copied from doc
type Header struct {
	// A four-octet unsigned integer specifying the number of UTC/local indicators contained in the body.
	IsUtcCnt uint32
	// A four-octet unsigned integer specifying the number of standard/wall indicators contained in the body.
	IsStdCnt uint32
	// A four-octet unsigned integer specifying the number of leap second records contained in the body.
	LeapCnt uint32
	// A four-octet unsigned integer specifying the number of transition times contained in the body.
	TimeCnt uint32
	// A four-octet unsigned integer specifying the number of local time type Records contained in the body - MUST NOT be zero.
	TypeCnt uint32
	// A four-octet unsigned integer specifying the total number of octets used by the set of time zone designations contained in the body.
	CharCnt uint32
}

// ttinfo is local time type record as stored in the file
type ttinfo struct {
	Offset  int32
	IsDST   uint8
	AbbrIdx uint8
}

// Zone is a local time type: UTC offset and its name
type Zone struct {
	Offset int32 // seconds east of UTC
	IsDST  bool
	Abbrev string
}

// Transition is the instant (UTC unix seconds) at which Zone comes into force
type Transition struct {
	At   int64
	Zone Zone
}

// Table is an immutable ordered list of transitions
type Table struct {
	Transitions []Transition
	// Before is in force prior to the first transition
	Before Zone
}

// Load reads the rule table from file
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

func readHeader(r io.Reader) (byte, *Header, error) {
	// 4-byte magic "TZif", 1-byte version, then 15 bytes of padding
	p := make([]byte, 20)
	if _, err := io.ReadFull(r, p); err != nil {
		return 0, nil, ErrBadData
	}
	if string(p[:4]) != magicHeader {
		return 0, nil, ErrBadData
	}
	version := p[4]
	if version != 0 && version != '2' && version != '3' {
		return 0, nil, ErrUnsupportedVersion
	}
	var hdr Header
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return 0, nil, ErrBadData
	}
	for _, c := range []uint32{hdr.IsUtcCnt, hdr.IsStdCnt, hdr.LeapCnt, hdr.TimeCnt, hdr.TypeCnt, hdr.CharCnt} {
		if c > maxCount {
			return 0, nil, ErrBadData
		}
	}
	if hdr.TypeCnt == 0 {
		return 0, nil, fmt.Errorf("%w: zero type count", ErrBadData)
	}
	return version, &hdr, nil
}

// Parse reads the rule table in one pass.
// Version 2 and 3 files are read from their 64-bit data block, the footer is ignored.
func Parse(r io.Reader) (*Table, error) {
	version, hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return parseBody(r, hdr, 4)
	}

	// skip the whole version 1 block
	skip := int64(hdr.TimeCnt)*5 + int64(hdr.TypeCnt)*6 + int64(hdr.CharCnt) +
		int64(hdr.LeapCnt)*8 + int64(hdr.IsUtcCnt) + int64(hdr.IsStdCnt)
	if n, _ := io.CopyN(io.Discard, r, skip); n != skip {
		return nil, ErrBadData
	}
	v2, hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if v2 != version {
		return nil, fmt.Errorf("%w: version mismatch", ErrBadData)
	}
	return parseBody(r, hdr, 8)
}

func parseBody(r io.Reader, hdr *Header, timeSize int) (*Table, error) {
	times := make([]int64, hdr.TimeCnt)
	if timeSize == 4 {
		t32 := make([]int32, hdr.TimeCnt)
		if err := binary.Read(r, binary.BigEndian, t32); err != nil {
			return nil, ErrBadData
		}
		for i, t := range t32 {
			times[i] = int64(t)
		}
	} else if err := binary.Read(r, binary.BigEndian, times); err != nil {
		return nil, ErrBadData
	}

	idx := make([]byte, hdr.TimeCnt)
	if _, err := io.ReadFull(r, idx); err != nil {
		return nil, ErrBadData
	}
	types := make([]ttinfo, hdr.TypeCnt)
	if err := binary.Read(r, binary.BigEndian, types); err != nil {
		return nil, ErrBadData
	}
	chars := make([]byte, hdr.CharCnt)
	if _, err := io.ReadFull(r, chars); err != nil {
		return nil, ErrBadData
	}
	// leap seconds and indicators are not used

	zones := make([]Zone, len(types))
	for i, tt := range types {
		z, err := tt.zone(chars)
		if err != nil {
			return nil, err
		}
		zones[i] = z
	}

	t := &Table{
		Transitions: make([]Transition, len(times)),
		Before:      zones[0],
	}
	for i, at := range times {
		if i > 0 && at <= times[i-1] {
			return nil, fmt.Errorf("%w: transition %d is not after the previous one", ErrBadData, i)
		}
		if int(idx[i]) >= len(zones) {
			return nil, fmt.Errorf("%w: type index %d out of range", ErrBadData, idx[i])
		}
		t.Transitions[i] = Transition{At: at, Zone: zones[idx[i]]}
	}
	return t, nil
}

func (tt ttinfo) zone(chars []byte) (Zone, error) {
	if int(tt.AbbrIdx) >= len(chars) {
		return Zone{}, fmt.Errorf("%w: abbreviation index %d out of range", ErrBadData, tt.AbbrIdx)
	}
	end := bytes.IndexByte(chars[tt.AbbrIdx:], 0)
	if end < 0 {
		return Zone{}, fmt.Errorf("%w: unterminated abbreviation", ErrBadData)
	}
	return Zone{
		Offset: tt.Offset,
		IsDST:  tt.IsDST != 0,
		Abbrev: string(chars[tt.AbbrIdx : int(tt.AbbrIdx)+end]),
	}, nil
}

// Slice returns table with transitions strictly between from and to.
// Before of the new table is the zone in force at from.
func (t *Table) Slice(from, to int64) *Table {
	res := &Table{Before: t.Lookup(from).Current}
	for _, tr := range t.Transitions {
		if tr.At > from && tr.At < to {
			res.Transitions = append(res.Transitions, tr)
		}
	}
	return res
}

type encoded struct {
	types []ttinfo
	chars []byte
	index map[Zone]uint8
}

func (t *Table) encode() (*encoded, error) {
	e := &encoded{index: map[Zone]uint8{}}
	abbrs := map[string]int{}
	add := func(z Zone) error {
		if _, ok := e.index[z]; ok {
			return nil
		}
		if len(e.types) > math.MaxUint8 {
			return errors.New("too many local time types")
		}
		pos, ok := abbrs[z.Abbrev]
		if !ok {
			pos = len(e.chars)
			if pos > math.MaxUint8 {
				return errors.New("abbreviations do not fit")
			}
			abbrs[z.Abbrev] = pos
			e.chars = append(e.chars, z.Abbrev...)
			e.chars = append(e.chars, 0)
		}
		tt := ttinfo{Offset: z.Offset, AbbrIdx: uint8(pos)}
		if z.IsDST {
			tt.IsDST = 1
		}
		e.index[z] = uint8(len(e.types))
		e.types = append(e.types, tt)
		return nil
	}
	// type 0 is in force before the first transition
	if err := add(t.Before); err != nil {
		return nil, err
	}
	for _, tr := range t.Transitions {
		if err := add(tr.Zone); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func prepareHeader(ver byte, timeCnt int, e *encoded) []byte {
	h := new(bytes.Buffer)

	hdr := Header{
		TimeCnt: uint32(timeCnt),
		TypeCnt: uint32(len(e.types)),
		CharCnt: uint32(len(e.chars)),
	}

	h.WriteString(magicHeader)
	h.WriteByte(ver)
	padding := make([]byte, 15)
	h.Write(padding)
	_ = binary.Write(h, binary.BigEndian, hdr)
	return h.Bytes()
}

func writeBlock(f io.Writer, ver byte, times any, ts []Transition, e *encoded) error {
	if _, err := f.Write(prepareHeader(ver, len(ts), e)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, times); err != nil {
		return err
	}
	idx := make([]byte, len(ts))
	for i, tr := range ts {
		idx[i] = e.index[tr.Zone]
	}
	if _, err := f.Write(idx); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, e.types); err != nil {
		return err
	}
	_, err := f.Write(e.chars)
	return err
}

// Write encodes the table into TZif file of version 0 (32-bit only) or '2'.
// Transitions which do not fit 32 bits are left out of the version 1 block.
func Write(f io.Writer, ver byte, t *Table) error {
	if ver != 0 && ver != '2' {
		return ErrUnsupportedVersion
	}
	e, err := t.encode()
	if err != nil {
		return err
	}

	var v1 []Transition
	var t32 []int32
	for _, tr := range t.Transitions {
		if tr.At >= math.MinInt32 && tr.At <= math.MaxInt32 {
			v1 = append(v1, tr)
			t32 = append(t32, int32(tr.At))
		}
	}
	if err := writeBlock(f, ver, t32, v1, e); err != nil {
		return err
	}
	if ver != '2' {
		return nil
	}

	t64 := make([]int64, len(t.Transitions))
	for i, tr := range t.Transitions {
		t64[i] = tr.At
	}
	if err := writeBlock(f, ver, t64, t.Transitions, e); err != nil {
		return err
	}
	// empty POSIX TZ footer
	_, err = io.WriteString(f, "\n\n")
	return err
}
