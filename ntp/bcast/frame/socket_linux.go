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

package frame

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/jsimonetti/rtnetlink/rtnl"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/facebook/ntpbcast/hostendian"
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Socket is AF_PACKET socket receiving IPv4 frames of one interface
type Socket struct {
	fd    int
	efd   int
	iface *net.Interface
}

func findInterface(name string) (*net.Interface, error) {
	conn, err := rtnl.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("can't establish netlink connection: %w", err)
	}
	defer conn.Close()

	links, err := conn.Links()
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	for _, l := range links {
		if l.Name != name {
			continue
		}
		if l.Flags&net.FlagUp == 0 {
			return nil, fmt.Errorf("interface %s is down", name)
		}
		return l, nil
	}
	return nil, fmt.Errorf("interface %s not found", name)
}

// Open opens non-blocking socket bound to the interface.
// bufferCount is number of full size frames the kernel may queue.
func Open(iface string, bufferCount int) (*Socket, error) {
	ifi, err := findInterface(iface)
	if err != nil {
		return nil, err
	}
	proto := hostendian.Htons(unix.ETH_P_IP)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return nil, fmt.Errorf("creating packet socket: %w", err)
	}
	s := &Socket{fd: fd, efd: -1, iface: ifi}

	if err := unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: ifi.Index}); err != nil {
		s.Close()
		return nil, fmt.Errorf("binding to %s: %w", iface, err)
	}
	if bufferCount <= 0 {
		bufferCount = DefaultBufferCount
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, bufferCount*MaxFrameSize); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting receive buffer: %w", err)
	}
	s.efd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating eventfd: %w", err)
	}
	log.Debugf("opened packet socket on %s (index %d)", ifi.Name, ifi.Index)
	return s, nil
}

// EnableBroadcast joins the broadcast address
func (s *Socket) EnableBroadcast() error {
	mreq := &unix.PacketMreq{
		Ifindex: int32(s.iface.Index),
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    uint16(len(broadcastMAC)),
	}
	copy(mreq.Address[:], broadcastMAC)
	if err := unix.SetsockoptPacketMreq(s.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
		return fmt.Errorf("enabling broadcast: %w", err)
	}
	return nil
}

// AttachFilter installs kernel socket filter passing only UDP frames to port
func (s *Socket) AttachFilter(port uint16) error {
	raw, err := bpf.Assemble(Program(port))
	if err != nil {
		return fmt.Errorf("assembling socket filter: %w", err)
	}
	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	prog := &unix.SockFprog{Len: uint16(len(filter)), Filter: &filter[0]}
	if err := unix.SetsockoptSockFprog(s.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog); err != nil {
		return fmt.Errorf("attaching socket filter: %w", err)
	}
	return nil
}

// TryReceive implements Source
func (s *Socket) TryReceive(buf []byte) (int, error) {
	// reading statistics resets them
	st, err := unix.GetsockoptTpacketStats(s.fd, unix.SOL_PACKET, unix.PACKET_STATISTICS)
	if err != nil {
		return 0, fmt.Errorf("reading socket statistics: %w", err)
	}
	if st.Drops > 0 {
		return 0, fmt.Errorf("%w: %d", ErrFramesLost, st.Drops)
	}
	n, _, err := unix.Recvfrom(s.fd, buf, unix.MSG_TRUNC)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, ErrNoFrame
		}
		return 0, err
	}
	if n > len(buf) {
		return 0, fmt.Errorf("%w: %d bytes", ErrOversized, n)
	}
	return n, nil
}

func (s *Socket) interrupt() {
	b := make([]byte, 8)
	hostendian.Order.PutUint64(b, 1)
	if _, err := unix.Write(s.efd, b); err != nil {
		log.Warningf("failed to interrupt wait: %v", err)
	}
}

// Wait implements Source
func (s *Socket) Wait(ctx context.Context, timeout time.Duration) error {
	stop := context.AfterFunc(ctx, s.interrupt)
	defer stop()

	ms := timeout.Milliseconds()
	if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	if ms < 0 {
		ms = 0
	}
	fds := []unix.PollFd{
		{Fd: int32(s.fd), Events: unix.POLLIN},
		{Fd: int32(s.efd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, int(ms))
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("waiting for frame: %w", err)
		}
	}
	if fds[1].Revents&unix.POLLIN != 0 {
		// drain the counter
		b := make([]byte, 8)
		_, _ = unix.Read(s.efd, b)
	}
	return ctx.Err()
}

// Close implements Source
func (s *Socket) Close() error {
	var err error
	if s.efd >= 0 {
		err = unix.Close(s.efd)
		s.efd = -1
	}
	if s.fd >= 0 {
		if cerr := unix.Close(s.fd); cerr != nil {
			err = cerr
		}
		s.fd = -1
	}
	return err
}
