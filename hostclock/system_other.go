//go:build !linux

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

package hostclock

import (
	"errors"
	"time"
)

var errNotSupported = errors.New("setting clock is only supported on linux")

func getTime() (int64, int64, error) {
	now := time.Now()
	return now.Unix(), int64(now.Nanosecond()), nil
}

func setClock(_, _ int64) error {
	return errNotSupported
}

// Step is not supported
func Step(_ time.Duration) error {
	return errNotSupported
}
