// Copyright 2026 The espbridge Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package espbridge

import (
	"errors"
	"fmt"
)

// Error categories. The fatal group triggers a device restart; the
// engine never attempts to resynchronize a confused byte stream.
var (
	// Fatal protocol errors - restart the device
	ErrBufferOverflow   = errors.New("accumulator capacity exhausted")
	ErrChecksumMismatch = errors.New("payload checksum mismatch")
	ErrUnknownMarker    = errors.New("unrecognized frame marker")

	// Transport errors
	ErrTransportRead  = errors.New("transport read failed")
	ErrTransportWrite = errors.New("transport write failed")

	// Usage errors - not retryable
	ErrPayloadTooLarge = errors.New("payload exceeds 250 byte frame limit")
	ErrInvalidAddress  = errors.New("invalid peer address")
)

// FatalError wraps one of the fatal protocol errors together with the
// dispatcher operation that detected it. When Engine.Run returns a
// FatalError the restart primitive has already been invoked.
type FatalError struct {
	Err error  // Underlying fatal condition
	Op  string // Operation that detected it
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is one of the conditions that force a
// device restart.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
