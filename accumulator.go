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

import "fmt"

// Accumulator buffers inbound serial bytes between poll-loop
// iterations. It maintains two cursors over a fixed-capacity buffer:
// bytes in [0, read) are consumed, [read, fill) are unread, and
// [fill, cap) are free. The invariant read <= fill <= cap holds at all
// times. There is deliberately no sliding or circular reuse: a
// correctly speaking host never outruns the poll loop, so running out
// of space is treated as a fatal protocol failure rather than a flow
// control problem.
//
// Accumulator is not safe for concurrent use; only the poll loop may
// touch it.
type Accumulator struct {
	buf  []byte
	read int
	fill int
}

// NewAccumulator creates an accumulator with the given capacity.
func NewAccumulator(capacity int) *Accumulator {
	return &Accumulator{buf: make([]byte, capacity)}
}

// Ingest appends p to the unread region. It returns ErrBufferOverflow
// if the bytes do not fit; the accumulator is unusable afterwards and
// the caller is expected to take the restart path.
func (a *Accumulator) Ingest(p []byte) error {
	if a.fill+len(p) > len(a.buf) {
		return fmt.Errorf("%w: %d pending, %d arriving, capacity %d",
			ErrBufferOverflow, a.fill-a.read, len(p), len(a.buf))
	}
	copy(a.buf[a.fill:], p)
	a.fill += len(p)
	return nil
}

// Available returns the number of unread bytes.
func (a *Accumulator) Available() int {
	return a.fill - a.read
}

// Free returns the remaining capacity for Ingest.
func (a *Accumulator) Free() int {
	return len(a.buf) - a.fill
}

// Peek returns the unread bytes at [offset, offset+n) without moving
// the read cursor. The returned slice aliases the internal buffer and
// is valid until the next Ingest or Compact.
func (a *Accumulator) Peek(offset, n int) []byte {
	if offset+n > a.Available() {
		panic(fmt.Sprintf("accumulator: peek [%d,%d) beyond %d unread bytes",
			offset, offset+n, a.Available()))
	}
	return a.buf[a.read+offset : a.read+offset+n]
}

// Advance consumes n unread bytes. Advancing past the fill cursor is a
// caller bug, not a wire condition, and panics.
func (a *Accumulator) Advance(n int) {
	if n > a.Available() {
		panic(fmt.Sprintf("accumulator: advance %d beyond %d unread bytes",
			n, a.Available()))
	}
	a.read += n
}

// Compact resets both cursors to the buffer start once every pending
// byte has been consumed, reclaiming the full capacity. It does
// nothing while unread bytes remain.
func (a *Accumulator) Compact() {
	if a.read == a.fill {
		a.read = 0
		a.fill = 0
	}
}
