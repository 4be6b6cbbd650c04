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
	"sync"
)

// Transport is the point-to-point serial link to the host. Both
// directions share one port: the poll loop drains inbound bytes with
// ReadAvailable while the engine's serialized writer emits complete
// frames with Write.
type Transport interface {
	// ReadAvailable reads whatever bytes are currently pending into p
	// without blocking, returning 0 when nothing is waiting.
	ReadAvailable(p []byte) (int, error)

	// Write writes len(p) bytes to the host. Callers are responsible
	// for frame-level serialization; the engine funnels every frame
	// through a single lock so writes never interleave.
	Write(p []byte) (int, error)

	// Close closes the transport.
	Close() error
}

// MockTransport provides a Transport implementation for testing. Tests
// queue inbound bytes for the engine to read and inspect everything
// the engine wrote back.
type MockTransport struct {
	mu      sync.Mutex
	inbound []byte
	written []byte
	closed  bool
	readErr error
	chunk   int
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// QueueInbound appends bytes for subsequent ReadAvailable calls.
func (m *MockTransport) QueueInbound(p []byte) {
	m.mu.Lock()
	m.inbound = append(m.inbound, p...)
	m.mu.Unlock()
}

// SetReadError makes subsequent ReadAvailable calls fail with err.
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// SetChunkSize limits how many bytes a single ReadAvailable returns,
// simulating a slow host that dribbles bytes into the UART FIFO.
// Zero means no limit.
func (m *MockTransport) SetChunkSize(n int) {
	m.mu.Lock()
	m.chunk = n
	m.mu.Unlock()
}

// ReadAvailable implements Transport.
func (m *MockTransport) ReadAvailable(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	n := len(m.inbound)
	if n > len(p) {
		n = len(p)
	}
	if m.chunk > 0 && n > m.chunk {
		n = m.chunk
	}
	copy(p, m.inbound[:n])
	m.inbound = m.inbound[n:]
	return n, nil
}

// Write implements Transport.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, p...)
	return len(p), nil
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Written returns a copy of every byte written so far.
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.written))
	copy(out, m.written)
	return out
}

// ResetWritten discards the recorded outbound bytes.
func (m *MockTransport) ResetWritten() {
	m.mu.Lock()
	m.written = nil
	m.mu.Unlock()
}

// Closed reports whether Close has been called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
