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
	"fmt"
	"strings"
	"sync"
)

// PeerAddress is the 6-byte hardware address of a radio peer.
type PeerAddress [6]byte

// String formats the address in the usual colon-separated hex form.
func (a PeerAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		a[0], a[1], a[2], a[3], a[4], a[5])
}

// ParsePeerAddress parses a colon-separated hex address such as
// "aa:bb:cc:dd:ee:ff".
func ParsePeerAddress(s string) (PeerAddress, error) {
	var addr PeerAddress
	parts := strings.Split(s, ":")
	if len(parts) != len(addr) {
		return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	for i, part := range parts {
		var b byte
		if len(part) != 2 {
			return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		if _, err := fmt.Sscanf(part, "%02x", &b); err != nil {
			return addr, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
		}
		addr[i] = b
	}
	return addr, nil
}

// peerAddressAt copies a wire-order address out of a byte slice.
func peerAddressAt(p []byte) PeerAddress {
	var addr PeerAddress
	copy(addr[:], p)
	return addr
}

// DeliveryHandler receives packets arriving from the air. The radio
// invokes it from its own execution context; implementations must not
// retain payload beyond the call.
type DeliveryHandler func(source PeerAddress, payload []byte)

// Radio is the narrow contract to the wireless subsystem. Driver
// initialization, role and channel configuration, and peer-table
// storage are entirely the radio's concern; the engine only ever
// pushes payloads in and receives deliveries out.
type Radio interface {
	// Send transmits payload to the peer at dest. There is no
	// acknowledgment at this layer; an error means the radio refused
	// the frame, not that the peer missed it.
	Send(dest PeerAddress, payload []byte) error

	// RegisterPeer adds a peer address on the given channel to the
	// radio's peer table.
	RegisterPeer(addr PeerAddress, channel byte) error

	// SetDeliveryHandler registers the callback invoked for every
	// packet received from the air.
	SetDeliveryHandler(handler DeliveryHandler)
}

// Restarter is the irrecoverable restart primitive. The engine invokes
// it on the fatal error paths and makes no attempt to continue
// afterwards; a real device reboots, a test records the call.
type Restarter interface {
	Restart()
}

// RestartFunc adapts a plain function to the Restarter interface.
type RestartFunc func()

// Restart implements Restarter.
func (f RestartFunc) Restart() { f() }

// MockRadio provides a Radio implementation for testing. It records
// every send and peer registration and lets tests inject deliveries.
type MockRadio struct {
	mu      sync.Mutex
	handler DeliveryHandler
	sends   []MockSend
	peers   []MockPeer
	sendErr error
}

// MockSend is one recorded Send call.
type MockSend struct {
	Dest    PeerAddress
	Payload []byte
}

// MockPeer is one recorded RegisterPeer call.
type MockPeer struct {
	Addr    PeerAddress
	Channel byte
}

// NewMockRadio creates a new mock radio.
func NewMockRadio() *MockRadio {
	return &MockRadio{}
}

// Send implements Radio.
func (m *MockRadio) Send(dest PeerAddress, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.sends = append(m.sends, MockSend{Dest: dest, Payload: buf})
	return nil
}

// RegisterPeer implements Radio.
func (m *MockRadio) RegisterPeer(addr PeerAddress, channel byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers = append(m.peers, MockPeer{Addr: addr, Channel: channel})
	return nil
}

// SetDeliveryHandler implements Radio.
func (m *MockRadio) SetDeliveryHandler(handler DeliveryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Deliver injects a packet as if it had arrived from the air.
func (m *MockRadio) Deliver(source PeerAddress, payload []byte) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler != nil {
		handler(source, payload)
	}
}

// SetSendError makes subsequent Send calls fail with err.
func (m *MockRadio) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// Sends returns a copy of the recorded Send calls.
func (m *MockRadio) Sends() []MockSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSend, len(m.sends))
	copy(out, m.sends)
	return out
}

// Peers returns a copy of the recorded RegisterPeer calls.
func (m *MockRadio) Peers() []MockPeer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPeer, len(m.peers))
	copy(out, m.peers)
	return out
}
