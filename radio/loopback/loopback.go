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

// Package loopback implements an in-process espbridge.Radio that
// reflects every transmitted payload back as a delivery from the
// destination address. It lets bridged run without radio hardware, so
// host software can be exercised against a complete bridge over a
// pseudo terminal.
package loopback

import (
	"fmt"
	"sync"
	"time"

	espbridge "github.com/espbridge/go-espbridge"
)

// Radio is a loopback espbridge.Radio. Payloads sent to a registered
// peer come back as deliveries from that peer after Delay; sends to
// unregistered peers vanish silently, which is exactly what ESP-NOW
// does without a matching peer-table entry.
type Radio struct {
	mu      sync.Mutex
	handler espbridge.DeliveryHandler
	peers   map[espbridge.PeerAddress]byte

	// Delay before a sent payload is reflected back. Emulates air
	// time; zero reflects synchronously from Send.
	Delay time.Duration
}

// New creates a loopback radio.
func New() *Radio {
	return &Radio{peers: make(map[espbridge.PeerAddress]byte)}
}

// Send implements espbridge.Radio.
func (r *Radio) Send(dest espbridge.PeerAddress, payload []byte) error {
	if len(payload) > espbridge.MaxPayloadSize {
		return fmt.Errorf("loopback: %w: %d bytes", espbridge.ErrPayloadTooLarge, len(payload))
	}
	r.mu.Lock()
	_, known := r.peers[dest]
	handler := r.handler
	delay := r.Delay
	r.mu.Unlock()
	if !known || handler == nil {
		return nil
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	if delay == 0 {
		handler(dest, buf)
		return nil
	}
	go func() {
		time.Sleep(delay)
		handler(dest, buf)
	}()
	return nil
}

// RegisterPeer implements espbridge.Radio.
func (r *Radio) RegisterPeer(addr espbridge.PeerAddress, channel byte) error {
	r.mu.Lock()
	r.peers[addr] = channel
	r.mu.Unlock()
	return nil
}

// SetDeliveryHandler implements espbridge.Radio.
func (r *Radio) SetDeliveryHandler(handler espbridge.DeliveryHandler) {
	r.mu.Lock()
	r.handler = handler
	r.mu.Unlock()
}

// PeerChannel reports the channel a peer was registered on.
func (r *Radio) PeerChannel(addr espbridge.PeerAddress) (byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.peers[addr]
	return ch, ok
}
