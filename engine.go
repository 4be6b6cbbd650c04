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
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/espbridge/go-espbridge/internal/syncutil"
)

// LinkState is the connection state of the serial link.
type LinkState int32

const (
	// LinkDisconnected is the boot state; inbound bytes are scanned
	// for the connect-handshake pattern and nothing is dispatched.
	LinkDisconnected LinkState = iota
	// LinkLive means the handshake completed and inbound bytes are
	// interpreted as command frames. The link never leaves this state
	// except through a device restart.
	LinkLive
)

// String returns a human-readable state name for logging.
func (s LinkState) String() string {
	switch s {
	case LinkDisconnected:
		return "disconnected"
	case LinkLive:
		return "live"
	default:
		return "invalid"
	}
}

// Engine is the bidirectional framing and dispatch engine of the
// bridge. One side is the host serial link, the other the radio
// subsystem; the engine owns everything in between: buffer
// accumulation, handshake detection, command dispatch, and delivery
// framing.
//
// Concurrency: the poll loop started by Run is the only goroutine that
// touches the accumulator and writes the link state. The radio's
// delivery callback runs on the radio's own goroutine and is limited
// to an atomic link-state read plus the serialized frame writer, so
// the two sides never contend on parser state.
type Engine struct {
	cfg       *Config
	transport Transport
	radio     Radio
	restarter Restarter
	indicator StatusIndicator
	acc       *Accumulator
	link      atomic.Int32
	writeMu   syncutil.Mutex
	scratch   []byte
}

// New creates an engine bridging transport and radio. The engine
// registers itself as the radio's delivery handler.
func New(transport Transport, radio Radio, opts ...Option) (*Engine, error) {
	if transport == nil {
		return nil, errors.New("espbridge: nil transport")
	}
	if radio == nil {
		return nil, errors.New("espbridge: nil radio")
	}
	e := &Engine{
		cfg:       DefaultConfig(),
		transport: transport,
		radio:     radio,
		indicator: nopIndicator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("espbridge: invalid buffer size %d", e.cfg.BufferSize)
	}
	e.acc = NewAccumulator(e.cfg.BufferSize)
	e.scratch = make([]byte, 256)
	radio.SetDeliveryHandler(e.handleDelivery)
	return e, nil
}

// LinkState returns the current link state. Safe to call from any
// goroutine.
func (e *Engine) LinkState() LinkState {
	return LinkState(e.link.Load())
}

// setLink transitions the link state and mirrors it on the indicator.
// Poll-loop only.
func (e *Engine) setLink(s LinkState) {
	e.link.Store(int32(s))
	e.indicator.SetLinkUp(s == LinkLive)
	debugf("link state -> %s", s)
}

// Run drives the poll loop until ctx is cancelled or a fatal protocol
// error occurs. On the fatal paths the restart primitive is invoked
// before Run returns the FatalError; there is no local recovery.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.PollInterval):
		}
		if err := e.poll(ctx); err != nil {
			if IsFatal(err) && e.restarter != nil {
				e.restarter.Restart()
			}
			return err
		}
	}
}

// poll performs one iteration: drain the transport into the
// accumulator, then consume whatever complete frames are pending.
func (e *Engine) poll(ctx context.Context) error {
	// A full accumulator at the top of an iteration means the host
	// outran the dispatcher with bytes that never formed consumable
	// frames. Fail hard rather than slide the window.
	if e.acc.Free() == 0 {
		return &FatalError{Op: "poll", Err: ErrBufferOverflow}
	}
	for e.acc.Free() > 0 {
		limit := min(len(e.scratch), e.acc.Free())
		n, err := e.transport.ReadAvailable(e.scratch[:limit])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransportRead, err)
		}
		if n == 0 {
			break
		}
		if err := e.acc.Ingest(e.scratch[:n]); err != nil {
			return &FatalError{Op: "ingest", Err: err}
		}
		if n < limit {
			break
		}
	}
	return e.process(ctx)
}

// process runs the handshake detector or the command dispatcher,
// depending on link state, and compacts the accumulator once it is
// fully drained.
func (e *Engine) process(ctx context.Context) error {
	if e.acc.Available() < 2 {
		return nil
	}
	if e.LinkState() != LinkLive {
		if err := e.scanHandshake(ctx); err != nil {
			return err
		}
	}
	for e.LinkState() == LinkLive && e.acc.Available() >= 2 {
		progressed, err := e.dispatchOne()
		if err != nil {
			return err
		}
		if !progressed {
			// Partial frame; wait for more bytes.
			break
		}
	}
	e.acc.Compact()
	return nil
}

// scanHandshake looks for the first full connect-handshake marker in
// the unread region. On a match it answers with the handshake-ack and
// peer-list-request frames, waits out the settling delay, and brings
// the link up. Bytes preceding the marker are line noise from before
// the host attached and are discarded with it.
//
// The peer-list request is fire and forget: no response is ever parsed
// on this side.
func (e *Engine) scanHandshake(ctx context.Context) error {
	avail := e.acc.Available()
	for off := 0; off+len(markerConnect) <= avail; off++ {
		if !matchesMarker(markerConnect, e.acc.Peek(off, len(markerConnect))) {
			continue
		}
		if err := e.writeFrame(handshakeAckFrame); err != nil {
			return err
		}
		if err := e.writeFrame(peerListRequestFrame); err != nil {
			return err
		}
		e.acc.Advance(off + len(markerConnect))
		// Give the radio side time to finish initializing before the
		// host starts pushing commands.
		if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
			return err
		}
		e.setLink(LinkLive)
		return nil
	}
	return nil
}

// dispatchOne inspects the frame at the head of the unread region and
// consumes it if it has fully arrived. It returns false with no error
// when the head frame is recognized but incomplete.
func (e *Engine) dispatchOne() (bool, error) {
	head := e.acc.Peek(0, 2)
	switch {
	case matchesMarker(markerSendMessage, head):
		return e.dispatchSendMessage()
	case matchesMarker(markerAddPeer, head):
		return e.dispatchAddPeer()
	case matchesMarker(markerConnect[:2], head):
		// Renegotiating hosts may resend handshake bytes after the
		// link is already live; skip them without side effects.
		e.acc.Advance(2)
		return true, nil
	default:
		return false, &FatalError{
			Op:  "dispatch",
			Err: fmt.Errorf("%w: % x", ErrUnknownMarker, head),
		}
	}
}

// dispatchSendMessage validates and forwards a send-message frame:
// marker, dest[6], crcLo, crcHi, size, then size payload bytes.
func (e *Engine) dispatchSendMessage() (bool, error) {
	if e.acc.Available() < 2+sendMessageHeaderLen {
		return false, nil
	}
	header := e.acc.Peek(2, sendMessageHeaderLen)
	size := int(header[8])
	total := 2 + sendMessageHeaderLen + size
	if e.acc.Available() < total {
		return false, nil
	}
	payload := e.acc.Peek(2+sendMessageHeaderLen, size)
	want := uint16(header[6]) | uint16(header[7])<<8
	if got := Checksum16(payload); got != want {
		return false, &FatalError{
			Op: "send-message",
			Err: fmt.Errorf("%w: got %04X, header says %04X",
				ErrChecksumMismatch, got, want),
		}
	}
	dest := peerAddressAt(header[:addrLen])
	if err := e.radio.Send(dest, payload); err != nil {
		// No acknowledgment exists at this layer; a refused frame is
		// logged and the stream keeps flowing.
		debugf("radio send to %s failed: %v", dest, err)
	}
	e.acc.Advance(total)
	return true, nil
}

// dispatchAddPeer forwards a peer registration: marker, addr[6],
// channel.
func (e *Engine) dispatchAddPeer() (bool, error) {
	if e.acc.Available() < 2+addPeerBodyLen {
		return false, nil
	}
	body := e.acc.Peek(2, addPeerBodyLen)
	addr := peerAddressAt(body[:addrLen])
	channel := body[addrLen]
	if err := e.radio.RegisterPeer(addr, channel); err != nil {
		debugf("peer registration %s ch %d failed: %v", addr, channel, err)
	}
	e.acc.Advance(2 + addPeerBodyLen)
	return true, nil
}

// handleDelivery frames a packet received from the air and writes it
// to the host. Runs on the radio's goroutine: it must only read the
// link state and go through the serialized writer, never near the
// accumulator.
func (e *Engine) handleDelivery(source PeerAddress, payload []byte) {
	if e.LinkState() != LinkLive {
		// The host cannot parse deliveries before the handshake.
		debugf("dropping %d byte delivery from %s: link %s",
			len(payload), source, e.LinkState())
		return
	}
	if len(payload) > MaxPayloadSize {
		debugf("dropping oversized %d byte delivery from %s", len(payload), source)
		return
	}
	sum := Checksum16(payload)
	frame := make([]byte, 0, 2+deliveryHeaderLen+len(payload))
	frame = append(frame, markerDelivery...)
	frame = append(frame, source[:]...)
	frame = append(frame, byte(sum), byte(sum>>8))
	frame = append(frame, byte(len(payload)))
	frame = append(frame, payload...)
	if err := e.writeFrame(frame); err != nil {
		debugf("delivery frame write failed: %v", err)
	}
}

// writeFrame writes one complete frame to the host. The lock makes the
// whole frame a critical section so a delivery arriving mid-handshake
// cannot interleave with the ack bytes.
func (e *Engine) writeFrame(frame []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	for off := 0; off < len(frame); {
		n, err := e.transport.Write(frame[off:])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransportWrite, err)
		}
		off += n
	}
	return nil
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
