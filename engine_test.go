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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRestarter struct {
	calls atomic.Int32
}

func (m *mockRestarter) Restart() { m.calls.Add(1) }

// testConfig removes all real-time waits so tests drive the engine
// deterministically through poll.
func testConfig() *Config {
	return &Config{
		BufferSize:   4096,
		PollInterval: time.Millisecond,
		SettleDelay:  0,
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *MockTransport, *MockRadio, *mockRestarter) {
	t.Helper()
	tr := NewMockTransport()
	radio := NewMockRadio()
	restarter := &mockRestarter{}
	opts = append([]Option{
		WithConfig(testConfig()),
		WithRestarter(restarter),
	}, opts...)
	engine, err := New(tr, radio, opts...)
	require.NoError(t, err)
	return engine, tr, radio, restarter
}

// makeLive walks the engine through the handshake and discards the
// reply frames so tests start from a clean live link.
func makeLive(t *testing.T, e *Engine, tr *MockTransport) {
	t.Helper()
	tr.QueueInbound(CmdConnect.Marker())
	require.NoError(t, e.poll(context.Background()))
	require.Equal(t, LinkLive, e.LinkState())
	tr.ResetWritten()
}

// drain polls until the mock transport has no pending inbound bytes.
func drain(t *testing.T, e *Engine, tr *MockTransport) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		require.NoError(t, e.poll(context.Background()))
		tr.mu.Lock()
		pending := len(tr.inbound)
		tr.mu.Unlock()
		if pending == 0 {
			// One more pass so bytes ingested on the last iteration
			// get dispatched.
			require.NoError(t, e.poll(context.Background()))
			return
		}
	}
	t.Fatal("transport never drained")
}

func buildSendMessage(dest PeerAddress, payload []byte) []byte {
	sum := Checksum16(payload)
	frame := append([]byte{}, CmdSendMessage.Marker()...)
	frame = append(frame, dest[:]...)
	frame = append(frame, byte(sum), byte(sum>>8), byte(len(payload)))
	return append(frame, payload...)
}

func buildAddPeer(addr PeerAddress, channel byte) []byte {
	frame := append([]byte{}, CmdAddPeer.Marker()...)
	frame = append(frame, addr[:]...)
	return append(frame, channel)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, NewMockRadio())
	require.Error(t, err)

	_, err = New(NewMockTransport(), nil)
	require.Error(t, err)

	_, err = New(NewMockTransport(), NewMockRadio(),
		WithConfig(&Config{BufferSize: -1}))
	require.Error(t, err)
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	require.Equal(t, LinkDisconnected, engine.LinkState())

	tr.QueueInbound([]byte{0x42, 0x42, 0x42, 0x42})
	require.NoError(t, engine.poll(context.Background()))

	// Handshake-ack first, peer-list request second, nothing else.
	want := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x44, 0x33}
	assert.Equal(t, want, tr.Written())
	assert.Equal(t, LinkLive, engine.LinkState())
	assert.Empty(t, radio.Sends())
	assert.Empty(t, radio.Peers())
	assert.Equal(t, 0, engine.acc.Available())
}

func TestHandshakeSkipsLeadingNoise(t *testing.T) {
	t.Parallel()

	engine, tr, _, _ := newTestEngine(t)
	tr.QueueInbound([]byte{0x00, 0x13, 0x37, 0x42, 0x42, 0x42, 0x42})
	require.NoError(t, engine.poll(context.Background()))

	assert.Equal(t, LinkLive, engine.LinkState())
	assert.Equal(t, 0, engine.acc.Available())
}

func TestHandshakeWaitsForFullMarker(t *testing.T) {
	t.Parallel()

	engine, tr, _, _ := newTestEngine(t)

	tr.QueueInbound([]byte{0x42, 0x42, 0x42})
	require.NoError(t, engine.poll(context.Background()))
	assert.Equal(t, LinkDisconnected, engine.LinkState())
	assert.Empty(t, tr.Written())

	tr.QueueInbound([]byte{0x42})
	require.NoError(t, engine.poll(context.Background()))
	assert.Equal(t, LinkLive, engine.LinkState())
}

func TestSendMessageDispatch(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	dest := PeerAddress{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}
	payload := []byte("hello, air")
	peer := PeerAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	// Back-to-back frames prove the cursor advances by exactly
	// marker + fixed fields + payload: a wrong advance would corrupt
	// the add-peer parse behind it.
	tr.QueueInbound(buildSendMessage(dest, payload))
	tr.QueueInbound(buildAddPeer(peer, 6))
	require.NoError(t, engine.poll(context.Background()))

	sends := radio.Sends()
	require.Len(t, sends, 1)
	assert.Equal(t, dest, sends[0].Dest)
	assert.Equal(t, payload, sends[0].Payload)

	peers := radio.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, peer, peers[0].Addr)
	assert.Equal(t, byte(6), peers[0].Channel)

	assert.Equal(t, 0, engine.acc.Available())
}

func TestSendMessageWaitsForPayload(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	frame := buildSendMessage(PeerAddress{1, 2, 3, 4, 5, 6}, []byte("partial"))

	tr.QueueInbound(frame[:5])
	require.NoError(t, engine.poll(context.Background()))
	assert.Empty(t, radio.Sends())

	tr.QueueInbound(frame[5 : len(frame)-1])
	require.NoError(t, engine.poll(context.Background()))
	assert.Empty(t, radio.Sends())

	tr.QueueInbound(frame[len(frame)-1:])
	require.NoError(t, engine.poll(context.Background()))
	require.Len(t, radio.Sends(), 1)
	assert.Equal(t, []byte("partial"), radio.Sends()[0].Payload)
}

func TestSendMessageChecksumMismatchIsFatal(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	frame := buildSendMessage(PeerAddress{1, 2, 3, 4, 5, 6}, []byte("corrupt me"))
	frame[8] ^= 0xFF // flip the checksum low byte

	tr.QueueInbound(frame)
	err := engine.poll(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Empty(t, radio.Sends())
}

func TestUnknownMarkerIsFatal(t *testing.T) {
	t.Parallel()

	engine, tr, _, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	tr.QueueInbound([]byte{0xDE, 0xAD})
	err := engine.poll(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrUnknownMarker)
}

func TestRehandshakeFragmentsAreSkipped(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	// A renegotiating host resends the connect pattern while live;
	// the dispatcher swallows it two bytes at a time.
	tr.QueueInbound(CmdConnect.Marker())
	tr.QueueInbound(buildAddPeer(PeerAddress{9, 8, 7, 6, 5, 4}, 1))
	require.NoError(t, engine.poll(context.Background()))

	assert.Empty(t, radio.Sends())
	assert.Empty(t, tr.Written())
	require.Len(t, radio.Peers(), 1)
	assert.Equal(t, 0, engine.acc.Available())
}

func TestAddPeerCursorAdvance(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	addr, err := ParsePeerAddress("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	// A single trailing byte must survive as the start of the next
	// frame: consumed bytes are exactly marker + addr + channel.
	tr.QueueInbound(buildAddPeer(addr, 6))
	tr.QueueInbound([]byte{0x55})
	require.NoError(t, engine.poll(context.Background()))

	peers := radio.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, addr, peers[0].Addr)
	assert.Equal(t, byte(6), peers[0].Channel)
	assert.Equal(t, 1, engine.acc.Available())
}

func TestBufferOverflowIsFatal(t *testing.T) {
	t.Parallel()

	engine, tr, _, _ := newTestEngine(t, WithConfig(&Config{
		BufferSize:   8,
		PollInterval: time.Millisecond,
		SettleDelay:  0,
	}))

	// Junk that never forms a handshake fills the buffer and can
	// never be consumed.
	tr.QueueInbound([]byte{1, 1, 1, 1, 1, 1, 1, 1})
	require.NoError(t, engine.poll(context.Background()))

	err := engine.poll(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestDeliveryWhileDisconnectedIsDropped(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	require.Equal(t, LinkDisconnected, engine.LinkState())

	radio.Deliver(PeerAddress{1, 2, 3, 4, 5, 6}, []byte("too early"))
	assert.Empty(t, tr.Written())
}

func TestDeliveryFraming(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	src := PeerAddress{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	payload := []byte("hello")
	radio.Deliver(src, payload)

	sum := Checksum16(payload)
	want := []byte{0x55, 0x44, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06,
		byte(sum), byte(sum >> 8), 5}
	want = append(want, payload...)
	assert.Equal(t, want, tr.Written())
}

func TestOversizedDeliveryIsDropped(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	radio.Deliver(PeerAddress{1, 2, 3, 4, 5, 6}, make([]byte, MaxPayloadSize+1))
	assert.Empty(t, tr.Written())
}

func TestRunInvokesRestarterOnFatal(t *testing.T) {
	t.Parallel()

	engine, tr, radio, restarter := newTestEngine(t)

	frame := buildSendMessage(PeerAddress{1, 2, 3, 4, 5, 6}, []byte("doomed"))
	frame[9] ^= 0xFF // flip the checksum high byte

	tr.QueueInbound(CmdConnect.Marker())
	tr.QueueInbound(frame)

	err := engine.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Equal(t, int32(1), restarter.calls.Load())
	assert.Empty(t, radio.Sends())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	engine, _, _, restarter := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), restarter.calls.Load())
}

// TestChunkingInvariance feeds the same stream in one shot and one
// byte at a time and requires identical dispatches and identical
// outbound bytes.
func TestChunkingInvariance(t *testing.T) {
	t.Parallel()

	peerA := PeerAddress{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}
	peerB := PeerAddress{0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5}

	var stream []byte
	stream = append(stream, 0x07, 0x07) // pre-handshake line noise
	stream = append(stream, CmdConnect.Marker()...)
	stream = append(stream, buildAddPeer(peerA, 3)...)
	stream = append(stream, buildSendMessage(peerA, []byte("first payload"))...)
	stream = append(stream, CmdConnect.Marker()...) // re-handshake fragment
	stream = append(stream, buildAddPeer(peerB, 11)...)
	stream = append(stream, buildSendMessage(peerB, []byte{0x00})...)

	run := func(chunk int) (*MockTransport, *MockRadio) {
		engine, tr, radio, _ := newTestEngine(t)
		tr.SetChunkSize(chunk)
		tr.QueueInbound(stream)
		drain(t, engine, tr)
		require.Equal(t, LinkLive, engine.LinkState())
		return tr, radio
	}

	trAll, radioAll := run(0)
	trOne, radioOne := run(1)

	assert.Equal(t, trAll.Written(), trOne.Written())
	assert.Equal(t, radioAll.Sends(), radioOne.Sends())
	assert.Equal(t, radioAll.Peers(), radioOne.Peers())
	require.Len(t, radioAll.Sends(), 2)
	require.Len(t, radioAll.Peers(), 2)
}

// TestConcurrentDeliveriesDoNotInterleave hammers the delivery
// callback from many goroutines and verifies every outbound frame
// survives intact: frame writes are a critical section.
func TestConcurrentDeliveriesDoNotInterleave(t *testing.T) {
	t.Parallel()

	engine, tr, radio, _ := newTestEngine(t)
	makeLive(t, engine, tr)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			src := PeerAddress{id, id, id, id, id, id}
			for i := 0; i < perWorker; i++ {
				payload := []byte{id, byte(i), 0xC0, 0xFF, 0xEE}
				radio.Deliver(src, payload)
			}
		}(byte(w + 1))
	}
	wg.Wait()

	buf := tr.Written()
	frames := 0
	for len(buf) > 0 {
		require.GreaterOrEqual(t, len(buf), 2+deliveryHeaderLen)
		require.Equal(t, markerDelivery, buf[:2])
		size := int(buf[2+addrLen+2])
		total := 2 + deliveryHeaderLen + size
		require.GreaterOrEqual(t, len(buf), total)
		payload := buf[2+deliveryHeaderLen : total]
		sum := uint16(buf[2+addrLen]) | uint16(buf[2+addrLen+1])<<8
		require.Equal(t, Checksum16(payload), sum,
			"frame %d corrupted by interleaving", frames)
		buf = buf[total:]
		frames++
	}
	assert.Equal(t, workers*perWorker, frames)
}

func TestLinkStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "disconnected", LinkDisconnected.String())
	assert.Equal(t, "live", LinkLive.String())
	assert.Equal(t, "invalid", LinkState(7).String())
}
