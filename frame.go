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

import "bytes"

// Command identifies a host-to-device frame type by its wire marker.
type Command int

const (
	// CmdConnect is the 4-byte connection-initiation pattern the host
	// sends while the link is down.
	CmdConnect Command = iota
	// CmdAddPeer registers a peer address and radio channel with the
	// radio subsystem.
	CmdAddPeer
	// CmdSendMessage transmits a checksummed payload to a peer.
	CmdSendMessage
)

// Wire markers. The byte values are fixed by the existing host-side
// protocol and must not change.
var (
	markerConnect     = []byte{0x42, 0x42, 0x42, 0x42}
	markerAddPeer     = []byte{0x33, 0x22}
	markerSendMessage = []byte{0x22, 0x11}

	// Device-to-host frames.
	handshakeAckFrame    = []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}
	peerListRequestFrame = []byte{0x44, 0x33}
	markerDelivery       = []byte{0x55, 0x44}
)

// Frame geometry. Multi-byte fields other than the delivery checksum
// are independent bytes on the wire so the original microcontroller
// never performs an unaligned read; byte order is low, high.
const (
	addrLen = 6

	// Send-message fixed fields: dest[6] crcLo crcHi size.
	sendMessageHeaderLen = addrLen + 3
	// Add-peer fixed fields: addr[6] channel.
	addPeerBodyLen = addrLen + 1
	// Delivery fixed fields: src[6] crcLo crcHi size.
	deliveryHeaderLen = addrLen + 3

	// MaxPayloadSize is the largest payload a single frame may carry.
	// ESP-NOW refuses anything above 250 bytes.
	MaxPayloadSize = 250
)

// Marker returns the wire marker identifying the command.
func (c Command) Marker() []byte {
	switch c {
	case CmdConnect:
		return markerConnect
	case CmdAddPeer:
		return markerAddPeer
	case CmdSendMessage:
		return markerSendMessage
	default:
		return nil
	}
}

// String returns a human-readable command name for logging.
func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "connect"
	case CmdAddPeer:
		return "add-peer"
	case CmdSendMessage:
		return "send-message"
	default:
		return "unknown"
	}
}

// matchesMarker reports whether buf begins with the full marker.
//
// The original firmware compared only the first byte for equality and
// tested the second for non-zero-ness, which cannot distinguish two
// markers sharing a first byte. All current markers differ in their
// first byte, so full equality is wire-compatible and is used here.
func matchesMarker(marker, buf []byte) bool {
	if len(buf) < len(marker) {
		return false
	}
	return bytes.Equal(marker, buf[:len(marker)])
}
