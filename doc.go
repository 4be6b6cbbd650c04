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

// Package espbridge implements the protocol engine of an ESP-NOW serial
// bridge device: it parses the framed byte stream a host sends over a
// point-to-point serial link into radio commands, and frames packets
// delivered by the radio back onto the same link.
//
// The engine is transport- and radio-agnostic. A Transport supplies the
// serial byte stream, a Radio performs the actual wireless send/receive
// and peer-table management, and the Engine in between owns the link
// state machine: handshake detection, command dispatch, and delivery
// framing. See transport/serialport for a real serial backend and
// radio/loopback for an in-process radio useful for bench testing.
package espbridge
