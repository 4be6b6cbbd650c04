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

import "github.com/snksoft/crc"

// xmodemTable is precomputed once; Checksum16 is called for every
// send-message frame and every radio delivery.
var xmodemTable = crc.NewTable(crc.XMODEM)

// Checksum16 computes the CRC-16/XMODEM checksum of data: polynomial
// 0x1021, initial value 0x0000, no reflection, MSB first. The host
// side computes the same function over payloads, so both ends agree
// on the two checksum bytes carried in send-message and delivery
// frames. Reference vector: Checksum16([]byte("123456789")) == 0x31C3.
func Checksum16(data []byte) uint16 {
	return uint16(xmodemTable.CalculateCRC(data))
}
