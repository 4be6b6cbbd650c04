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

// StatusIndicator reflects the link state on some external signal,
// typically a status LED. The original device lights its builtin LED
// once the handshake completes. Implementations must tolerate being
// called from the poll loop.
type StatusIndicator interface {
	SetLinkUp(up bool)
}

// nopIndicator is used when no indicator is configured.
type nopIndicator struct{}

func (nopIndicator) SetLinkUp(bool) {}
