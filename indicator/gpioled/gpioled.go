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

// Package gpioled drives a link-status LED on a GPIO line through
// periph.io. The original bridge hardware wires its builtin LED
// active-low: driving the pin low lights it once the handshake
// completes.
package gpioled

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Indicator implements espbridge.StatusIndicator on a GPIO pin.
type Indicator struct {
	pin gpio.PinIO

	// ActiveLow inverts the drive level; true matches the original
	// bridge hardware.
	ActiveLow bool
}

// New initializes the host GPIO drivers and claims the named pin. The
// LED starts off.
func New(pinName string) (*Indicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio host init failed: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("no GPIO pin named %q", pinName)
	}
	ind := &Indicator{pin: pin, ActiveLow: true}
	ind.SetLinkUp(false)
	return ind, nil
}

// SetLinkUp implements espbridge.StatusIndicator.
func (i *Indicator) SetLinkUp(up bool) {
	level := gpio.Level(up)
	if i.ActiveLow {
		level = !level
	}
	// A failed LED write is not worth interrupting the link for.
	_ = i.pin.Out(level)
}
