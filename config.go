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

import "time"

// Config holds engine tuning options.
type Config struct {
	// BufferSize is the accumulator capacity in bytes. A conformant
	// host never needs more than a few frames of headroom.
	// Default: 4096
	BufferSize int

	// PollInterval is the cooperative yield between poll-loop
	// iterations. Default: 20ms
	PollInterval time.Duration

	// SettleDelay is how long the engine waits after answering the
	// handshake before going live, giving the radio subsystem time to
	// finish any pending initialization. Default: 2s
	SettleDelay time.Duration
}

// DefaultConfig returns the default engine configuration. The values
// mirror the timing of the original bridge firmware.
func DefaultConfig() *Config {
	return &Config{
		BufferSize:   4096,
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  2 * time.Second,
	}
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.cfg = cfg
		}
	}
}

// WithRestarter sets the restart primitive invoked on the fatal error
// paths. Without one the engine still aborts Run but cannot reboot
// anything.
func WithRestarter(r Restarter) Option {
	return func(e *Engine) {
		if r != nil {
			e.restarter = r
		}
	}
}

// WithIndicator sets the status indicator driven on link-state
// transitions.
func WithIndicator(ind StatusIndicator) Option {
	return func(e *Engine) {
		if ind != nil {
			e.indicator = ind
		}
	}
}
