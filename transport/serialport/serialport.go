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

// Package serialport implements the espbridge.Transport interface on a
// real serial port via go.bug.st/serial.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the rate the bridge firmware configures on
// its UART.
const DefaultBaudRate = 460800

// readPollTimeout bounds a single Read so ReadAvailable approximates a
// non-blocking read-what-is-pending call. The engine's poll interval
// dominates latency, not this value.
const readPollTimeout = time.Millisecond

// port is the subset of serial.Port the transport needs; narrowing it
// keeps tests off real hardware.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// Transport is a serial-port backed espbridge.Transport.
type Transport struct {
	port     port
	portName string
}

// Option configures the transport at open time.
type Option func(*serial.Mode)

// WithBaudRate overrides the default baud rate.
func WithBaudRate(baud int) Option {
	return func(m *serial.Mode) {
		m.BaudRate = baud
	}
}

// Open opens portName at 8N1 and prepares it for polled reads. Stale
// bytes pending in the OS input buffer are discarded so the engine
// starts from a clean stream.
func Open(portName string, opts ...Option) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	for _, opt := range opts {
		opt(mode)
	}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	t, err := newWithPort(p, portName)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return t, nil
}

// newWithPort finishes setup on an already-open port. Split out so
// tests can supply a fake.
func newWithPort(p port, portName string) (*Transport, error) {
	if err := p.SetReadTimeout(readPollTimeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("failed to flush input buffer on %s: %w", portName, err)
	}
	return &Transport{port: p, portName: portName}, nil
}

// ReadAvailable reads whatever bytes are pending into p, returning 0
// when the port is idle. A timed-out read is not an error.
func (t *Transport) ReadAvailable(p []byte) (int, error) {
	n, err := t.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("serial read on %s: %w", t.portName, err)
	}
	return n, nil
}

// Write writes p to the port.
func (t *Transport) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write on %s: %w", t.portName, err)
	}
	return n, nil
}

// Close closes the port.
func (t *Transport) Close() error {
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.portName, err)
	}
	return nil
}

// Name returns the underlying port name.
func (t *Transport) Name() string {
	return t.portName
}
