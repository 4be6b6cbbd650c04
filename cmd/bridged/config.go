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

package main

import (
	"fmt"
	"os"
	"time"

	espbridge "github.com/espbridge/go-espbridge"
	"gopkg.in/yaml.v2"
)

// Config is the bridged configuration file.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Engine   EngineConfig   `yaml:"engine"`
	LED      LEDConfig      `yaml:"led"`
	Log      LogConfig      `yaml:"log"`
	Loopback LoopbackConfig `yaml:"loopback"`
}

// SerialConfig holds serial link settings.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// EngineConfig holds protocol engine tuning.
type EngineConfig struct {
	BufferSize     int `yaml:"bufferSize"`
	PollIntervalMs int `yaml:"pollIntervalMs"`
	SettleDelayMs  int `yaml:"settleDelayMs"`
}

// LEDConfig holds the optional status LED pin.
type LEDConfig struct {
	Pin string `yaml:"pin"`
}

// LogConfig holds rotating log file settings. An empty file means
// stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// LoopbackConfig tunes the built-in loopback radio.
type LoopbackConfig struct {
	DelayMs int `yaml:"delayMs"`
}

// DefaultDaemonConfig returns the configuration used when no file is
// given.
func DefaultDaemonConfig() *Config {
	return &Config{
		Serial: SerialConfig{Port: "/dev/ttyUSB0", Baud: 460800},
		Engine: EngineConfig{
			BufferSize:     4096,
			PollIntervalMs: 20,
			SettleDelayMs:  2000,
		},
		Log:      LogConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Loopback: LoopbackConfig{DelayMs: 5},
	}
}

// LoadConfig reads and validates a YAML config file, filling defaults
// for anything left unset.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultDaemonConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Serial.Port == "" {
		return nil, fmt.Errorf("config %s: serial.port must be set", path)
	}
	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = 460800
	}
	if cfg.Engine.BufferSize <= 0 {
		cfg.Engine.BufferSize = 4096
	}
	if cfg.Engine.PollIntervalMs <= 0 {
		cfg.Engine.PollIntervalMs = 20
	}
	if cfg.Engine.SettleDelayMs < 0 {
		cfg.Engine.SettleDelayMs = 0
	}
	return cfg, nil
}

// EngineConfig converts the daemon settings into the engine's Config.
func (c *Config) EngineConfig() *espbridge.Config {
	return &espbridge.Config{
		BufferSize:   c.Engine.BufferSize,
		PollInterval: time.Duration(c.Engine.PollIntervalMs) * time.Millisecond,
		SettleDelay:  time.Duration(c.Engine.SettleDelayMs) * time.Millisecond,
	}
}
