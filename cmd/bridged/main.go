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

// bridged runs the bridge protocol engine on a serial port with the
// loopback radio, emulating a complete ESP-NOW bridge device. Point
// host software at one end of a pseudo terminal pair (e.g. socat) and
// bridged at the other to test the host side without hardware.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	espbridge "github.com/espbridge/go-espbridge"
	"github.com/espbridge/go-espbridge/indicator/gpioled"
	"github.com/espbridge/go-espbridge/radio/loopback"
	"github.com/espbridge/go-espbridge/transport/serialport"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	flagConfig = flag.String("config", "", "Path to YAML config file")
	flagPort   = flag.String("port", "", "Serial port (overrides config)")
	flagDebug  = flag.Bool("debug", false, "Enable protocol debug output")
)

func main() {
	flag.Parse()

	cfg, err := LoadConfig(*flagConfig)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *flagPort != "" {
		cfg.Serial.Port = *flagPort
	}
	if *flagDebug {
		espbridge.SetDebugEnabled(true)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.Log.File != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		})
	}

	log.Printf("Starting bridged on %s at %d baud", cfg.Serial.Port, cfg.Serial.Baud)

	transport, err := serialport.Open(cfg.Serial.Port,
		serialport.WithBaudRate(cfg.Serial.Baud))
	if err != nil {
		log.Fatalf("Failed to open serial port: %v", err)
	}
	defer func() {
		if err := transport.Close(); err != nil {
			log.Printf("Serial port close failed: %v", err)
		}
	}()

	radio := loopback.New()
	radio.Delay = time.Duration(cfg.Loopback.DelayMs) * time.Millisecond

	opts := []espbridge.Option{
		espbridge.WithConfig(cfg.EngineConfig()),
		// The device equivalent reboots the microcontroller; for the
		// daemon the supervisor is the restart primitive.
		espbridge.WithRestarter(espbridge.RestartFunc(func() {
			log.Printf("Fatal protocol error, exiting for supervisor restart")
		})),
	}
	if cfg.LED.Pin != "" {
		ind, err := gpioled.New(cfg.LED.Pin)
		if err != nil {
			log.Fatalf("Failed to set up status LED on %s: %v", cfg.LED.Pin, err)
		}
		opts = append(opts, espbridge.WithIndicator(ind))
	}

	engine, err := espbridge.New(transport, radio, opts...)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = engine.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("Shutting down")
	case espbridge.IsFatal(err):
		log.Printf("Engine restarted the device: %v", err)
		os.Exit(1)
	case err != nil:
		log.Printf("Engine stopped: %v", err)
		os.Exit(1)
	}
}
