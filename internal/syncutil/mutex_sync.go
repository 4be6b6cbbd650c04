//go:build !deadlock

// Package syncutil provides the mutex types used around the engine's
// outbound frame writer. The default build uses plain sync mutexes;
// building with -tags=deadlock swaps in github.com/sasha-s/go-deadlock
// to catch lock-ordering mistakes between the poll loop and the radio
// delivery callback.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock
// detection.
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock
// detection.
type RWMutex struct {
	sync.RWMutex
}
