// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package clock abstracts time so session timing can be driven
// deterministically in tests. Production code uses the system clock; the
// arithmetic relies on Go's monotonic clock reading, so wall-clock
// adjustments do not skew elapsed-time accounting within a process run.
package clock

import "time"

// Timer is a one-shot deferred callback handle.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the
	// timer before it fired.
	Stop() bool
}

// Clock is the minimal surface the session engine needs.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemClock struct{}

type systemTimer struct {
	t *time.Timer
}

func (t *systemTimer) Stop() bool { return t.t.Stop() }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return &systemTimer{t: time.AfterFunc(d, fn)}
}

// System returns the real clock.
func System() Clock { return systemClock{} }
