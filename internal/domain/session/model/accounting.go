// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"math"
	"time"
)

// ElapsedAt returns the session's total elapsed minutes at the given
// instant: accumulated completed segments plus the in-progress segment if
// one is running. It is pure and recomputed on demand; no cached derived
// value is trusted.
func (s *Session) ElapsedAt(now time.Time) float64 {
	elapsed := s.ElapsedMinutes
	if s.Running() {
		elapsed += now.Sub(s.StartTime).Minutes()
	}
	return elapsed
}

// RemainingAt returns the minutes left before the session duration is
// reached, clamped at zero.
func (s *Session) RemainingAt(now time.Time) float64 {
	remaining := float64(s.DurationMinutes) - s.ElapsedAt(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingDuration is RemainingAt expressed as a time.Duration, used to
// arm the completion timer.
func (s *Session) RemainingDuration(now time.Time) time.Duration {
	return time.Duration(s.RemainingAt(now) * float64(time.Minute))
}

// RoundedElapsedAt rounds elapsed time to the nearest whole minute. This is
// the value persisted on completion.
func (s *Session) RoundedElapsedAt(now time.Time) int {
	return int(math.Round(s.ElapsedAt(now)))
}
