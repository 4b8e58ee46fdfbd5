// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// EventKind is a domain event in the session lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	// EvAllConfirmed fires when the confirmation gate reports every
	// participant confirmed. It is the only path out of Pending.
	EvAllConfirmed
	// EvPresenceLost fires when a presence fact reports a missing participant.
	EvPresenceLost
	// EvPresenceRestored fires when a presence fact reports full attendance.
	EvPresenceRestored
	// EvManualPause and EvManualResume are deliberate initiator actions.
	EvManualPause
	EvManualResume
	// EvTimerFired is the completion scheduler's callback.
	EvTimerFired
	// EvEndEarly is an explicit finish before the timer.
	EvEndEarly
	// EvCancel abandons the session.
	EvCancel
)

func (e EventKind) String() string {
	switch e {
	case EvAllConfirmed:
		return "all_confirmed"
	case EvPresenceLost:
		return "presence_lost"
	case EvPresenceRestored:
		return "presence_restored"
	case EvManualPause:
		return "manual_pause"
	case EvManualResume:
		return "manual_resume"
	case EvTimerFired:
		return "timer_fired"
	case EvEndEarly:
		return "end_early"
	case EvCancel:
		return "cancel"
	}
	return "unknown"
}
