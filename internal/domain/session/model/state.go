// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// SessionState is the lifecycle state of a focus session.
// It is intentionally coarse-grained and stable across callers.
type SessionState string

const (
	// SessionPending waits for every participant to confirm.
	SessionPending SessionState = "PENDING"
	// SessionActive is a running, unpaused session.
	SessionActive SessionState = "ACTIVE"
	// SessionPausedAuto was frozen because a participant left the channel.
	SessionPausedAuto SessionState = "PAUSED_AUTO"
	// SessionPausedManual was frozen deliberately by the initiator.
	SessionPausedManual SessionState = "PAUSED_MANUAL"
	// SessionCompleted is terminal: the session ran to its duration or was
	// ended early.
	SessionCompleted SessionState = "COMPLETED"
	// SessionCancelled is terminal: the session was abandoned.
	SessionCancelled SessionState = "CANCELLED"
)

// IsTerminal returns true if the state is a final state. Terminal sessions
// are removed from the registry.
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// IsPaused returns true for either pause flavour.
func (s SessionState) IsPaused() bool {
	return s == SessionPausedAuto || s == SessionPausedManual
}

// IsStarted returns true once the session has left Pending.
func (s SessionState) IsStarted() bool {
	return s != SessionPending && s != ""
}

// EndReason is a compact, typed signal describing why a session reached a
// terminal state. Keep these stable: metrics and subscribers depend on them.
type EndReason string

const (
	ReasonTimerFired EndReason = "TIMER_FIRED"
	ReasonEndedEarly EndReason = "ENDED_EARLY"
	ReasonCancelled  EndReason = "CANCELLED"
)
