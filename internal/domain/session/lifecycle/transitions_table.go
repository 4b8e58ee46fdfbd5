// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/focusd/internal/domain/session/model"

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From   model.SessionState
	To     model.SessionState
	Event  EventKind
	Reason model.EndReason
}

var transitionsTable = []Transition{
	// Confirmation gate
	{From: model.SessionPending, To: model.SessionActive, Event: EvAllConfirmed},

	// Pause paths. A presence loss never touches a manually paused session,
	// and a manual pause is rejected while already paused.
	{From: model.SessionActive, To: model.SessionPausedAuto, Event: EvPresenceLost},
	{From: model.SessionActive, To: model.SessionPausedManual, Event: EvManualPause},

	// Resume paths. PausedManual only resumes via the explicit action;
	// presence restoration alone never unfreezes it.
	{From: model.SessionPausedAuto, To: model.SessionActive, Event: EvPresenceRestored},
	{From: model.SessionPausedManual, To: model.SessionActive, Event: EvManualResume},

	// Completion
	{From: model.SessionActive, To: model.SessionCompleted, Event: EvTimerFired, Reason: model.ReasonTimerFired},
	{From: model.SessionActive, To: model.SessionCompleted, Event: EvEndEarly, Reason: model.ReasonEndedEarly},
	{From: model.SessionPausedAuto, To: model.SessionCompleted, Event: EvEndEarly, Reason: model.ReasonEndedEarly},
	{From: model.SessionPausedManual, To: model.SessionCompleted, Event: EvEndEarly, Reason: model.ReasonEndedEarly},

	// Cancellation
	{From: model.SessionPending, To: model.SessionCancelled, Event: EvCancel, Reason: model.ReasonCancelled},
	{From: model.SessionActive, To: model.SessionCancelled, Event: EvCancel, Reason: model.ReasonCancelled},
	{From: model.SessionPausedAuto, To: model.SessionCancelled, Event: EvCancel, Reason: model.ReasonCancelled},
	{From: model.SessionPausedManual, To: model.SessionCancelled, Event: EvCancel, Reason: model.ReasonCancelled},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.SessionState, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
