// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package policy holds the pure permission predicates of the session
// engine. Predicates never mutate state and never report errors; the engine
// maps a false result to ErrPermissionDenied, keeping it distinct from
// state validity checks.
package policy

import "github.com/ManuGH/focusd/internal/domain/session/model"

// Action is a lifecycle action subject to a permission check.
type Action int

const (
	ActionConfirm Action = iota
	ActionManualPause
	ActionManualResume
	ActionExtend
	ActionEndEarly
	ActionCancel
)

// Allowed decides whether the actor may perform the action on the session.
func Allowed(sess *model.Session, actorID string, action Action) bool {
	switch action {
	case ActionManualPause, ActionManualResume:
		// Manual pause control belongs to the initiator alone.
		return actorID == sess.InitiatorID
	case ActionConfirm:
		return sess.IsParticipant(actorID)
	case ActionExtend, ActionEndEarly:
		return actorID == sess.InitiatorID || sess.IsParticipant(actorID)
	case ActionCancel:
		// Before the session starts anyone who can act on it may abandon
		// it; afterwards the initiator keeps that authority.
		if !sess.State.IsStarted() {
			return actorID == sess.InitiatorID || sess.IsParticipant(actorID)
		}
		return actorID == sess.InitiatorID
	}
	return false
}
