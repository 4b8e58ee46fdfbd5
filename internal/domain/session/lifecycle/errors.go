// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "errors"

// The full error taxonomy of the session engine. Every public operation
// returns one of these (wrapped) or nil; nothing panics across the API.
var (
	// ErrNotFound: no session for the channel, or the user is not a participant.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists: initiate called while a live session occupies the channel.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrInvalidState: the action is not valid for the current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrPermissionDenied: the actor lacks authority for the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrBadRequest: malformed input (non-positive duration, empty participant set).
	ErrBadRequest = errors.New("bad request")
)
