// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"

	"github.com/ManuGH/focusd/internal/domain/session/model"
)

// StatsStore is the persistence collaborator recording session history.
// Calls are fire-and-record: the engine only depends on the returned record
// ID, and a store failure never corrupts or rolls back in-memory session
// state.
type StatsStore interface {
	// CreateSession records a session that reached Active and returns its
	// record ID.
	CreateSession(ctx context.Context, channelID, guildID string, durationMinutes int, participants []model.Participant) (int64, error)
	// CompleteSession marks the record completed with the rounded minutes.
	CompleteSession(ctx context.Context, recordID int64, minutes int) error
	// CancelSession marks the record cancelled.
	CancelSession(ctx context.Context, recordID int64) error
}
