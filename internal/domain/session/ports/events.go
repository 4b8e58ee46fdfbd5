// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "github.com/ManuGH/focusd/internal/domain/session/model"

// Bus topics for lifecycle notifications. Auto pause/resume transitions are
// announced so an external layer can render them; manual transitions are
// deliberate and stay silent.
const (
	TopicSessionCompleted  = "session.completed"
	TopicSessionAutoPaused = "session.autopaused"
	TopicSessionResumed    = "session.resumed"
)

// CompletedEvent is published exactly once per Completed transition.
type CompletedEvent struct {
	ChannelID    string
	GuildID      string
	Minutes      int
	Reason       model.EndReason
	Participants []model.Participant
}

// AutoPausedEvent is published on Active -> PausedAuto.
type AutoPausedEvent struct {
	ChannelID        string
	GuildID          string
	RemainingMinutes float64
}

// ResumedEvent is published on PausedAuto -> Active.
type ResumedEvent struct {
	ChannelID        string
	GuildID          string
	RemainingMinutes float64
}
