// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// Participant is a member of a session, fixed at creation time. Only the
// confirmation bit is mutable, and only while the session is Pending.
type Participant struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Confirmed bool   `json:"confirmed"`
}

// Session is the registry's source of truth for one channel's focus session.
// Exactly one of the following holds while the session is in the Active
// family: running (StartTime set, PausedTime zero) or paused (PausedTime
// set, StartTime zero). A Pending session has neither.
type Session struct {
	ChannelID       string
	GuildID         string
	DurationMinutes int
	State           SessionState

	// StartTime marks the beginning of the current unpaused run segment.
	StartTime time.Time
	// PausedTime marks when the current pause began.
	PausedTime time.Time
	// ElapsedMinutes accumulates completed run segments. The in-progress
	// segment is never folded in until a pause or terminal transition.
	ElapsedMinutes float64

	Participants map[string]*Participant
	InitiatorID  string

	// RecordID is the stats store identifier, assigned on Pending->Active.
	// Zero means no record exists yet.
	RecordID int64

	// CorrelationID ties log lines across the session's lifetime.
	CorrelationID string

	CreatedAt time.Time
}

// Running reports whether an unpaused segment is in progress.
func (s *Session) Running() bool {
	return s.State == SessionActive && !s.StartTime.IsZero()
}

// Participant returns the participant by user ID, or nil.
func (s *Session) Participant(userID string) *Participant {
	return s.Participants[userID]
}

// IsParticipant reports membership in the fixed participant set.
func (s *Session) IsParticipant(userID string) bool {
	_, ok := s.Participants[userID]
	return ok
}

// AllConfirmed reports whether every participant has confirmed. This is the
// confirmation gate's sole criterion for releasing a Pending session.
func (s *Session) AllConfirmed() bool {
	for _, p := range s.Participants {
		if !p.Confirmed {
			return false
		}
	}
	return true
}

// AllPresent reports whether every participant appears in the present set.
func (s *Session) AllPresent(presentUserIDs []string) bool {
	present := make(map[string]struct{}, len(presentUserIDs))
	for _, id := range presentUserIDs {
		present[id] = struct{}{}
	}
	for id := range s.Participants {
		if _, ok := present[id]; !ok {
			return false
		}
	}
	return true
}

// ParticipantList returns the participants as a slice with stable content
// (order is unspecified).
func (s *Session) ParticipantList() []Participant {
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, *p)
	}
	return out
}
