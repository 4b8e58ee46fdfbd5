// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/focusd/internal/domain/session/lifecycle"
	"github.com/ManuGH/focusd/internal/domain/session/model"
	"github.com/ManuGH/focusd/internal/domain/session/policy"
	"github.com/ManuGH/focusd/internal/domain/session/ports"
	"github.com/ManuGH/focusd/internal/log"
	"github.com/ManuGH/focusd/internal/metrics"
	"github.com/google/uuid"
)

// InitiateRequest describes a new session. The participant set is fixed for
// the session's lifetime and must include the initiator.
type InitiateRequest struct {
	ChannelID       string
	GuildID         string
	DurationMinutes int
	Participants    []model.Participant
	InitiatorID     string
}

// StartResult reports the outcome of StartIfAllConfirmed. Warn carries a
// non-fatal stats store failure; the session is Active regardless.
type StartResult struct {
	Started bool
	Warn    error
}

// EndResult reports a terminal transition. Warn carries a non-fatal stats
// store failure; the session is gone from the registry regardless.
type EndResult struct {
	Minutes int
	Warn    error
}

// Initiate creates a Pending session for the channel. The initiator's
// confirmation bit is pre-set; everyone else must confirm before the
// session starts.
func (e *Engine) Initiate(ctx context.Context, req InitiateRequest) (Status, error) {
	if req.DurationMinutes <= 0 || req.DurationMinutes > e.limits.MaxSessionMinutes {
		return Status{}, fmt.Errorf("%w: duration %d out of range [1,%d]",
			lifecycle.ErrBadRequest, req.DurationMinutes, e.limits.MaxSessionMinutes)
	}
	if len(req.Participants) == 0 {
		return Status{}, fmt.Errorf("%w: participant set is empty", lifecycle.ErrBadRequest)
	}

	participants := make(map[string]*model.Participant, len(req.Participants))
	for _, p := range req.Participants {
		if p.UserID == "" {
			return Status{}, fmt.Errorf("%w: participant without user id", lifecycle.ErrBadRequest)
		}
		participants[p.UserID] = &model.Participant{
			UserID:    p.UserID,
			Username:  p.Username,
			Confirmed: p.UserID == req.InitiatorID,
		}
	}
	if _, ok := participants[req.InitiatorID]; !ok {
		return Status{}, fmt.Errorf("%w: initiator %s is not a participant", lifecycle.ErrBadRequest, req.InitiatorID)
	}

	now := e.clk.Now()
	sess := &model.Session{
		ChannelID:       req.ChannelID,
		GuildID:         req.GuildID,
		DurationMinutes: req.DurationMinutes,
		State:           model.SessionPending,
		Participants:    participants,
		InitiatorID:     req.InitiatorID,
		CorrelationID:   uuid.NewString(),
		CreatedAt:       now,
	}

	e.mu.Lock()
	if _, ok := e.sessions[req.ChannelID]; ok {
		e.mu.Unlock()
		return Status{}, lifecycle.ErrAlreadyExists
	}
	e.sessions[req.ChannelID] = &entry{sess: sess}
	live := len(e.sessions)
	e.mu.Unlock()

	metrics.SetLiveSessions(live)
	lg := e.sessionLogger(sess)
	lg.Info().
		Str(log.FieldEvent, "session.initiated").
		Str(log.FieldGuildID, req.GuildID).
		Str(log.FieldUserID, req.InitiatorID).
		Int(log.FieldDurationMinutes, req.DurationMinutes).
		Int("participants", len(participants)).
		Msg("session pending confirmation")

	return snapshot(sess, now), nil
}

// Confirm records a participant's confirmation. It is idempotent: a second
// confirm by the same participant succeeds without effect. A user outside
// the participant set is reported as NotFound.
func (e *Engine) Confirm(ctx context.Context, channelID, userID string) error {
	return e.withSession(channelID, func(ent *entry) error {
		p := ent.sess.Participant(userID)
		if p == nil {
			return fmt.Errorf("%w: user %s is not a participant", lifecycle.ErrNotFound, userID)
		}
		if p.Confirmed {
			return nil
		}
		if ent.sess.State != model.SessionPending {
			return fmt.Errorf("%w: confirmation window closed in %s", lifecycle.ErrInvalidState, ent.sess.State)
		}
		p.Confirmed = true
		lg := e.sessionLogger(ent.sess)
		lg.Info().
			Str(log.FieldEvent, "session.confirmed").
			Str(log.FieldUserID, userID).
			Msg("participant confirmed")
		return nil
	})
}

// StartIfAllConfirmed fires the Pending->Active transition when the
// confirmation gate is satisfied. It is the sole path that starts a
// session, and it is idempotent: on an already started session or an
// unsatisfied gate it reports Started=false with no error.
func (e *Engine) StartIfAllConfirmed(ctx context.Context, channelID string) (StartResult, error) {
	var res StartResult
	err := e.withSession(channelID, func(ent *entry) error {
		sess := ent.sess
		if sess.State != model.SessionPending || !sess.AllConfirmed() {
			return nil
		}

		// Request the stats record before the clock starts. A store
		// failure is non-fatal: the session runs without a record and the
		// warning surfaces to the caller.
		recordID, err := e.stats.CreateSession(ctx, sess.ChannelID, sess.GuildID, sess.DurationMinutes, sess.ParticipantList())
		if err != nil {
			metrics.IncStatsStoreError("create")
			res.Warn = fmt.Errorf("stats record creation failed: %w", err)
			lg := e.sessionLogger(sess)
			lg.Warn().Err(err).
				Str(log.FieldEvent, "stats.create_failed").
				Msg("continuing without a stats record")
		} else {
			sess.RecordID = recordID
		}

		now := e.clk.Now()
		tr, err := lifecycle.Dispatch(sess, lifecycle.EvAllConfirmed, now)
		if err != nil {
			return err
		}
		e.logTransition(sess, tr)
		metrics.IncSessionStart()
		e.arm(ent)
		res.Started = true
		return nil
	})
	return res, err
}

// ManualPause freezes an Active session. Initiator only.
func (e *Engine) ManualPause(ctx context.Context, channelID, userID string) error {
	return e.withSession(channelID, func(ent *entry) error {
		if !policy.Allowed(ent.sess, userID, policy.ActionManualPause) {
			return fmt.Errorf("%w: only the initiator may pause", lifecycle.ErrPermissionDenied)
		}
		tr, err := lifecycle.Dispatch(ent.sess, lifecycle.EvManualPause, e.clk.Now())
		if err != nil {
			return err
		}
		e.disarm(ent)
		e.logTransition(ent.sess, tr)
		return nil
	})
}

// ManualResume unfreezes a manually paused session. Initiator only; a
// manually paused session never resumes from presence facts.
func (e *Engine) ManualResume(ctx context.Context, channelID, userID string) error {
	return e.withSession(channelID, func(ent *entry) error {
		if !policy.Allowed(ent.sess, userID, policy.ActionManualResume) {
			return fmt.Errorf("%w: only the initiator may resume", lifecycle.ErrPermissionDenied)
		}
		tr, err := lifecycle.Dispatch(ent.sess, lifecycle.EvManualResume, e.clk.Now())
		if err != nil {
			return err
		}
		e.arm(ent)
		e.logTransition(ent.sess, tr)
		return nil
	})
}

// Extend adds minutes to a started session's duration. While Active the
// completion timer is re-armed for the recomputed remainder; while paused
// the resume path recomputes it.
func (e *Engine) Extend(ctx context.Context, channelID, userID string, additionalMinutes int) error {
	if additionalMinutes <= 0 || additionalMinutes > e.limits.MaxExtendMinutes {
		return fmt.Errorf("%w: extension %d out of range [1,%d]",
			lifecycle.ErrBadRequest, additionalMinutes, e.limits.MaxExtendMinutes)
	}
	return e.withSession(channelID, func(ent *entry) error {
		sess := ent.sess
		if !policy.Allowed(sess, userID, policy.ActionExtend) {
			return fmt.Errorf("%w: only participants may extend", lifecycle.ErrPermissionDenied)
		}
		if !sess.State.IsStarted() {
			return fmt.Errorf("%w: session has not started", lifecycle.ErrInvalidState)
		}
		sess.DurationMinutes += additionalMinutes
		if sess.State == model.SessionActive {
			e.arm(ent)
		}
		lg := e.sessionLogger(sess)
		lg.Info().
			Str(log.FieldEvent, "session.extended").
			Str(log.FieldUserID, userID).
			Int("additional_minutes", additionalMinutes).
			Int(log.FieldDurationMinutes, sess.DurationMinutes).
			Msg("session extended")
		return nil
	})
}

// EndEarly completes a started session before its timer. Any participant
// may end a session they are part of.
func (e *Engine) EndEarly(ctx context.Context, channelID, userID string) (EndResult, error) {
	var res EndResult
	var done ports.CompletedEvent
	completed := false
	err := e.withSession(channelID, func(ent *entry) error {
		if !policy.Allowed(ent.sess, userID, policy.ActionEndEarly) {
			return fmt.Errorf("%w: only participants may end the session", lifecycle.ErrPermissionDenied)
		}
		tr, err := lifecycle.Dispatch(ent.sess, lifecycle.EvEndEarly, e.clk.Now())
		if err != nil {
			return err
		}
		e.logTransition(ent.sess, tr)
		res, done = e.finalizeCompleted(ctx, ent, tr)
		completed = true
		return nil
	})
	if completed {
		// Outside the entry lock: a slow subscriber delays the caller, not
		// the channel.
		e.publish(ctx, ports.TopicSessionCompleted, done)
	}
	return res, err
}

// Cancel abandons the session from any non-terminal state. If the session
// never reached Active there is no stats record and no store call is made.
func (e *Engine) Cancel(ctx context.Context, channelID, userID string) (EndResult, error) {
	var res EndResult
	err := e.withSession(channelID, func(ent *entry) error {
		sess := ent.sess
		if !policy.Allowed(sess, userID, policy.ActionCancel) {
			return fmt.Errorf("%w: not allowed to cancel", lifecycle.ErrPermissionDenied)
		}
		tr, err := lifecycle.Dispatch(sess, lifecycle.EvCancel, e.clk.Now())
		if err != nil {
			return err
		}
		e.disarm(ent)
		e.logTransition(sess, tr)

		if sess.RecordID != 0 {
			if serr := e.stats.CancelSession(ctx, sess.RecordID); serr != nil {
				metrics.IncStatsStoreError("cancel")
				res.Warn = fmt.Errorf("stats cancellation failed: %w", serr)
				lg := e.sessionLogger(sess)
				lg.Warn().Err(serr).
					Str(log.FieldEvent, "stats.cancel_failed").
					Int64(log.FieldRecordID, sess.RecordID).
					Msg("session removed despite stats failure")
			}
		}
		metrics.IncSessionEnd("cancelled")
		e.remove(ent)
		return nil
	})
	return res, err
}

// PresenceLeft handles the resolved fact that presence changed in the
// channel. If any participant is absent while the session runs, the
// session auto-pauses. It reports whether a pause happened.
func (e *Engine) PresenceLeft(ctx context.Context, channelID string, presentUserIDs []string) (bool, error) {
	paused := false
	var ev ports.AutoPausedEvent
	err := e.withSession(channelID, func(ent *entry) error {
		sess := ent.sess
		if sess.State != model.SessionActive || sess.AllPresent(presentUserIDs) {
			return nil
		}
		tr, err := lifecycle.Dispatch(sess, lifecycle.EvPresenceLost, e.clk.Now())
		if err != nil {
			return err
		}
		e.disarm(ent)
		e.logTransition(sess, tr)
		paused = true
		ev = ports.AutoPausedEvent{
			ChannelID:        sess.ChannelID,
			GuildID:          sess.GuildID,
			RemainingMinutes: sess.RemainingAt(e.clk.Now()),
		}
		return nil
	})
	if paused {
		e.publish(ctx, ports.TopicSessionAutoPaused, ev)
	}
	return paused, err
}

// PresenceReturned handles the resolved fact that participants are present
// again. Only an auto-paused session resumes; a manual pause stays frozen
// until the initiator acts. It reports whether a resume happened.
func (e *Engine) PresenceReturned(ctx context.Context, channelID string, presentUserIDs []string) (bool, error) {
	resumed := false
	var ev ports.ResumedEvent
	err := e.withSession(channelID, func(ent *entry) error {
		sess := ent.sess
		if sess.State != model.SessionPausedAuto || !sess.AllPresent(presentUserIDs) {
			return nil
		}
		tr, err := lifecycle.Dispatch(sess, lifecycle.EvPresenceRestored, e.clk.Now())
		if err != nil {
			return err
		}
		e.arm(ent)
		e.logTransition(sess, tr)
		resumed = true
		ev = ports.ResumedEvent{
			ChannelID:        sess.ChannelID,
			GuildID:          sess.GuildID,
			RemainingMinutes: sess.RemainingAt(e.clk.Now()),
		}
		return nil
	})
	if resumed {
		e.publish(ctx, ports.TopicSessionResumed, ev)
	}
	return resumed, err
}

// Status returns a point-in-time snapshot of the channel's session.
func (e *Engine) Status(ctx context.Context, channelID string) (Status, error) {
	var out Status
	err := e.withSession(channelID, func(ent *entry) error {
		out = snapshot(ent.sess, e.clk.Now())
		return nil
	})
	return out, err
}

// Status is a read-only view of a session at one instant. Elapsed and
// remaining are recomputed from timestamps, never cached.
type Status struct {
	ChannelID        string              `json:"channelId"`
	GuildID          string              `json:"guildId"`
	State            model.SessionState  `json:"state"`
	DurationMinutes  int                 `json:"durationMinutes"`
	ElapsedMinutes   float64             `json:"elapsedMinutes"`
	RemainingMinutes float64             `json:"remainingMinutes"`
	InitiatorID      string              `json:"initiatorId"`
	Participants     []model.Participant `json:"participants"`
}

func snapshot(sess *model.Session, now time.Time) Status {
	return Status{
		ChannelID:        sess.ChannelID,
		GuildID:          sess.GuildID,
		State:            sess.State,
		DurationMinutes:  sess.DurationMinutes,
		ElapsedMinutes:   sess.ElapsedAt(now),
		RemainingMinutes: sess.RemainingAt(now),
		InitiatorID:      sess.InitiatorID,
		Participants:     sess.ParticipantList(),
	}
}
