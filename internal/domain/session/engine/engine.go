// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine is the session lifecycle controller. It owns the registry
// mapping each channel to at most one live session, serializes every
// mutation per channel, consults the permission policy and the confirmation
// gate, applies transitions through the lifecycle package, and keeps the
// completion timer consistent with pause state and duration extensions.
package engine

import (
	"sync"

	"github.com/ManuGH/focusd/internal/clock"
	"github.com/ManuGH/focusd/internal/domain/session/lifecycle"
	"github.com/ManuGH/focusd/internal/domain/session/model"
	"github.com/ManuGH/focusd/internal/domain/session/ports"
	"github.com/ManuGH/focusd/internal/log"
	"github.com/ManuGH/focusd/internal/metrics"
	"github.com/rs/zerolog"
)

// Limits bound user-supplied durations.
type Limits struct {
	MaxSessionMinutes int
	MaxExtendMinutes  int
}

// Engine coordinates all live sessions. Construct one at startup and inject
// it into every caller; there is no package-level instance.
type Engine struct {
	clk    clock.Clock
	stats  ports.StatsStore
	bus    ports.Bus
	limits Limits
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry pairs a session with its per-channel lock and timer handle. All
// mutations of the session happen under mu; the timer generation token lets
// a stale fired callback detect that it was superseded by a disarm/re-arm.
type entry struct {
	mu       sync.Mutex
	sess     *model.Session
	timer    clock.Timer
	timerGen uint64
	removed  bool
}

// New constructs an Engine. The bus may be nil, in which case lifecycle
// notifications are dropped.
func New(clk clock.Clock, stats ports.StatsStore, bus ports.Bus, limits Limits) *Engine {
	if limits.MaxSessionMinutes <= 0 {
		limits.MaxSessionMinutes = 240
	}
	if limits.MaxExtendMinutes <= 0 {
		limits.MaxExtendMinutes = limits.MaxSessionMinutes
	}
	return &Engine{
		clk:      clk,
		stats:    stats,
		bus:      bus,
		limits:   limits,
		logger:   log.WithComponent("engine"),
		sessions: make(map[string]*entry),
	}
}

// withSession runs fn with the channel's entry locked. The registry lock is
// never held while waiting on an entry lock, so per-channel operations in
// different channels proceed in parallel.
func (e *Engine) withSession(channelID string, fn func(*entry) error) error {
	for {
		e.mu.Lock()
		ent, ok := e.sessions[channelID]
		e.mu.Unlock()
		if !ok {
			return lifecycle.ErrNotFound
		}
		ent.mu.Lock()
		if ent.removed {
			// Lost a race with a terminal transition; the registry no
			// longer holds this entry.
			ent.mu.Unlock()
			continue
		}
		err := fn(ent)
		ent.mu.Unlock()
		return err
	}
}

// remove deletes the entry from the registry. Caller holds ent.mu; the
// entry must already be disarmed.
func (e *Engine) remove(ent *entry) {
	ent.removed = true
	e.mu.Lock()
	delete(e.sessions, ent.sess.ChannelID)
	live := len(e.sessions)
	e.mu.Unlock()
	metrics.SetLiveSessions(live)
}

// Live reports the number of sessions currently in the registry.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) sessionLogger(sess *model.Session) zerolog.Logger {
	return e.logger.With().
		Str(log.FieldChannelID, sess.ChannelID).
		Str(log.FieldCorrelationID, sess.CorrelationID).
		Logger()
}

func (e *Engine) logTransition(sess *model.Session, tr lifecycle.Transition) {
	metrics.IncTransition(string(tr.From), string(tr.To))
	lg := e.sessionLogger(sess)
	lg.Info().
		Str(log.FieldEvent, "session.transition").
		Str(log.FieldOldState, string(tr.From)).
		Str(log.FieldNewState, string(tr.To)).
		Msg(tr.Event.String())
}
