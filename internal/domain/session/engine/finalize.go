// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"fmt"

	"github.com/ManuGH/focusd/internal/domain/session/lifecycle"
	"github.com/ManuGH/focusd/internal/domain/session/ports"
	"github.com/ManuGH/focusd/internal/log"
	"github.com/ManuGH/focusd/internal/metrics"
)

// finalizeCompleted runs the shared tail of every Completed transition:
// report the rounded minutes to the stats store and remove the session from
// the registry. Caller holds ent.mu and has already applied the terminal
// transition, so the session's elapsed total is final. The completion
// notification is returned, not published here: publishing can block on a
// slow subscriber and must never happen under the per-channel lock.
func (e *Engine) finalizeCompleted(ctx context.Context, ent *entry, tr lifecycle.Transition) (EndResult, ports.CompletedEvent) {
	sess := ent.sess
	res := EndResult{Minutes: sess.RoundedElapsedAt(e.clk.Now())}

	e.disarm(ent)

	if sess.RecordID != 0 {
		if err := e.stats.CompleteSession(ctx, sess.RecordID, res.Minutes); err != nil {
			metrics.IncStatsStoreError("complete")
			res.Warn = fmt.Errorf("stats completion failed: %w", err)
			lg := e.sessionLogger(sess)
			lg.Warn().Err(err).
				Str(log.FieldEvent, "stats.complete_failed").
				Int64(log.FieldRecordID, sess.RecordID).
				Msg("session removed despite stats failure")
		}
	}

	metrics.IncSessionEnd("completed")
	metrics.ObserveCompletedMinutes(res.Minutes)

	lg := e.sessionLogger(sess)
	lg.Info().
		Str(log.FieldEvent, "session.completed").
		Str(log.FieldReason, string(tr.Reason)).
		Int(log.FieldElapsedMinutes, res.Minutes).
		Msg("session completed")

	e.remove(ent)

	return res, ports.CompletedEvent{
		ChannelID:    sess.ChannelID,
		GuildID:      sess.GuildID,
		Minutes:      res.Minutes,
		Reason:       tr.Reason,
		Participants: sess.ParticipantList(),
	}
}

// publish sends a lifecycle notification, dropping it if no bus is wired.
// Publish failures are logged and never affect session state. Callers must
// not hold an entry lock: a full subscriber blocks until ctx ends.
func (e *Engine) publish(ctx context.Context, topic string, event interface{}) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, topic, event); err != nil {
		e.logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish lifecycle event")
	}
}
