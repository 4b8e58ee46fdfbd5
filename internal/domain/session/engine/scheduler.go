// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"time"

	"github.com/ManuGH/focusd/internal/domain/session/lifecycle"
	"github.com/ManuGH/focusd/internal/domain/session/model"
	"github.com/ManuGH/focusd/internal/domain/session/ports"
)

// arm schedules the completion callback for the session's remaining
// duration. Caller holds ent.mu. Re-arming always disarms first, and the
// bumped generation token invalidates any callback already in flight.
func (e *Engine) arm(ent *entry) {
	e.disarm(ent)
	ent.timerGen++
	gen := ent.timerGen
	remaining := ent.sess.RemainingDuration(e.clk.Now())
	ent.timer = e.clk.AfterFunc(remaining, func() {
		e.onTimerFired(ent, gen)
	})
}

// disarm cancels a pending completion callback. No effect if none is armed.
// Caller holds ent.mu.
func (e *Engine) disarm(ent *entry) {
	if ent.timer != nil {
		ent.timer.Stop()
		ent.timer = nil
	}
	ent.timerGen++
}

// completionPublishTimeout bounds the bus publish in the timer path, which
// has no caller context to cancel it.
const completionPublishTimeout = time.Second

// onTimerFired runs when the completion timer elapses. The closure holds
// the entry it was armed for, never a channel lookup, so a callback from an
// ended session can never reach a successor session on the same channel.
// It re-validates under the per-channel lock: the entry must still be in
// the registry, the generation must match (no disarm or re-arm happened
// since), and the session must still be Active. A stale callback is a
// silent no-op, never an error, so a manual end racing a natural fire
// cannot double-complete. The completion notification is published after
// the entry lock is released; a slow subscriber can delay the notification
// but never the registry removal.
func (e *Engine) onTimerFired(ent *entry, gen uint64) {
	ent.mu.Lock()
	if ent.removed || ent.timerGen != gen || ent.sess.State != model.SessionActive {
		ent.mu.Unlock()
		return
	}
	now := e.clk.Now()
	tr, err := lifecycle.Dispatch(ent.sess, lifecycle.EvTimerFired, now)
	if err != nil {
		ent.mu.Unlock()
		return
	}
	e.logTransition(ent.sess, tr)

	ctx, cancel := context.WithTimeout(context.Background(), completionPublishTimeout)
	defer cancel()
	_, done := e.finalizeCompleted(ctx, ent, tr)
	ent.mu.Unlock()

	e.publish(ctx, ports.TopicSessionCompleted, done)
}
