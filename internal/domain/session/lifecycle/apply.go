// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"fmt"
	"time"

	"github.com/ManuGH/focusd/internal/domain/session/model"
)

// Dispatch resolves and applies the transition for the given event. It is
// the only mutation path for session state and timestamps; callers hold the
// per-channel lock. A missing edge is reported as ErrInvalidState and the
// session is left untouched.
func Dispatch(sess *model.Session, ev EventKind, now time.Time) (Transition, error) {
	tr, ok := TransitionFor(sess.State, ev)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s does not accept %s", ErrInvalidState, sess.State, ev)
	}
	ApplyTransition(sess, tr, now)
	return tr, nil
}

// ApplyTransition mutates the session according to the transition's
// timestamp rules:
//
//   - entering Active starts a run segment (StartTime set, PausedTime cleared)
//   - entering a paused state freezes it (segment folded into ElapsedMinutes,
//     PausedTime set, StartTime cleared)
//   - entering a terminal state folds any in-progress segment so the final
//     elapsed value is complete
func ApplyTransition(sess *model.Session, tr Transition, now time.Time) {
	switch {
	case tr.To == model.SessionActive:
		sess.StartTime = now
		sess.PausedTime = time.Time{}
	case tr.To.IsPaused():
		freeze(sess, now)
		sess.PausedTime = now
	case tr.To.IsTerminal():
		freeze(sess, now)
	}
	sess.State = tr.To
}

// freeze folds the in-progress run segment into the accumulated total and
// clears StartTime. A session that is not running is left as is, so the
// fold can never double-count a segment.
func freeze(sess *model.Session, now time.Time) {
	if sess.Running() {
		sess.ElapsedMinutes += now.Sub(sess.StartTime).Minutes()
	}
	sess.StartTime = time.Time{}
}
