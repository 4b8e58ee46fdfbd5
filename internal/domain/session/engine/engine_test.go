// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/focusd/internal/bus"
	"github.com/ManuGH/focusd/internal/clock"
	"github.com/ManuGH/focusd/internal/domain/session/lifecycle"
	"github.com/ManuGH/focusd/internal/domain/session/model"
	"github.com/ManuGH/focusd/internal/domain/session/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingStats counts store calls and can be told to fail, so tests can
// assert the log-and-continue contract.
type recordingStats struct {
	nextID        int64
	createCalls   int
	completeCalls int
	cancelCalls   int

	lastMinutes  int
	lastRecordID int64

	failCreate   error
	failComplete error
	failCancel   error
}

func (r *recordingStats) CreateSession(ctx context.Context, channelID, guildID string, durationMinutes int, participants []model.Participant) (int64, error) {
	r.createCalls++
	if r.failCreate != nil {
		return 0, r.failCreate
	}
	r.nextID++
	return r.nextID, nil
}

func (r *recordingStats) CompleteSession(ctx context.Context, recordID int64, minutes int) error {
	r.completeCalls++
	r.lastRecordID = recordID
	r.lastMinutes = minutes
	return r.failComplete
}

func (r *recordingStats) CancelSession(ctx context.Context, recordID int64) error {
	r.cancelCalls++
	r.lastRecordID = recordID
	return r.failCancel
}

var _ ports.StatsStore = (*recordingStats)(nil)

type harness struct {
	eng   *Engine
	clk   *clock.Fake
	stats *recordingStats
	bus   *bus.MemoryBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clk:   clock.NewFake(),
		stats: &recordingStats{},
		bus:   bus.NewMemoryBus(),
	}
	h.eng = New(h.clk, h.stats, h.bus, Limits{MaxSessionMinutes: 240, MaxExtendMinutes: 120})
	return h
}

func (h *harness) subscribe(t *testing.T, topic string) ports.Subscription {
	t.Helper()
	sub, err := h.bus.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func participants(ids ...string) []model.Participant {
	out := make([]model.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Participant{UserID: id, Username: id})
	}
	return out
}

// initiateAndStart drives chan-1 from nothing to Active with alice and bob.
func (h *harness) initiateAndStart(t *testing.T, durationMinutes int) {
	t.Helper()
	ctx := context.Background()
	_, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		GuildID:         "guild-1",
		DurationMinutes: durationMinutes,
		Participants:    participants("alice", "bob"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)
	require.NoError(t, h.eng.Confirm(ctx, "chan-1", "bob"))
	res, err := h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	require.True(t, res.Started)
	require.NoError(t, res.Warn)
}

func TestInitiate_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  InitiateRequest
	}{
		{"zero duration", InitiateRequest{ChannelID: "c", DurationMinutes: 0, Participants: participants("a"), InitiatorID: "a"}},
		{"negative duration", InitiateRequest{ChannelID: "c", DurationMinutes: -5, Participants: participants("a"), InitiatorID: "a"}},
		{"duration beyond limit", InitiateRequest{ChannelID: "c", DurationMinutes: 241, Participants: participants("a"), InitiatorID: "a"}},
		{"empty participant set", InitiateRequest{ChannelID: "c", DurationMinutes: 25, InitiatorID: "a"}},
		{"initiator outside set", InitiateRequest{ChannelID: "c", DurationMinutes: 25, Participants: participants("b"), InitiatorID: "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.eng.Initiate(ctx, tc.req)
			require.ErrorIs(t, err, lifecycle.ErrBadRequest)
		})
	}
	assert.Zero(t, h.eng.Live())
}

func TestInitiate_OneSessionPerChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionPending, st.State)

	_, err = h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 50,
		Participants:    participants("carol"),
		InitiatorID:     "carol",
	})
	require.ErrorIs(t, err, lifecycle.ErrAlreadyExists)

	// A different channel is independent.
	_, err = h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-2",
		DurationMinutes: 25,
		Participants:    participants("carol"),
		InitiatorID:     "carol",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.eng.Live())
}

func TestChannelFreedAfterTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.initiateAndStart(t, 25)
	_, err := h.eng.EndEarly(ctx, "chan-1", "alice")
	require.NoError(t, err)

	// The channel is free again immediately.
	_, err = h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)
}

func TestConfirm_GateAndIdempotence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice", "bob", "carol"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionPending, st.State)

	// The initiator is pre-confirmed; the gate stays closed until the rest
	// confirm.
	res, err := h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	assert.False(t, res.Started)

	require.NoError(t, h.eng.Confirm(ctx, "chan-1", "bob"))
	res, err = h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	assert.False(t, res.Started, "gate must hold until every participant confirmed")

	// Repeat confirmation is a no-op, not an error.
	require.NoError(t, h.eng.Confirm(ctx, "chan-1", "bob"))

	// An outsider is NotFound.
	require.ErrorIs(t, h.eng.Confirm(ctx, "chan-1", "mallory"), lifecycle.ErrNotFound)

	require.NoError(t, h.eng.Confirm(ctx, "chan-1", "carol"))
	res, err = h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, 1, h.stats.createCalls)

	// Starting again is a no-op and must not create a second record.
	res, err = h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, 1, h.stats.createCalls)

	// Confirming after the start is still idempotent for members.
	require.NoError(t, h.eng.Confirm(ctx, "chan-1", "bob"))
}

func TestTimerFired_CompletesAtDuration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t, ports.TopicSessionCompleted)

	h.initiateAndStart(t, 25)
	require.Equal(t, 1, h.clk.PendingTimers())

	h.clk.Advance(25 * time.Minute)

	assert.Equal(t, 1, h.stats.completeCalls)
	assert.Equal(t, 25, h.stats.lastMinutes)
	assert.Zero(t, h.eng.Live())
	assert.Zero(t, h.clk.PendingTimers())

	_, err := h.eng.Status(ctx, "chan-1")
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	select {
	case ev := <-sub.C():
		completed, ok := ev.(ports.CompletedEvent)
		require.True(t, ok)
		assert.Equal(t, "chan-1", completed.ChannelID)
		assert.Equal(t, 25, completed.Minutes)
		assert.Equal(t, model.ReasonTimerFired, completed.Reason)
		assert.Len(t, completed.Participants, 2)
	default:
		t.Fatal("expected a completion event")
	}
}

func TestManualPause_Permissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	require.ErrorIs(t, h.eng.ManualPause(ctx, "chan-1", "bob"), lifecycle.ErrPermissionDenied)
	require.ErrorIs(t, h.eng.ManualPause(ctx, "chan-1", "mallory"), lifecycle.ErrPermissionDenied)

	require.NoError(t, h.eng.ManualPause(ctx, "chan-1", "alice"))
	require.ErrorIs(t, h.eng.ManualResume(ctx, "chan-1", "bob"), lifecycle.ErrPermissionDenied)
	require.NoError(t, h.eng.ManualResume(ctx, "chan-1", "alice"))
}

func TestManualPause_StateChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)

	// Pausing a pending session is a state error, not a permission error.
	require.ErrorIs(t, h.eng.ManualPause(ctx, "chan-1", "alice"), lifecycle.ErrInvalidState)
	require.ErrorIs(t, h.eng.ManualResume(ctx, "chan-1", "alice"), lifecycle.ErrInvalidState)

	res, err := h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	require.True(t, res.Started)

	require.ErrorIs(t, h.eng.ManualResume(ctx, "chan-1", "alice"), lifecycle.ErrInvalidState)
	require.NoError(t, h.eng.ManualPause(ctx, "chan-1", "alice"))
	require.ErrorIs(t, h.eng.ManualPause(ctx, "chan-1", "alice"), lifecycle.ErrInvalidState)
}

func TestPauseResume_Accounting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	h.clk.Advance(5 * time.Minute)
	require.NoError(t, h.eng.ManualPause(ctx, "chan-1", "alice"))
	assert.Zero(t, h.clk.PendingTimers(), "pause must disarm the completion timer")

	// A long pause adds nothing to elapsed time.
	h.clk.Advance(90 * time.Minute)
	st, err := h.eng.Status(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionPausedManual, st.State)
	assert.InDelta(t, 5.0, st.ElapsedMinutes, 1e-9)
	assert.InDelta(t, 20.0, st.RemainingMinutes, 1e-9)

	require.NoError(t, h.eng.ManualResume(ctx, "chan-1", "alice"))
	require.Equal(t, 1, h.clk.PendingTimers())

	// The re-armed timer fires after exactly the remaining 20 minutes.
	h.clk.Advance(20 * time.Minute)
	assert.Equal(t, 1, h.stats.completeCalls)
	assert.Equal(t, 25, h.stats.lastMinutes)
	assert.Zero(t, h.eng.Live())
}

func TestPresence_AutoPauseAndResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pausedSub := h.subscribe(t, ports.TopicSessionAutoPaused)
	resumedSub := h.subscribe(t, ports.TopicSessionResumed)

	h.initiateAndStart(t, 25)
	h.clk.Advance(10 * time.Minute)

	// bob left the channel: auto-pause.
	paused, err := h.eng.PresenceLeft(ctx, "chan-1", []string{"alice"})
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Zero(t, h.clk.PendingTimers())

	select {
	case ev := <-pausedSub.C():
		ap, ok := ev.(ports.AutoPausedEvent)
		require.True(t, ok)
		assert.InDelta(t, 15.0, ap.RemainingMinutes, 1e-9)
	default:
		t.Fatal("expected an autopause event")
	}

	// Time passing while auto-paused never completes the session.
	h.clk.Advance(2 * time.Hour)
	st, err := h.eng.Status(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionPausedAuto, st.State)
	assert.InDelta(t, 10.0, st.ElapsedMinutes, 1e-9)

	// Partial return keeps the session frozen.
	resumed, err := h.eng.PresenceReturned(ctx, "chan-1", []string{"bob"})
	require.NoError(t, err)
	assert.False(t, resumed)

	resumed, err = h.eng.PresenceReturned(ctx, "chan-1", []string{"alice", "bob"})
	require.NoError(t, err)
	assert.True(t, resumed)
	require.Equal(t, 1, h.clk.PendingTimers())

	select {
	case ev := <-resumedSub.C():
		rs, ok := ev.(ports.ResumedEvent)
		require.True(t, ok)
		assert.InDelta(t, 15.0, rs.RemainingMinutes, 1e-9)
	default:
		t.Fatal("expected a resume event")
	}

	h.clk.Advance(15 * time.Minute)
	assert.Equal(t, 25, h.stats.lastMinutes)
	assert.Zero(t, h.eng.Live())
}

func TestPresence_NoOpOutsideActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice", "bob"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)

	// Presence churn during Pending changes nothing.
	paused, err := h.eng.PresenceLeft(ctx, "chan-1", []string{"alice"})
	require.NoError(t, err)
	assert.False(t, paused)

	// Everyone present: an Active session is untouched by a join event.
	require.NoError(t, h.eng.Confirm(ctx, "chan-1", "bob"))
	_, err = h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	paused, err = h.eng.PresenceLeft(ctx, "chan-1", []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestPresence_NeverResumesManualPause(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	require.NoError(t, h.eng.ManualPause(ctx, "chan-1", "alice"))

	resumed, err := h.eng.PresenceReturned(ctx, "chan-1", []string{"alice", "bob"})
	require.NoError(t, err)
	assert.False(t, resumed)

	st, err := h.eng.Status(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionPausedManual, st.State)

	// And a presence loss while manually paused stays a no-op too.
	paused, err := h.eng.PresenceLeft(ctx, "chan-1", []string{"alice"})
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestExtend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	require.ErrorIs(t, h.eng.Extend(ctx, "chan-1", "alice", 0), lifecycle.ErrBadRequest)
	require.ErrorIs(t, h.eng.Extend(ctx, "chan-1", "alice", 121), lifecycle.ErrBadRequest)
	require.ErrorIs(t, h.eng.Extend(ctx, "chan-1", "mallory", 10), lifecycle.ErrPermissionDenied)

	// Any participant may extend, not only the initiator.
	require.NoError(t, h.eng.Extend(ctx, "chan-1", "bob", 10))

	st, err := h.eng.Status(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, 35, st.DurationMinutes)

	// The original deadline passes without completing.
	h.clk.Advance(25 * time.Minute)
	assert.Zero(t, h.stats.completeCalls)
	require.Equal(t, 1, h.eng.Live())

	h.clk.Advance(10 * time.Minute)
	assert.Equal(t, 1, h.stats.completeCalls)
	assert.Equal(t, 35, h.stats.lastMinutes)
}

func TestExtend_WhilePausedReArmsOnResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	h.clk.Advance(5 * time.Minute)
	require.NoError(t, h.eng.ManualPause(ctx, "chan-1", "alice"))
	require.NoError(t, h.eng.Extend(ctx, "chan-1", "alice", 15))
	assert.Zero(t, h.clk.PendingTimers(), "extending a paused session must not arm a timer")

	require.NoError(t, h.eng.ManualResume(ctx, "chan-1", "alice"))
	// 5 elapsed of 40 total: 35 remain.
	h.clk.Advance(35 * time.Minute)
	assert.Equal(t, 1, h.stats.completeCalls)
	assert.Equal(t, 40, h.stats.lastMinutes)
}

func TestExtend_PendingIsInvalidState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)
	require.ErrorIs(t, h.eng.Extend(ctx, "chan-1", "alice", 10), lifecycle.ErrInvalidState)
}

// TestEndEarly_FullScenario walks the canonical flow: initiate, confirm,
// run 5 minutes, pause, dead air, resume, run 7 more, end early. The store
// must see exactly one completion with the rounded total of 12.
func TestEndEarly_FullScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t, ports.TopicSessionCompleted)

	h.initiateAndStart(t, 25)

	h.clk.Advance(5 * time.Minute)
	require.NoError(t, h.eng.ManualPause(ctx, "chan-1", "alice"))
	h.clk.Advance(30 * time.Minute)
	require.NoError(t, h.eng.ManualResume(ctx, "chan-1", "alice"))
	h.clk.Advance(7 * time.Minute)

	res, err := h.eng.EndEarly(ctx, "chan-1", "bob")
	require.NoError(t, err)
	require.NoError(t, res.Warn)
	assert.Equal(t, 12, res.Minutes)

	assert.Equal(t, 1, h.stats.completeCalls)
	assert.Equal(t, 12, h.stats.lastMinutes)
	assert.Zero(t, h.eng.Live())
	assert.Zero(t, h.clk.PendingTimers())

	select {
	case ev := <-sub.C():
		completed := ev.(ports.CompletedEvent)
		assert.Equal(t, 12, completed.Minutes)
		assert.Equal(t, model.ReasonEndedEarly, completed.Reason)
	default:
		t.Fatal("expected a completion event")
	}

	// The dead timer from the ended session must never fire into the next
	// session on this channel.
	h.initiateAndStart(t, 25)
	h.clk.Advance(13 * time.Minute)
	st, err := h.eng.Status(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, st.State)
}

func TestEndEarly_Permissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	_, err := h.eng.EndEarly(ctx, "chan-1", "mallory")
	require.ErrorIs(t, err, lifecycle.ErrPermissionDenied)

	_, err = h.eng.EndEarly(ctx, "no-such-channel", "alice")
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestEndEarly_FromPause(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	h.clk.Advance(8 * time.Minute)
	_, err := h.eng.PresenceLeft(ctx, "chan-1", []string{"alice"})
	require.NoError(t, err)

	h.clk.Advance(time.Hour)
	res, err := h.eng.EndEarly(ctx, "chan-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 8, res.Minutes, "paused time must not count")
}

func TestCancel_BeforeStartMakesNoStoreCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice", "bob"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)

	// Before the start any participant may abandon it.
	res, err := h.eng.Cancel(ctx, "chan-1", "bob")
	require.NoError(t, err)
	require.NoError(t, res.Warn)

	assert.Zero(t, h.stats.createCalls)
	assert.Zero(t, h.stats.cancelCalls)
	assert.Zero(t, h.stats.completeCalls)
	assert.Zero(t, h.eng.Live())
}

func TestCancel_AfterStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.initiateAndStart(t, 25)

	// After the start only the initiator keeps cancel authority.
	_, err := h.eng.Cancel(ctx, "chan-1", "bob")
	require.ErrorIs(t, err, lifecycle.ErrPermissionDenied)

	res, err := h.eng.Cancel(ctx, "chan-1", "alice")
	require.NoError(t, err)
	require.NoError(t, res.Warn)

	assert.Equal(t, 1, h.stats.cancelCalls)
	assert.Zero(t, h.stats.completeCalls, "cancel is not a completion")
	assert.Zero(t, h.eng.Live())
	assert.Zero(t, h.clk.PendingTimers())

	// The timer deadline passing after the cancel stays silent.
	h.clk.Advance(time.Hour)
	assert.Zero(t, h.stats.completeCalls)
}

func TestStatsCreateFailure_SessionRunsWithoutRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stats.failCreate = context.DeadlineExceeded

	_, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)

	res, err := h.eng.StartIfAllConfirmed(ctx, "chan-1")
	require.NoError(t, err)
	assert.True(t, res.Started, "a stats failure must not block the start")
	require.Error(t, res.Warn)

	st, err := h.eng.Status(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, st.State)

	// With no record there is nothing to complete in the store.
	h.clk.Advance(25 * time.Minute)
	assert.Zero(t, h.stats.completeCalls)
	assert.Zero(t, h.eng.Live())
}

func TestStatsCompleteFailure_SessionStillRemoved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stats.failComplete = context.DeadlineExceeded
	h.initiateAndStart(t, 25)

	h.clk.Advance(10 * time.Minute)
	res, err := h.eng.EndEarly(ctx, "chan-1", "alice")
	require.NoError(t, err)
	require.Error(t, res.Warn)
	assert.Equal(t, 10, res.Minutes)
	assert.Zero(t, h.eng.Live(), "stats failure must not keep the session in the registry")
}

func TestStaleTimerCallback_IsSilentNoOp(t *testing.T) {
	h := newHarness(t)
	h.initiateAndStart(t, 25)

	// Capture the armed entry and generation, then end early before the
	// deadline.
	h.eng.mu.Lock()
	ent := h.eng.sessions["chan-1"]
	h.eng.mu.Unlock()
	ent.mu.Lock()
	staleGen := ent.timerGen
	ent.mu.Unlock()

	_, err := h.eng.EndEarly(context.Background(), "chan-1", "alice")
	require.NoError(t, err)
	require.Equal(t, 1, h.stats.completeCalls)

	// A stale fire against the removed entry is swallowed.
	h.eng.onTimerFired(ent, staleGen)
	assert.Equal(t, 1, h.stats.completeCalls)

	// Start a fresh session on the channel; the stale callback still holds
	// the dead entry and must not touch the successor.
	h.initiateAndStart(t, 25)
	h.eng.onTimerFired(ent, staleGen)
	st, err := h.eng.Status(context.Background(), "chan-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, st.State)
	assert.Equal(t, 1, h.stats.completeCalls)
}

func TestNilBusIsTolerated(t *testing.T) {
	h := newHarness(t)
	h.eng = New(h.clk, h.stats, nil, Limits{})
	h.initiateAndStart(t, 25)
	h.clk.Advance(25 * time.Minute)
	assert.Equal(t, 1, h.stats.completeCalls)
}

// TestTimerFired_SlowSubscriberDoesNotWedgeChannel saturates the completed
// topic's subscriber buffer before the deadline. The fired callback must
// still finalize the session, free the registry slot, and accept a new
// session on the channel; only the notification itself may be dropped.
func TestTimerFired_SlowSubscriberDoesNotWedgeChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t, ports.TopicSessionCompleted)

	// Fill the buffer so the completion publish cannot be delivered.
	for i := 0; i < 64; i++ {
		require.NoError(t, h.bus.Publish(ctx, ports.TopicSessionCompleted, i))
	}

	h.initiateAndStart(t, 25)
	h.clk.Advance(25 * time.Minute)

	assert.Equal(t, 1, h.stats.completeCalls)
	assert.Zero(t, h.eng.Live(), "registry slot must be freed despite the full subscriber")

	// The channel is immediately usable again.
	_, err := h.eng.Initiate(ctx, InitiateRequest{
		ChannelID:       "chan-1",
		DurationMinutes: 25,
		Participants:    participants("alice"),
		InitiatorID:     "alice",
	})
	require.NoError(t, err)

	// Drain the backlog: the completion event was dropped, not delivered late.
	drained := 0
	for {
		select {
		case ev := <-sub.C():
			if _, ok := ev.(ports.CompletedEvent); ok {
				t.Fatal("completion event must have been dropped while the buffer was full")
			}
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 64, drained)
}

func TestEndEarly_SlowSubscriberDoesNotWedgeChannel(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, ports.TopicSessionCompleted)

	for i := 0; i < 64; i++ {
		require.NoError(t, h.bus.Publish(context.Background(), ports.TopicSessionCompleted, i))
	}

	h.initiateAndStart(t, 25)
	h.clk.Advance(10 * time.Minute)

	// The caller's context bounds the publish; the per-channel state is
	// final before the publish is even attempted.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := h.eng.EndEarly(ctx, "chan-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Minutes)
	assert.Equal(t, 1, h.stats.completeCalls)
	assert.Zero(t, h.eng.Live())

	_, err = h.eng.Status(context.Background(), "chan-1")
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}
