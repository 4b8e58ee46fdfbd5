// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focusd_session_starts_total",
			Help: "Total sessions that reached the Active state.",
		},
	)

	sessionEndTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_session_end_total",
			Help: "Total finalized sessions by outcome.",
		},
		[]string{"outcome"},
	)

	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_session_transitions_total",
			Help: "Session state machine transitions.",
		},
		[]string{"state_from", "state_to"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusd_sessions_live",
			Help: "Sessions currently held in the registry (any non-terminal state).",
		},
	)

	completedMinutes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focusd_session_completed_minutes",
			Help:    "Final elapsed minutes reported for completed sessions.",
			Buckets: []float64{5, 15, 25, 45, 60, 90, 120, 180, 240},
		},
	)

	statsStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusd_stats_store_errors_total",
			Help: "Stats store call failures by operation (log-and-continue path).",
		},
		[]string{"op"},
	)
)

// IncSessionStart records a Pending to Active transition.
func IncSessionStart() { sessionStartsTotal.Inc() }

// IncSessionEnd records a terminal transition by outcome ("completed" or "cancelled").
func IncSessionEnd(outcome string) { sessionEndTotal.WithLabelValues(outcome).Inc() }

// IncTransition records a state machine edge.
func IncTransition(from, to string) { stateTransitions.WithLabelValues(from, to).Inc() }

// SetLiveSessions tracks registry occupancy.
func SetLiveSessions(n int) { activeSessions.Set(float64(n)) }

// ObserveCompletedMinutes records the rounded minutes of a completed session.
func ObserveCompletedMinutes(minutes int) { completedMinutes.Observe(float64(minutes)) }

// IncStatsStoreError counts a failed stats store call.
func IncStatsStoreError(op string) { statsStoreErrorsTotal.WithLabelValues(op).Inc() }
