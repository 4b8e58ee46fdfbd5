// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/focusd/internal/stats"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := s.stats.UserStats(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("user stats query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "stats query failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not_found", "no stats recorded for user")
		return
	}

	weekly, err := s.stats.WeeklyStats(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("weekly stats query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "stats query failed")
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 90 {
			days = parsed
		}
	}
	daily, err := s.stats.DailyStats(r.Context(), userID, days)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("daily stats query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "stats query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"weekly": weekly,
		"daily":  daily,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := s.stats.Leaderboard(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("leaderboard query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "stats query failed")
		return
	}
	if entries == nil {
		entries = []stats.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}
