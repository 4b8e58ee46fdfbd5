// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package stats persists session history and aggregates per-user focus
// totals. The engine only consumes the ports.StatsStore subset; the query
// surface serves the read API.
package stats

import (
	"context"
	"fmt"

	"github.com/ManuGH/focusd/internal/domain/session/ports"
)

// UserStats are lifetime totals for one user.
type UserStats struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	TotalMinutes  int    `json:"totalMinutes"`
	TotalSessions int    `json:"totalSessions"`
}

// DailyStat is one day's completed minutes for a user.
type DailyStat struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// WeeklyStats aggregate the trailing seven days.
type WeeklyStats struct {
	TotalMinutes  int `json:"totalMinutes"`
	TotalSessions int `json:"totalSessions"`
}

// LeaderboardEntry ranks users by lifetime minutes.
type LeaderboardEntry struct {
	Username      string `json:"username"`
	TotalMinutes  int    `json:"totalMinutes"`
	TotalSessions int    `json:"totalSessions"`
	Rank          int    `json:"rank"`
}

// Store is the full stats surface: the engine-facing write contract plus
// the read queries.
type Store interface {
	ports.StatsStore

	UserStats(ctx context.Context, userID string) (*UserStats, error)
	DailyStats(ctx context.Context, userID string, days int) ([]DailyStat, error)
	WeeklyStats(ctx context.Context, userID string) (WeeklyStats, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	Close() error
}

// OpenStore creates a Store based on the backend configuration.
func OpenStore(backend, path string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSqliteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
