// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stats

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/focusd/internal/domain/session/model"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*memRecord
	users   map[string]*UserStats
}

type memRecord struct {
	channelID    string
	guildID      string
	duration     int
	status       string
	participants []model.Participant
	minutes      int
	completedAt  time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		records: make(map[int64]*memRecord),
		users:   make(map[string]*UserStats),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateSession(ctx context.Context, channelID, guildID string, durationMinutes int, participants []model.Participant) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.records[id] = &memRecord{
		channelID:    channelID,
		guildID:      guildID,
		duration:     durationMinutes,
		status:       "active",
		participants: append([]model.Participant(nil), participants...),
	}
	for _, p := range participants {
		if u, ok := s.users[p.UserID]; ok {
			u.Username = p.Username
		} else {
			s.users[p.UserID] = &UserStats{UserID: p.UserID, Username: p.Username}
		}
	}
	return id, nil
}

func (s *MemoryStore) CompleteSession(ctx context.Context, recordID int64, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("stats: no record %d", recordID)
	}
	rec.status = "completed"
	rec.minutes = minutes
	rec.completedAt = time.Now().UTC()
	for _, p := range rec.participants {
		u := s.users[p.UserID]
		u.TotalMinutes += minutes
		u.TotalSessions++
	}
	return nil
}

func (s *MemoryStore) CancelSession(ctx context.Context, recordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("stats: no record %d", recordID)
	}
	rec.status = "cancelled"
	return nil
}

func (s *MemoryStore) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) DailyStats(ctx context.Context, userID string, days int) ([]DailyStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	byDate := make(map[string]int)
	for _, rec := range s.records {
		if rec.status != "completed" || rec.completedAt.Before(cutoff) {
			continue
		}
		for _, p := range rec.participants {
			if p.UserID == userID {
				byDate[rec.completedAt.Format("2006-01-02")] += rec.minutes
			}
		}
	}
	out := make([]DailyStat, 0, len(byDate))
	for date, minutes := range byDate {
		out = append(out, DailyStat{Date: date, Minutes: minutes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *MemoryStore) WeeklyStats(ctx context.Context, userID string) (WeeklyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	var out WeeklyStats
	for _, rec := range s.records {
		if rec.status != "completed" || rec.completedAt.Before(cutoff) {
			continue
		}
		for _, p := range rec.participants {
			if p.UserID == userID {
				out.TotalMinutes += rec.minutes
				out.TotalSessions++
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranked := make([]*UserStats, 0, len(s.users))
	for _, u := range s.users {
		if u.TotalSessions > 0 {
			ranked = append(ranked, u)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].TotalMinutes > ranked[j].TotalMinutes })

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]LeaderboardEntry, 0, len(ranked))
	for i, u := range ranked {
		out = append(out, LeaderboardEntry{
			Username:      u.Username,
			TotalMinutes:  u.TotalMinutes,
			TotalSessions: u.TotalSessions,
			Rank:          i + 1,
		})
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
