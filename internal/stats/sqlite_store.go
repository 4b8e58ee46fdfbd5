// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ManuGH/focusd/internal/domain/session/model"
	"github.com/ManuGH/focusd/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore initializes a new SQLite stats store.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stats store: migration failed: %w", err)
	}

	return s, nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return err
	}

	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		total_minutes INTEGER DEFAULT 0,
		total_sessions INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS session_participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		minutes_completed INTEGER DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES sessions(id),
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_guild ON sessions(guild_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_participants_session ON session_participants(session_id);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON session_participants(user_id);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateSession records a session that reached Active, inserting the
// participant rows and upserting their user records in one transaction.
func (s *SqliteStore) CreateSession(ctx context.Context, channelID, guildID string, durationMinutes int, participants []model.Participant) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (channel_id, guild_id, duration_minutes, started_at, status)
		VALUES (?, ?, ?, datetime('now'), 'active')`,
		channelID, guildID, durationMinutes)
	if err != nil {
		return 0, fmt.Errorf("stats: insert session: %w", err)
	}
	recordID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, p := range participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (user_id, username)
			VALUES (?, ?)
			ON CONFLICT(user_id) DO UPDATE SET username = excluded.username`,
			p.UserID, p.Username); err != nil {
			return 0, fmt.Errorf("stats: upsert user %s: %w", p.UserID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_participants (session_id, user_id, username)
			VALUES (?, ?, ?)`,
			recordID, p.UserID, p.Username); err != nil {
			return 0, fmt.Errorf("stats: insert participant %s: %w", p.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return recordID, nil
}

// CompleteSession marks the record completed and credits every participant
// with the rounded minutes, all in one transaction.
func (s *SqliteStore) CompleteSession(ctx context.Context, recordID int64, minutes int) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET status = 'completed', completed_at = datetime('now')
		WHERE id = ?`, recordID); err != nil {
		return fmt.Errorf("stats: complete session %d: %w", recordID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE session_participants
		SET minutes_completed = ?
		WHERE session_id = ?`, minutes, recordID); err != nil {
		return fmt.Errorf("stats: credit participants of %d: %w", recordID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_minutes = total_minutes + ?, total_sessions = total_sessions + 1
		WHERE user_id IN (SELECT user_id FROM session_participants WHERE session_id = ?)`,
		minutes, recordID); err != nil {
		return fmt.Errorf("stats: update user totals for %d: %w", recordID, err)
	}

	return tx.Commit()
}

// CancelSession marks the record cancelled. Participant minutes stay zero.
func (s *SqliteStore) CancelSession(ctx context.Context, recordID int64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE sessions
		SET status = 'cancelled'
		WHERE id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("stats: cancel session %d: %w", recordID, err)
	}
	return nil
}

// UserStats returns lifetime totals, or nil if the user has no record.
func (s *SqliteStore) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT user_id, username, total_minutes, total_sessions
		FROM users
		WHERE user_id = ?`, userID)

	var out UserStats
	if err := row.Scan(&out.UserID, &out.Username, &out.TotalMinutes, &out.TotalSessions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("stats: user %s: %w", userID, err)
	}
	return &out, nil
}

// DailyStats returns per-day completed minutes over the trailing window.
func (s *SqliteStore) DailyStats(ctx context.Context, userID string, days int) ([]DailyStat, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DATE(s.completed_at) AS date, SUM(sp.minutes_completed) AS minutes
		FROM sessions s
		JOIN session_participants sp ON s.id = sp.session_id
		WHERE sp.user_id = ?
		  AND s.status = 'completed'
		  AND s.completed_at >= datetime('now', '-' || ? || ' days')
		GROUP BY DATE(s.completed_at)
		ORDER BY date DESC`, userID, days)
	if err != nil {
		return nil, fmt.Errorf("stats: daily for %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []DailyStat
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Date, &d.Minutes); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// WeeklyStats aggregates the trailing seven days.
func (s *SqliteStore) WeeklyStats(ctx context.Context, userID string) (WeeklyStats, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(sp.minutes_completed), 0), COUNT(DISTINCT s.id)
		FROM sessions s
		JOIN session_participants sp ON s.id = sp.session_id
		WHERE sp.user_id = ?
		  AND s.status = 'completed'
		  AND s.completed_at >= datetime('now', '-7 days')`, userID)

	var out WeeklyStats
	if err := row.Scan(&out.TotalMinutes, &out.TotalSessions); err != nil {
		return WeeklyStats{}, fmt.Errorf("stats: weekly for %s: %w", userID, err)
	}
	return out, nil
}

// Leaderboard ranks users with at least one completed session.
func (s *SqliteStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT username, total_minutes, total_sessions,
		       ROW_NUMBER() OVER (ORDER BY total_minutes DESC) AS rank
		FROM users
		WHERE total_sessions > 0
		ORDER BY total_minutes DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("stats: leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.TotalMinutes, &e.TotalSessions, &e.Rank); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Store = (*SqliteStore)(nil)
