// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// AppConfig holds the validated runtime configuration for the daemon.
// Values are read from the environment with sensible defaults; validation
// happens once at startup.
type AppConfig struct {
	// ListenAddr is the bind address for the HTTP control API.
	ListenAddr string

	// DataDir holds mutable state (the stats database lives here).
	DataDir string

	// StoreBackend selects the stats store implementation ("sqlite" or "memory").
	StoreBackend string

	// DBPath is the stats database file. Defaults to <DataDir>/focusd.db.
	DBPath string

	// MaxSessionMinutes caps the duration accepted at initiate time.
	MaxSessionMinutes int

	// MaxExtendMinutes caps a single extension.
	MaxExtendMinutes int

	// RateLimitRPM is the per-IP request budget per minute on the control API.
	// Zero disables rate limiting.
	RateLimitRPM int

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration

	// LogLevel is the zerolog level name.
	LogLevel string
}

// Load reads configuration from the environment.
func Load() AppConfig {
	cfg := AppConfig{
		ListenAddr:        ParseString("FOCUSD_LISTEN", ":8080"),
		DataDir:           ParseString("FOCUSD_DATA", "/var/lib/focusd"),
		StoreBackend:      ParseString("FOCUSD_STORE", "sqlite"),
		DBPath:            ParseString("FOCUSD_DB_PATH", ""),
		MaxSessionMinutes: ParseInt("FOCUSD_MAX_SESSION_MINUTES", 240),
		MaxExtendMinutes:  ParseInt("FOCUSD_MAX_EXTEND_MINUTES", 240),
		RateLimitRPM:      ParseInt("FOCUSD_RATE_LIMIT_RPM", 600),
		ShutdownTimeout:   ParseDuration("FOCUSD_SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:          ParseString("LOG_LEVEL", "info"),
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "focusd.db")
	}
	return cfg
}

// Validate checks invariants that no default can repair.
func (c AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	switch c.StoreBackend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == "sqlite" && c.DBPath == "" {
		return fmt.Errorf("config: db path must be set for the sqlite backend")
	}
	if c.MaxSessionMinutes <= 0 {
		return fmt.Errorf("config: max session minutes must be > 0, got %d", c.MaxSessionMinutes)
	}
	if c.MaxExtendMinutes <= 0 {
		return fmt.Errorf("config: max extend minutes must be > 0, got %d", c.MaxExtendMinutes)
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("config: rate limit must be >= 0, got %d", c.RateLimitRPM)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown timeout must be > 0, got %v", c.ShutdownTimeout)
	}
	return nil
}
