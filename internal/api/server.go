// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the session engine's inbound operations over a thin
// REST adapter, so any gateway (a chat bot, a CLI, a test harness) can
// drive sessions without linking the engine directly.
package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/focusd/internal/config"
	"github.com/ManuGH/focusd/internal/domain/session/engine"
	"github.com/ManuGH/focusd/internal/log"
	"github.com/ManuGH/focusd/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server wires the engine and the stats store behind the HTTP control API.
type Server struct {
	engine *engine.Engine
	stats  stats.Store
	cfg    config.AppConfig
	logger zerolog.Logger
}

func NewServer(eng *engine.Engine, store stats.Store, cfg config.AppConfig) *Server {
	return &Server{
		engine: eng,
		stats:  store,
		cfg:    cfg,
		logger: log.WithComponent("api"),
	}
}

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger))
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	if s.cfg.RateLimitRPM > 0 {
		r.Use(httprate.Limit(
			s.cfg.RateLimitRPM,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleInitiate)
			r.Route("/{channelID}", func(r chi.Router) {
				r.Get("/", s.handleStatus)
				r.Post("/confirm", s.handleConfirm)
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
				r.Post("/extend", s.handleExtend)
				r.Post("/end", s.handleEnd)
				r.Post("/cancel", s.handleCancel)
				r.Post("/presence", s.handlePresence)
			})
		})
		r.Get("/users/{userID}/stats", s.handleUserStats)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_sessions": s.engine.Live(),
	})
}
