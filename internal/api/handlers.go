// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/focusd/internal/domain/session/engine"
	"github.com/ManuGH/focusd/internal/domain/session/model"
	"github.com/go-chi/chi/v5"
)

type initiateRequest struct {
	ChannelID       string `json:"channelId"`
	GuildID         string `json:"guildId"`
	DurationMinutes int    `json:"durationMinutes"`
	InitiatorID     string `json:"initiatorId"`
	Participants    []struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	} `json:"participants"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}
	if req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "channelId is required")
		return
	}

	participants := make([]model.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, model.Participant{UserID: p.UserID, Username: p.Username})
	}

	status, err := s.engine.Initiate(r.Context(), engine.InitiateRequest{
		ChannelID:       req.ChannelID,
		GuildID:         req.GuildID,
		DurationMinutes: req.DurationMinutes,
		Participants:    participants,
		InitiatorID:     req.InitiatorID,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

type actorRequest struct {
	UserID string `json:"userId"`
}

func decodeActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return "", false
	}
	return req.UserID, true
}

// handleConfirm records the confirmation and immediately runs the gate
// check, the sole trigger for the Pending to Active transition.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	userID, ok := decodeActor(w, r)
	if !ok {
		return
	}

	if err := s.engine.Confirm(r.Context(), channelID, userID); err != nil {
		writeEngineError(w, err)
		return
	}
	res, err := s.engine.StartIfAllConfirmed(r.Context(), channelID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	status, err := s.engine.Status(r.Context(), channelID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": status,
		"started": res.Started,
		"warning": warnString(res.Warn),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	userID, ok := decodeActor(w, r)
	if !ok {
		return
	}
	if err := s.engine.ManualPause(r.Context(), channelID, userID); err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeStatus(w, r, channelID)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	userID, ok := decodeActor(w, r)
	if !ok {
		return
	}
	if err := s.engine.ManualResume(r.Context(), channelID, userID); err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeStatus(w, r, channelID)
}

type extendRequest struct {
	UserID            string `json:"userId"`
	AdditionalMinutes int    `json:"additionalMinutes"`
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return
	}
	if err := s.engine.Extend(r.Context(), channelID, req.UserID, req.AdditionalMinutes); err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeStatus(w, r, channelID)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	userID, ok := decodeActor(w, r)
	if !ok {
		return
	}
	res, err := s.engine.EndEarly(r.Context(), channelID, userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"minutes": res.Minutes,
		"warning": warnString(res.Warn),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	userID, ok := decodeActor(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Cancel(r.Context(), channelID, userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": true,
		"warning":   warnString(res.Warn),
	})
}

type presenceRequest struct {
	// Event is "left" or "returned"; the gateway resolves raw platform
	// events into these facts.
	Event   string   `json:"event"`
	Present []string `json:"present"`
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	var changed bool
	var err error
	switch req.Event {
	case "left":
		changed, err = s.engine.PresenceLeft(r.Context(), channelID, req.Present)
	case "returned":
		changed, err = s.engine.PresenceReturned(r.Context(), channelID, req.Present)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", `event must be "left" or "returned"`)
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, r, chi.URLParam(r, "channelID"))
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, channelID string) {
	status, err := s.engine.Status(r.Context(), channelID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
