// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/maxepunk/aln-orchestrator/internal/logging"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/offline"
	"github.com/maxepunk/aln-orchestrator/internal/projector"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/txn"
	"github.com/maxepunk/aln-orchestrator/internal/validation"
)

// scanRequest is the body of POST /api/scan:
// {tokenId, teamId?, deviceId, timestamp}. Player scanners send only
// those four fields; deviceType and mode are accepted for GM-station
// use and default to player/blackmarket when absent, matching what a
// bare scanner POST means.
type scanRequest struct {
	TokenID    string            `json:"tokenId" validate:"required,token_id"`
	TeamID     string            `json:"teamId" validate:"omitempty,team_id"`
	DeviceID   string            `json:"deviceId" validate:"required,device_id"`
	DeviceType models.DeviceType `json:"deviceType" validate:"omitempty,oneof=gm player"`
	Mode       models.ScanMode   `json:"mode" validate:"omitempty,oneof=blackmarket detective"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (rt *Router) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}
	if req.DeviceType == "" {
		req.DeviceType = models.DevicePlayer
	}
	if req.Mode == "" {
		req.Mode = models.ModeBlackmarket
	}

	tx := rt.engine.Submit(txn.ScanRequest{
		TokenID:    req.TokenID,
		TeamID:     req.TeamID,
		DeviceID:   req.DeviceID,
		DeviceType: req.DeviceType,
		Mode:       req.Mode,
		Timestamp:  req.Timestamp,
	})

	switch tx.Status {
	case models.TxAccepted:
		respondData(w, http.StatusOK, tx)
	case models.TxDuplicate:
		respondJSON(w, http.StatusConflict, Response{Status: "error", Data: tx, Error: &APIError{
			Code:    "DUPLICATE_TRANSACTION",
			Message: "token already scanned by this device",
		}})
	case models.TxUnknown:
		respondData(w, http.StatusOK, tx)
	default:
		respondError(w, http.StatusServiceUnavailable, "NO_ACTIVE_SESSION", "no active session accepting scans", nil)
	}
}

// scanBatchRequest is the body of POST /api/scan/batch.
// deviceId may be supplied at the batch level, per item, or both;
// per-item values win and the batch-level value fills the gaps.
type scanBatchRequest struct {
	BatchID      string             `json:"batchId" validate:"required"`
	DeviceID     string             `json:"deviceId" validate:"omitempty,device_id"`
	Transactions []offline.ScanItem `json:"transactions"`
}

func (rt *Router) handleScanBatch(w http.ResponseWriter, r *http.Request) {
	var req scanBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	result := rt.offline.ProcessBatch(offline.BatchRequest{
		BatchID:      req.BatchID,
		DeviceID:     req.DeviceID,
		Transactions: req.Transactions,
	})
	respondData(w, http.StatusOK, result)
}

func (rt *Router) handleTokens(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, rt.catalog.All())
}

func (rt *Router) handleState(w http.ResponseWriter, r *http.Request) {
	sess, _ := rt.sessions.GetCurrent()
	state := projector.Project(sess, rt.video)
	respondData(w, http.StatusOK, state)
}

func (rt *Router) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.sessions.GetCurrent()
	if !ok {
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no session has been created", nil)
		return
	}
	respondData(w, http.StatusOK, sess)
}

// handleSessionHistory lists every persisted session, newest first -
// ended games stay on disk under their id, and
// this is how an admin browses them after the fact.
func (rt *Router) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	history, err := rt.sessions.ListHistory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list session history", err)
		return
	}
	respondData(w, http.StatusOK, history)
}

// sessionCreateRequest is the body of POST /api/session.
type sessionCreateRequest struct {
	Name  string   `json:"name" validate:"required,min=1,max=100"`
	Teams []string `json:"teams" validate:"required,min=1,dive,team_id"`
}

func (rt *Router) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	sess, err := rt.sessions.CreateSession(req.Name, req.Teams)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondData(w, http.StatusCreated, sess)
}

// sessionUpdateRequest is the body of PUT /api/session/:id: the only
// mutable field is status, driving pause/resume/end.
type sessionUpdateRequest struct {
	Status models.SessionStatus `json:"status" validate:"required,oneof=paused active ended"`
	Reason string               `json:"reason"`
}

func (rt *Router) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req sessionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	current, ok := rt.sessions.GetCurrent()
	if !ok || current.ID != id {
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no session with that id is current", nil)
		return
	}

	var (
		sess *models.Session
		err  error
	)
	switch req.Status {
	case models.SessionPaused:
		sess, err = rt.sessions.PauseSession()
	case models.SessionActive:
		sess, err = rt.sessions.ResumeSession()
	case models.SessionEnded:
		sess, err = rt.sessions.EndSession(req.Reason)
	}
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondData(w, http.StatusOK, sess)
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch err {
	case session.ErrConcurrentSession:
		respondError(w, http.StatusConflict, "CONCURRENT_SESSION", "a session is already active or paused", err)
	case session.ErrNoActiveSession:
		respondError(w, http.StatusConflict, "NO_ACTIVE_SESSION", "no active session", err)
	case session.ErrSessionNotFound:
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "session operation failed", err)
	}
}

// adminAuthRequest is the body of POST /api/admin/auth.
type adminAuthRequest struct {
	Password string `json:"password" validate:"required"`
}

type adminAuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

func (rt *Router) handleAdminAuth(w http.ResponseWriter, r *http.Request) {
	var req adminAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	if !rt.passwords.Validate(req.Password) {
		logging.AuditAdminAuthFailure(r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin password", nil)
		return
	}

	token, err := rt.jwt.GenerateAdminToken()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to mint admin token", err)
		return
	}

	logging.AuditAdminAuthSuccess(r.RemoteAddr)
	respondData(w, http.StatusOK, adminAuthResponse{
		Token:     token,
		ExpiresIn: int64(rt.jwt.TokenLifetime() / time.Second),
	})
}
