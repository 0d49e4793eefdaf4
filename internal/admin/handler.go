// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package admin implements the Admin Command Handler: the single
// translation point from a GM station's gm:command envelope into
// Session Manager and Video Queue mutations. Every
// action returns a gm:command:ack the caller sends back to the
// issuing socket - this package never touches the WebSocket hub
// itself.
package admin

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/session"
)

// VideoController is the subset of *video.Queue the Admin Command
// Handler drives. Defined here rather than imported from internal/video
// so this package does not need VLC transport details.
type VideoController interface {
	Resume() error
	Pause() error
	Skip() error
	Clear() error
}

// Action names accepted in a gm:command envelope.
const (
	ActionSessionCreate     = "session:create"
	ActionSessionPause      = "session:pause"
	ActionSessionResume     = "session:resume"
	ActionSessionEnd        = "session:end"
	ActionScoreAdjust       = "score:adjust"
	ActionTransactionDelete = "transaction:delete"
	ActionTransactionCreate = "transaction:create"
	ActionVideoPlay         = "video:play"
	ActionVideoPause        = "video:pause"
	ActionVideoSkip         = "video:skip"
	ActionVideoQueueClear   = "video:queue:clear"
	ActionSystemReset       = "system:reset"
)

// Result is the gm:command:ack payload returned to the sender.
type Result struct {
	Action  string      `json:"action"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

func ok(action string, result interface{}, message string) Result {
	return Result{Action: action, Success: true, Message: message, Result: result}
}

func fail(action, code string) Result {
	return Result{Action: action, Success: false, Error: code}
}

// Handler executes admin commands against the Session Manager and
// Video Queue.
type Handler struct {
	sessions *session.Manager
	video    VideoController
}

// New constructs an Admin Command Handler. video may be nil if the
// video subsystem is not wired yet; video:* commands then fail with
// VIDEO_UNAVAILABLE instead of panicking.
func New(sessions *session.Manager, video VideoController) *Handler {
	return &Handler{sessions: sessions, video: video}
}

type sessionCreatePayload struct {
	Name  string   `json:"name"`
	Teams []string `json:"teams"`
}

type sessionEndPayload struct {
	Reason string `json:"reason"`
}

type scoreAdjustPayload struct {
	TeamID string `json:"teamId"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type transactionDeletePayload struct {
	TransactionID string `json:"transactionId"`
}

type transactionCreatePayload struct {
	TokenID    string            `json:"tokenId"`
	TeamID     string            `json:"teamId"`
	DeviceID   string            `json:"deviceId"`
	DeviceType models.DeviceType `json:"deviceType"`
	Mode       models.ScanMode   `json:"mode"`
	Points     int               `json:"points"`
}

// HandleCommand decodes payload according to action and applies the
// corresponding mutation. An action not in the table above always
// returns success:false, error:"UNKNOWN_ACTION" rather than an error
// return, matching the rest of the gm:command contract: every
// command gets an ack, never a dropped connection.
func (h *Handler) HandleCommand(action string, payload json.RawMessage) Result {
	switch action {
	case ActionSessionCreate:
		return h.sessionCreate(payload)
	case ActionSessionPause:
		return h.sessionPause()
	case ActionSessionResume:
		return h.sessionResume()
	case ActionSessionEnd:
		return h.sessionEnd(payload)
	case ActionScoreAdjust:
		return h.scoreAdjust(payload)
	case ActionTransactionDelete:
		return h.transactionDelete(payload)
	case ActionTransactionCreate:
		return h.transactionCreate(payload)
	case ActionVideoPlay:
		return h.videoControl(ActionVideoPlay, func() error { return h.video.Resume() })
	case ActionVideoPause:
		return h.videoControl(ActionVideoPause, func() error { return h.video.Pause() })
	case ActionVideoSkip:
		return h.videoControl(ActionVideoSkip, func() error { return h.video.Skip() })
	case ActionVideoQueueClear:
		return h.videoControl(ActionVideoQueueClear, func() error { return h.video.Clear() })
	case ActionSystemReset:
		return h.systemReset()
	default:
		return fail(action, "UNKNOWN_ACTION")
	}
}

func (h *Handler) decode(action string, payload json.RawMessage, dest interface{}) *Result {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		r := fail(action, "INVALID_PAYLOAD")
		return &r
	}
	return nil
}

func (h *Handler) sessionCreate(payload json.RawMessage) Result {
	var p sessionCreatePayload
	if r := h.decode(ActionSessionCreate, payload, &p); r != nil {
		return *r
	}
	sess, err := h.sessions.CreateSession(p.Name, p.Teams)
	if err != nil {
		return fail(ActionSessionCreate, errCode(err))
	}
	return ok(ActionSessionCreate, sess, "session created")
}

func (h *Handler) sessionPause() Result {
	sess, err := h.sessions.PauseSession()
	if err != nil {
		return fail(ActionSessionPause, errCode(err))
	}
	return ok(ActionSessionPause, sess, "session paused")
}

func (h *Handler) sessionResume() Result {
	sess, err := h.sessions.ResumeSession()
	if err != nil {
		return fail(ActionSessionResume, errCode(err))
	}
	return ok(ActionSessionResume, sess, "session resumed")
}

func (h *Handler) sessionEnd(payload json.RawMessage) Result {
	var p sessionEndPayload
	if r := h.decode(ActionSessionEnd, payload, &p); r != nil {
		return *r
	}
	sess, err := h.sessions.EndSession(p.Reason)
	if err != nil {
		return fail(ActionSessionEnd, errCode(err))
	}
	return ok(ActionSessionEnd, sess, "session ended")
}

func (h *Handler) scoreAdjust(payload json.RawMessage) Result {
	var p scoreAdjustPayload
	if r := h.decode(ActionScoreAdjust, payload, &p); r != nil {
		return *r
	}
	if p.TeamID == "" {
		return fail(ActionScoreAdjust, "INVALID_PAYLOAD")
	}
	sess, err := h.sessions.AdjustScore(p.TeamID, p.Delta, p.Reason)
	if err != nil {
		return fail(ActionScoreAdjust, errCode(err))
	}
	return ok(ActionScoreAdjust, sess.Scores[p.TeamID], "score adjusted")
}

func (h *Handler) transactionDelete(payload json.RawMessage) Result {
	var p transactionDeletePayload
	if r := h.decode(ActionTransactionDelete, payload, &p); r != nil {
		return *r
	}
	sess, err := h.sessions.DeleteTransaction(p.TransactionID)
	if err != nil {
		return fail(ActionTransactionDelete, errCode(err))
	}
	return ok(ActionTransactionDelete, sess, "transaction deleted")
}

func (h *Handler) transactionCreate(payload json.RawMessage) Result {
	var p transactionCreatePayload
	if r := h.decode(ActionTransactionCreate, payload, &p); r != nil {
		return *r
	}
	if p.TokenID == "" || p.TeamID == "" {
		return fail(ActionTransactionCreate, "INVALID_PAYLOAD")
	}
	tx := models.Transaction{
		ID:         uuid.NewString(),
		TokenID:    p.TokenID,
		TeamID:     p.TeamID,
		DeviceID:   p.DeviceID,
		DeviceType: p.DeviceType,
		Mode:       p.Mode,
		Status:     models.TxAccepted,
		Points:     p.Points,
	}
	sess, err := h.sessions.InjectTransaction(tx)
	if err != nil {
		return fail(ActionTransactionCreate, errCode(err))
	}
	return ok(ActionTransactionCreate, sess, "transaction created")
}

func (h *Handler) videoControl(action string, fn func() error) Result {
	if h.video == nil {
		return fail(action, "VIDEO_UNAVAILABLE")
	}
	if err := fn(); err != nil {
		return fail(action, "VIDEO_COMMAND_FAILED")
	}
	return ok(action, nil, "")
}

func (h *Handler) systemReset() Result {
	if err := h.sessions.SystemReset(); err != nil {
		return fail(ActionSystemReset, errCode(err))
	}
	if h.video != nil {
		if err := h.video.Clear(); err != nil {
			return fail(ActionSystemReset, "VIDEO_COMMAND_FAILED")
		}
	}
	return ok(ActionSystemReset, nil, "system reset")
}

// errCode maps a Session Manager error to a short machine-readable
// code for the ack's error field; unrecognized errors fall back to
// their message so nothing is silently swallowed.
func errCode(err error) string {
	switch err {
	case session.ErrNoActiveSession:
		return "NO_ACTIVE_SESSION"
	case session.ErrConcurrentSession:
		return "SESSION_ALREADY_ACTIVE"
	case session.ErrTransactionNotFound:
		return "TRANSACTION_NOT_FOUND"
	default:
		return fmt.Sprintf("ERROR: %v", err)
	}
}
