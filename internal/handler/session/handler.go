// Package session exposes the conversation endpoints over HTTP.
package session

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/orchestrator"
	"github.com/ledastudio/tablehost/backend/pkg/utils"
)

// Handler serves the session lifecycle and message endpoints.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// New creates a session handler.
func New(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/messages", h.handleMessage)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tenant  string `json:"tenant"`
		Channel string `json:"channel"`
		Locale  string `json:"locale"`
	}

	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel := booking.Channel(payload.Channel)
	if channel == "" {
		channel = booking.ChannelWeb
	}
	if channel != booking.ChannelWeb && channel != booking.ChannelMessaging {
		utils.RespondError(w, http.StatusBadRequest, "unknown channel")
		return
	}

	sess, err := h.orch.CreateSession(r.Context(), payload.Tenant, channel, payload.Locale)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.orch.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Text string `json:"text"`
	}
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := h.orch.HandleMessage(r.Context(), sessionID, payload.Text)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to handle message")
		return
	}

	status := http.StatusOK
	if reply.Blocked {
		status = http.StatusTooManyRequests
	}
	utils.RespondJSON(w, status, reply)
}
