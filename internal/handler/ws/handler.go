// Package ws bridges a websocket connection onto the message pipeline: one
// inbound frame is one guest turn, one outbound frame is the reply.
package ws

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ledastudio/tablehost/backend/internal/orchestrator"
	"github.com/ledastudio/tablehost/backend/pkg/utils"
)

// Handler serves the websocket endpoint.
type Handler struct {
	orch     *orchestrator.Orchestrator
	upgrader websocket.Upgrader
}

// New creates a websocket handler.
func New(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{
		orch: orch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser origins are filtered by the CORS middleware in front.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the websocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleConn)
}

type inboundFrame struct {
	Text string `json:"text"`
}

type errorFrame struct {
	Error string `json:"error"`
}

func (h *Handler) handleConn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.orch.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] session %s connected", sessionID)

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] session %s read error: %v", sessionID, err)
			}
			return
		}
		if frame.Text == "" {
			if err := conn.WriteJSON(errorFrame{Error: "text is required"}); err != nil {
				return
			}
			continue
		}

		reply, err := h.orch.HandleMessage(r.Context(), sessionID, frame.Text)
		if err != nil {
			if err := conn.WriteJSON(errorFrame{Error: "failed to handle message"}); err != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("[ws] session %s write error: %v", sessionID, err)
			return
		}
	}
}
