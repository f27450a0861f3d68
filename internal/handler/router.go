package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	sessionHandler "github.com/ledastudio/tablehost/backend/internal/handler/session"
	wsHandler "github.com/ledastudio/tablehost/backend/internal/handler/ws"
	"github.com/ledastudio/tablehost/backend/internal/middleware"
	"github.com/ledastudio/tablehost/backend/internal/orchestrator"
	"github.com/ledastudio/tablehost/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the dialogue pipeline.
func NewRouter(orch *orchestrator.Orchestrator, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		sessionHandler.New(orch).RegisterRoutes(api)
		wsHandler.New(orch).RegisterRoutes(api)
	})

	return r
}
