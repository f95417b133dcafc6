package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Pairing endpoint (no auth required; disabled until a secret is set)
		r.Post("/auth/pair", s.handlePair)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Entity endpoints
			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)
				r.Post("/", s.handleRegisterEntity)
				r.Post("/stop-all", s.handleStopAll)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntity)
					r.Delete("/", s.handleUnregisterEntity)
					r.Post("/start", s.handleStartEntity)
					r.Post("/stop", s.handleStopEntity)
					r.Post("/connect", s.handleConnectEntity)
					r.Post("/disconnect", s.handleDisconnectEntity)
					r.Patch("/notification", s.handleUpdateNotification)
				})
			})

			// Permission endpoints
			r.Route("/permissions/{name}", func(r chi.Router) {
				r.Get("/", s.handleCheckPermission)
				r.Post("/request", s.handleRequestPermission)
			})

			// Journal endpoints
			r.Get("/events", s.handleListEvents)

			// Session teardown
			r.Post("/dispose", s.handleDispose)
		})
	})

	// WebSocket (auth via token query parameter, validated in handler)
	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"entities": s.registry.Count(),
	})
}
