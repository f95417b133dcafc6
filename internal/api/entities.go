package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hostbridge/hostbridge-core/internal/entity"
)

// handleListEntities returns the status of every registered entity.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, http.StatusOK, s.manager.GetAllStatuses())
}

// handleGetEntity returns the status of a single entity.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeResult(w, http.StatusOK, s.manager.GetStatus(id))
}

// handleRegisterEntity registers a new task or connection entity.
func (s *Server) handleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	var e entity.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	writeResult(w, http.StatusCreated, s.manager.Register(r.Context(), &e))
}

// handleUnregisterEntity removes an entity, halting its native work first
// if it is still running.
func (s *Server) handleUnregisterEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeResult(w, http.StatusOK, s.manager.Unregister(r.Context(), id))
}

// handleStartEntity starts a task entity on the native side.
func (s *Server) handleStartEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeResult(w, http.StatusOK, s.manager.Start(r.Context(), id))
}

// handleStopEntity stops a running task entity. Stopping an already
// stopped task succeeds.
func (s *Server) handleStopEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeResult(w, http.StatusOK, s.manager.Stop(r.Context(), id))
}

// handleConnectEntity opens the native connection for a connection entity.
func (s *Server) handleConnectEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeResult(w, http.StatusOK, s.manager.Connect(r.Context(), id))
}

// handleDisconnectEntity closes the native connection. Disconnecting an
// already disconnected entity succeeds.
func (s *Server) handleDisconnectEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeResult(w, http.StatusOK, s.manager.Disconnect(r.Context(), id))
}

// handleStopAll stops every running task entity.
func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.manager.StopAll(r.Context()))
}

// handleUpdateNotification replaces the notification spec of a task
// entity. The running native notification re-renders when the task is live.
func (s *Server) handleUpdateNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var n entity.NotificationSpec
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	writeResult(w, http.StatusOK, s.manager.UpdateNotification(r.Context(), id, &n))
}
