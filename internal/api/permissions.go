package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleCheckPermission reports the current grant state of a native
// permission without prompting.
func (s *Server) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeResult(w, http.StatusOK, s.manager.CheckPermission(r.Context(), name))
}

// handleRequestPermission asks the native side to prompt for a permission
// and waits for the reply. Permission round-trips are bounded by the
// gateway's configured timeout.
func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeResult(w, http.StatusOK, s.manager.RequestPermission(r.Context(), name))
}
