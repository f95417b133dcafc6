package api

import (
	"encoding/json"
	"net/http"
)

// DisposeRequest guards the session teardown behind an explicit
// confirmation string.
type DisposeRequest struct {
	Confirm string `json:"confirm"`
}

// handleDispose tears down the whole session: every running entity is
// halted best-effort, all registrations are cleared, and the event
// pipeline is unsubscribed.
//
// This is a destructive operation — the request must include an exact
// confirmation string as a safety guard.
func (s *Server) handleDispose(w http.ResponseWriter, r *http.Request) {
	var req DisposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Confirm != "DISPOSE" {
		writeBadRequest(w, `confirm field must be exactly "DISPOSE"`)
		return
	}

	writeResult(w, http.StatusOK, s.manager.Dispose(r.Context()))
}
