package api

import (
	"net/http"
	"strconv"

	"github.com/hostbridge/hostbridge-core/internal/journal"
)

// handleListEvents returns journalled bridge events, newest first.
//
// Query parameters:
//   - entity: filter by entity ID
//   - type: filter by event type
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "event journal is disabled")
		return
	}

	filter := journal.Filter{
		EntityID:  r.URL.Query().Get("entity"),
		EventType: r.URL.Query().Get("type"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.journal.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("journal query failed", "error", err)
		writeInternalError(w, "failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
