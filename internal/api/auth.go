package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hostbridge/hostbridge-core/internal/auth"
)

// pairRequest is the body for the client pairing endpoint.
type pairRequest struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

// pairResponse carries the issued bearer token.
type pairResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// handlePair issues a bearer token for a host client.
//
// Pairing is only available when a JWT secret is configured; the bridge
// binds to loopback, so possession of the local socket is the pairing
// credential.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if s.secCfg.JWT.Secret == "" {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "pairing is disabled: no JWT secret configured")
		return
	}

	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ClientID == "" {
		writeBadRequest(w, "client_id is required")
		return
	}

	ttlMinutes := s.secCfg.JWT.AccessTokenTTL
	if ttlMinutes <= 0 {
		ttlMinutes = 15
	}
	ttl := time.Duration(ttlMinutes) * time.Minute

	token, err := auth.GenerateToken(req.ClientID, req.Scope, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, pairResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttlMinutes * 60,
	})
}
