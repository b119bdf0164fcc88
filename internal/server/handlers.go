package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// handleHealth responds to liveness probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleOracleStatus reports the safety gate's per-asset view
func (s *Server) handleOracleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.oracleGate.Status(r.Context()))
}

// proposerAuthMiddleware admits only the authorized proposer identity.
// The token travels as "Authorization: Bearer <token>".
func (s *Server) proposerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			s.writeError(w, http.StatusUnauthorized, "missing proposer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.ProposerToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "invalid proposer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
