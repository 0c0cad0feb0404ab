package api

import (
	"net/http"
	"time"
)

// handleHealth reports the last sweep plus bootstrap outcomes. Always
// returns 200; the body conveys health. Probes needing HTTP 503 on failure
// use /health/ready.
//
//	GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.checker.Snapshot()
	if !ok {
		// First sweep has not completed yet; run one inline.
		snap = s.checker.PerformChecks(r.Context())
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         snap.Status,
		"timestamp":      snap.Timestamp,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"checks":         snap.Checks,
		"bootstrap":      s.report.Results,
	})
}

// handleLiveness always returns 200 while the process runs.
//
//	GET /health/live
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "alive",
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
	})
}

// handleReadiness returns 200 only when every critical probe passed in the
// last sweep.
//
//	GET /health/ready
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.checker.Ready() {
		respondError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
