package api

import "net/http"

// handleMetrics returns the collector snapshot. Percentiles, memory, and
// uptime are computed at read time.
//
//	GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.collector.Metrics())
}
