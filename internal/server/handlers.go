package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/version"
)

// handleHealth handles health check requests. Each managed database is
// pinged and integrity-checked; any failure flips the overall status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	databases := make(map[string]string, 2)
	healthy := true
	checks := []struct {
		name string
		err  error
	}{
		{"market", s.marketDB.HealthCheck(ctx)},
		{"workflow", s.workflowDB.HealthCheck(ctx)},
	}
	for _, check := range checks {
		if check.err != nil {
			databases[check.name] = check.err.Error()
			healthy = false
		} else {
			databases[check.name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"version":   version.Version,
		"service":   "conveyor",
		"databases": databases,
	}, s.log)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
