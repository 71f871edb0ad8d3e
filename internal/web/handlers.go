package web

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// readyTimeout bounds each dependency check run by /readyz.
const readyTimeout = 5 * time.Second

// healthResponse is returned by the liveness and readiness probes.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Runs   any               `json:"runs,omitempty"`
}

// handleHealth reports liveness. It never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleReady runs every registered check. Any failure makes the service
// unready with 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(names)),
		Runs:   s.service.RunStatus(),
	}
	status := http.StatusOK

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := s.checks[name](ctx)
		cancel()

		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}
