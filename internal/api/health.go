package api

import (
	"net/http"
)

// healthResponse reports liveness plus what the runner can do right now.
type healthResponse struct {
	Status     string `json:"status"`
	StepTypes  int    `json:"step_types"`
	ActiveRuns int    `json:"active_runs"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		StepTypes:  len(s.registry.List()),
		ActiveRuns: s.runner.ActiveRuns(),
	})
}
