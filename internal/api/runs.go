package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Little-Star888/agenttask/internal/model"
)

// listRunsResponse wraps the runs held in the runner's history.
type listRunsResponse struct {
	Runs  []*model.RunResult `json:"runs"`
	Total int                `json:"total"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.runner.ListRuns()
	s.writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs, Total: len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.Get(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeServiceError(w, "get run", err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.runner.Cancel(runID); err != nil {
		s.writeServiceError(w, "cancel run", err, nil)
		return
	}

	res, err := s.runner.Get(runID)
	if err != nil {
		s.writeServiceError(w, "get run", err, nil)
		return
	}
	s.writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	res, err := s.runner.Get(runID)
	if err != nil {
		s.writeServiceError(w, "get run for events", err, nil)
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)

	// A finished run has nothing more to say.
	if res.Terminal() {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEEvent(w, "done", res.Status)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	s.clearWriteDeadline(w)

	// Subscribe on a closed or forgotten topic returns a closed channel, so a
	// run that finished after the check above ends the loop at once.
	ch, unsub := s.runner.Broker().Subscribe(runID)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	if canFlush {
		flusher.Flush()
	}

	// The run.finished event carries the final status; history is the
	// fallback when the stream ended without it.
	var finished string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				status := finished
				if status == "" {
					status = model.RunFailed
					if final, err := s.runner.Get(runID); err == nil {
						status = final.Status
					}
				}
				_ = writeSSEEvent(w, "done", status)
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if ev.Kind == model.EventRunFinished {
				finished = ev.Status
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("encode run event", "error", err)
				continue
			}
			if err := writeSSEEvent(w, ev.Kind, string(data)); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent writes a named SSE event. Multi-line data is split so that
// each segment gets its own "data:" prefix.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}
