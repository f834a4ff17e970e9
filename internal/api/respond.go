package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Little-Star888/agenttask/internal/engine"
	"github.com/Little-Star888/agenttask/internal/model"
	"github.com/Little-Star888/agenttask/internal/store"
)

const maxBodySize = 1 << 20 // 1 MB

// Machine-readable error reasons.
const (
	reasonInvalidRequest    = "invalid_request"
	reasonInvalidDefinition = "invalid_definition"
	reasonNotFound          = "not_found"
	reasonTaskDisabled      = "task_disabled"
	reasonStorage           = "storage_error"
	reasonInternal          = "internal_error"
)

// errorResponse is the body of every non-2xx response on the /v1 routes.
// Run is set when a run started before failing.
type errorResponse struct {
	Error  string           `json:"error"`
	Reason string           `json:"reason"`
	Run    *model.RunResult `json:"run,omitempty"`
}

// classify maps a service error to an HTTP status and reason code.
// Run failures are checked first: a step's own error may wrap anything.
func classify(err error) (int, string) {
	var (
		ce  *engine.CancelledError
		se  *engine.StepError
		de  *model.DefinitionError
		sto *store.StorageError
	)
	switch {
	case errors.As(err, &ce):
		if ce.DeadlineExceeded() {
			return http.StatusInternalServerError, model.ReasonDeadlineExceeded
		}
		return http.StatusInternalServerError, model.ReasonCancelled
	case errors.As(err, &se):
		return http.StatusInternalServerError, model.ReasonStepFailed
	case errors.As(err, &de):
		return http.StatusBadRequest, reasonInvalidDefinition
	case errors.Is(err, store.ErrNotFound), errors.Is(err, engine.ErrRunNotFound):
		return http.StatusNotFound, reasonNotFound
	case errors.Is(err, engine.ErrTaskDisabled):
		return http.StatusConflict, reasonTaskDisabled
	case errors.As(err, &sto):
		return http.StatusInternalServerError, reasonStorage
	default:
		return http.StatusInternalServerError, reasonInternal
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, reason, message string) {
	httpErrorsTotal.WithLabelValues(reason).Inc()
	s.writeJSON(w, status, errorResponse{Error: message, Reason: reason})
}

// writeServiceError classifies err and writes it, attaching the partial run
// result when there is one. Server-side failures are logged.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error, run *model.RunResult) {
	status, reason := classify(err)
	if reason == reasonStorage || reason == reasonInternal {
		s.logger.Error(op, "error", err)
	}
	httpErrorsTotal.WithLabelValues(reason).Inc()
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Reason: reason, Run: run})
}

// clearWriteDeadline lifts the server write timeout for a response that
// waits on a run, which may take longer than any fixed timeout.
func (s *Server) clearWriteDeadline(w http.ResponseWriter) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("clear write deadline", "error", err)
	}
}

// decodeJSON reads a size-limited JSON body into v. An empty body is
// accepted when allowEmpty is set and leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
