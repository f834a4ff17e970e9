package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Little-Star888/agenttask/internal/model"
)

// The /agent-task routes keep the envelope older clients expect:
// {"success": bool, ...} with the task id carried as "uuid".

type compatSaveRequest struct {
	UUID   string            `json:"uuid"`
	Name   string            `json:"name"`
	Config *model.TaskConfig `json:"config"`
}

type compatTask struct {
	UUID      string           `json:"uuid"`
	Name      string           `json:"name"`
	Config    model.TaskConfig `json:"config"`
	CreatedAt *time.Time       `json:"created_at,omitempty"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

type compatSummary struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	StepCount   int       `json:"step_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type compatListResponse struct {
	Success bool            `json:"success"`
	Tasks   []compatSummary `json:"tasks"`
}

type compatRunResults struct {
	Success   bool              `json:"success"`
	Results   []model.StepTrace `json:"results"`
	Variables map[string]any    `json:"variables"`
}

type compatResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Task    *compatTask       `json:"task,omitempty"`
	Results *compatRunResults `json:"results,omitempty"`
}

func (s *Server) writeCompatError(w http.ResponseWriter, op string, err error, run *model.RunResult) {
	status, reason := classify(err)
	if reason == reasonStorage || reason == reasonInternal {
		s.logger.Error(op, "error", err)
	}
	httpErrorsTotal.WithLabelValues(reason).Inc()
	resp := compatResponse{Success: false, Error: err.Error()}
	if run != nil {
		resp.Results = &compatRunResults{Success: false, Results: run.Steps, Variables: run.Variables}
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleCompatSave(w http.ResponseWriter, r *http.Request) {
	var req compatSaveRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeJSON(w, http.StatusBadRequest, compatResponse{Error: err.Error()})
		return
	}
	if req.Name == "" || req.Config == nil {
		s.writeJSON(w, http.StatusBadRequest, compatResponse{Error: "Name and config are required"})
		return
	}

	task, err := s.saveTask(r.Context(), req.UUID, req.Name, req.Config)
	if err != nil {
		s.writeCompatError(w, "save task", err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, compatResponse{
		Success: true,
		Task:    &compatTask{UUID: task.ID, Name: task.Name, Config: task.Config},
	})
}

func (s *Server) handleCompatList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.ListTasks(r.Context())
	if err != nil {
		s.writeCompatError(w, "list tasks", err, nil)
		return
	}

	tasks := make([]compatSummary, len(summaries))
	for i, ts := range summaries {
		tasks[i] = compatSummary{
			UUID:        ts.ID,
			Name:        ts.Name,
			Description: ts.Description,
			Active:      ts.Active,
			StepCount:   ts.StepCount,
			UpdatedAt:   ts.UpdatedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, compatListResponse{Success: true, Tasks: tasks})
}

func (s *Server) handleCompatGet(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeCompatError(w, "get task", err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, compatResponse{
		Success: true,
		Task: &compatTask{
			UUID:      task.ID,
			Name:      task.Name,
			Config:    task.Config,
			CreatedAt: &task.CreatedAt,
			UpdatedAt: &task.UpdatedAt,
		},
	})
}

func (s *Server) handleCompatDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		s.writeCompatError(w, "delete task", err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, compatResponse{Success: true})
}

func (s *Server) handleCompatRun(w http.ResponseWriter, r *http.Request) {
	var req runTaskRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeJSON(w, http.StatusBadRequest, compatResponse{Error: err.Error()})
		return
	}

	s.clearWriteDeadline(w)
	res, err := s.runner.Run(r.Context(), chi.URLParam(r, "uuid"), req.Variables)
	if err != nil {
		s.writeCompatError(w, "run task", err, res)
		return
	}
	s.writeJSON(w, http.StatusOK, compatResponse{
		Success: true,
		Results: &compatRunResults{Success: true, Results: res.Steps, Variables: res.Variables},
	})
}
