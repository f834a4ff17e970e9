package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Little-Star888/agenttask/internal/model"
)

// saveTaskRequest is the JSON body for POST /v1/tasks and PUT /v1/tasks/{id}.
type saveTaskRequest struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Config *model.TaskConfig `json:"config"`
}

// listTasksResponse wraps the task summaries.
type listTasksResponse struct {
	Tasks []model.TaskSummary `json:"tasks"`
	Total int                 `json:"total"`
}

// runTaskRequest is the optional JSON body for the run endpoints.
type runTaskRequest struct {
	Variables map[string]any `json:"variables"`
}

// saveTask validates a definition, including its step types and their
// configs, before persisting it.
func (s *Server) saveTask(ctx context.Context, id, name string, cfg *model.TaskConfig) (*model.Task, error) {
	if err := model.ValidateTask(name, cfg); err != nil {
		return nil, err
	}
	if err := s.registry.Validate(cfg.Steps); err != nil {
		return nil, err
	}
	return s.store.SaveTask(ctx, name, *cfg, id)
}

func (s *Server) handleSaveTask(w http.ResponseWriter, r *http.Request) {
	var req saveTaskRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, http.StatusBadRequest, reasonInvalidRequest, err.Error())
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.ID = id
	}

	task, err := s.saveTask(r.Context(), req.ID, req.Name, req.Config)
	if err != nil {
		s.writeServiceError(w, "save task", err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		s.writeServiceError(w, "list tasks", err, nil)
		return
	}
	if tasks == nil {
		tasks = []model.TaskSummary{}
	}
	s.writeJSON(w, http.StatusOK, listTasksResponse{Tasks: tasks, Total: len(tasks)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get task", err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, "delete task", err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	var req runTaskRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, http.StatusBadRequest, reasonInvalidRequest, err.Error())
		return
	}

	s.clearWriteDeadline(w)
	res, err := s.runner.Run(r.Context(), chi.URLParam(r, "id"), req.Variables)
	if err != nil {
		s.writeServiceError(w, "run task", err, res)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req runTaskRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, http.StatusBadRequest, reasonInvalidRequest, err.Error())
		return
	}

	res, err := s.runner.Submit(r.Context(), chi.URLParam(r, "id"), req.Variables)
	if err != nil {
		s.writeServiceError(w, "submit task", err, nil)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+res.RunID)
	s.writeJSON(w, http.StatusAccepted, res)
}
