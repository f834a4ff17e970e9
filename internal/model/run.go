package model

import "time"

// Run status constants.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Machine-readable failure reasons carried by a failed run.
const (
	ReasonStepFailed       = "step_failed"
	ReasonCancelled        = "cancelled"
	ReasonDeadlineExceeded = "deadline_exceeded"
)

// Run event kinds published while a run progresses.
const (
	EventRunStarted    = "run.started"
	EventStepStarted   = "step.started"
	EventStepCompleted = "step.completed"
	EventStepFailed    = "step.failed"
	EventRunFinished   = "run.finished"
)

// StepTrace records what happened to one step of a run. Every step of the
// task has a trace entry; steps that never ran have Ran == false.
type StepTrace struct {
	Index            int    `json:"index"`
	Type             string `json:"type"`
	ResponseVariable string `json:"response_variable,omitempty"`
	Ran              bool   `json:"ran"`
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
	DurationMS       int64  `json:"duration_ms"`
}

// RunResult is the structured outcome of one task run.
type RunResult struct {
	RunID      string         `json:"run_id"`
	TaskID     string         `json:"task_id"`
	TaskName   string         `json:"task_name"`
	Status     string         `json:"status"`
	Success    bool           `json:"success"`
	Reason     string         `json:"reason,omitempty"`
	Error      string         `json:"error,omitempty"`
	Variables  map[string]any `json:"variables"`
	Steps      []StepTrace    `json:"steps"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// Terminal reports whether the run has finished, successfully or not.
func (r *RunResult) Terminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// Clone returns a copy that shares nothing mutable with r.
func (r *RunResult) Clone() *RunResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.Variables != nil {
		c.Variables = CloneMap(r.Variables)
	}
	c.Steps = append([]StepTrace(nil), r.Steps...)
	return &c
}

// RunEvent is a progress notification for a single run.
type RunEvent struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	StepIndex int       `json:"step_index"`
	StepType  string    `json:"step_type,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}
