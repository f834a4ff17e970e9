package model

import (
	"time"
)

// StepSpec describes one step of a task. Config is opaque to everything but
// the step capability registered for Type.
type StepSpec struct {
	Type             string         `json:"type" yaml:"type" validate:"required"`
	Config           map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	ResponseVariable string         `json:"responseVariable,omitempty" yaml:"responseVariable,omitempty" validate:"omitempty,max=128"`
}

// TaskConfig is the persisted body of a task definition.
type TaskConfig struct {
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Active      *bool      `json:"active,omitempty" yaml:"active,omitempty"`
	Steps       []StepSpec `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
}

// IsActive reports whether the task may be run. A missing flag means active.
func (c TaskConfig) IsActive() bool {
	return c.Active == nil || *c.Active
}

// Task is a named, persisted automation made of ordered steps.
type Task struct {
	ID        string     `json:"id" yaml:"id,omitempty"`
	Name      string     `json:"name" yaml:"name"`
	Config    TaskConfig `json:"config" yaml:"config"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"-"`
}

// TaskSummary is the lightweight projection returned by list operations.
type TaskSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	StepCount   int       `json:"step_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary projects the task into its list form.
func (t *Task) Summary() TaskSummary {
	return TaskSummary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Config.Description,
		Active:      t.Config.IsActive(),
		StepCount:   len(t.Config.Steps),
		UpdatedAt:   t.UpdatedAt,
	}
}

// Clone returns a deep copy of the task so callers can never mutate a stored
// record through a shared map or slice.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Config = t.Config.Clone()
	return &c
}

// Clone returns a deep copy of the configuration.
func (c TaskConfig) Clone() TaskConfig {
	out := TaskConfig{Description: c.Description}
	if c.Active != nil {
		active := *c.Active
		out.Active = &active
	}
	if c.Steps != nil {
		out.Steps = make([]StepSpec, len(c.Steps))
		for i, s := range c.Steps {
			out.Steps[i] = StepSpec{
				Type:             s.Type,
				ResponseVariable: s.ResponseVariable,
			}
			if s.Config != nil {
				out.Steps[i].Config = CloneMap(s.Config)
			}
		}
	}
	return out
}

// CloneMap deep-copies a JSON-shaped map.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices produced by JSON or YAML decoding.
// Other values are returned as-is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}
