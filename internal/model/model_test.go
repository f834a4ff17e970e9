package model

import (
	"errors"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewTaskIDFormat(t *testing.T) {
	id := NewTaskID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewTaskID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewTaskIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTaskID()
		if seen[id] {
			t.Fatalf("NewTaskID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestNewRunIDDistinct(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Errorf("NewRunID() returned %q and %q, want two distinct ids", a, b)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestIsActiveDefaultsTrue(t *testing.T) {
	tests := []struct {
		active *bool
		want   bool
	}{
		{nil, true},
		{boolPtr(true), true},
		{boolPtr(false), false},
	}
	for _, tc := range tests {
		cfg := TaskConfig{Active: tc.active}
		if got := cfg.IsActive(); got != tc.want {
			t.Errorf("IsActive(%v) = %v, want %v", tc.active, got, tc.want)
		}
	}
}

func TestValidateTask(t *testing.T) {
	valid := &TaskConfig{Steps: []StepSpec{{Type: "set"}}}

	tests := []struct {
		name      string
		taskName  string
		cfg       *TaskConfig
		wantErr   bool
		field     string
		stepIndex int
	}{
		{"valid", "greet", valid, false, "", 0},
		{"missing name", "  ", valid, true, "name", -1},
		{"missing config", "greet", nil, true, "config", -1},
		{"nil steps", "greet", &TaskConfig{}, true, "steps", -1},
		{"empty steps", "greet", &TaskConfig{Steps: []StepSpec{}}, true, "steps", -1},
		{"missing type", "greet", &TaskConfig{Steps: []StepSpec{{Type: "set"}, {}}}, true, "type", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTask(tc.taskName, tc.cfg)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("ValidateTask: unexpected error %v", err)
				}
				return
			}
			var de *DefinitionError
			if !errors.As(err, &de) {
				t.Fatalf("ValidateTask error = %v, want *DefinitionError", err)
			}
			if de.Field != tc.field {
				t.Errorf("Field = %q, want %q", de.Field, tc.field)
			}
			if de.StepIndex != tc.stepIndex {
				t.Errorf("StepIndex = %d, want %d", de.StepIndex, tc.stepIndex)
			}
		})
	}
}

func TestTaskCloneIsDeep(t *testing.T) {
	orig := &Task{
		ID:   "t1",
		Name: "clone me",
		Config: TaskConfig{
			Active: boolPtr(true),
			Steps: []StepSpec{{
				Type:   "set",
				Config: map[string]any{"value": map[string]any{"nested": []any{"a"}}},
			}},
		},
	}

	c := orig.Clone()
	*c.Config.Active = false
	c.Config.Steps[0].Type = "expr"
	c.Config.Steps[0].Config["value"].(map[string]any)["nested"].([]any)[0] = "b"

	if !*orig.Config.Active {
		t.Error("clone shares Active pointer with original")
	}
	if orig.Config.Steps[0].Type != "set" {
		t.Error("clone shares Steps slice with original")
	}
	nested := orig.Config.Steps[0].Config["value"].(map[string]any)["nested"].([]any)
	if nested[0] != "a" {
		t.Error("clone shares nested config with original")
	}
}

func TestSummary(t *testing.T) {
	task := &Task{
		ID:   "t1",
		Name: "sum",
		Config: TaskConfig{
			Description: "desc",
			Active:      boolPtr(false),
			Steps:       []StepSpec{{Type: "a"}, {Type: "b"}},
		},
	}
	s := task.Summary()
	if s.ID != "t1" || s.Name != "sum" || s.Description != "desc" {
		t.Errorf("Summary() = %+v, unexpected identity fields", s)
	}
	if s.Active {
		t.Error("Summary().Active = true, want false")
	}
	if s.StepCount != 2 {
		t.Errorf("Summary().StepCount = %d, want 2", s.StepCount)
	}
}

func TestRunResultClone(t *testing.T) {
	r := &RunResult{
		RunID:     "r1",
		Status:    RunCompleted,
		Variables: map[string]any{"x": 1},
		Steps:     []StepTrace{{Index: 0, Type: "set", Ran: true}},
	}
	c := r.Clone()
	c.Variables["x"] = 2
	c.Steps[0].Ran = false

	if r.Variables["x"] != 1 {
		t.Error("clone shares Variables with original")
	}
	if !r.Steps[0].Ran {
		t.Error("clone shares Steps with original")
	}
	if !r.Terminal() {
		t.Error("completed run should be terminal")
	}
}
