package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/Little-Star888/agenttask/internal/step"
)

type failConfig struct {
	Message string `json:"message" default:"step failed"`
}

// Fail always returns an error. It is useful for guarding a branch of a task
// and for exercising failure handling.
type Fail struct{}

func (f *Fail) Info() step.Info {
	return step.Info{
		Description: "Fail the run with the given message",
		ConfigKeys:  []string{"message"},
	}
}

func (f *Fail) ValidateConfig(config map[string]any) error {
	var cfg failConfig
	return step.DecodeConfig(config, &cfg)
}

func (f *Fail) Execute(_ context.Context, config map[string]any, vars step.Variables) (any, error) {
	var cfg failConfig
	if err := step.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	msg, err := step.InterpolateString(cfg.Message, vars)
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	return nil, errors.New(msg)
}
