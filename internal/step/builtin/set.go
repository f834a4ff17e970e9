package builtin

import (
	"context"
	"errors"

	"github.com/Little-Star888/agenttask/internal/step"
)

// Set publishes a literal value. String leaves may reference earlier
// variables with ${name}.
type Set struct{}

func (s *Set) Info() step.Info {
	return step.Info{
		Description: "Produce a literal value, interpolating ${name} references",
		ConfigKeys:  []string{"value"},
	}
}

func (s *Set) ValidateConfig(config map[string]any) error {
	if _, ok := config["value"]; !ok {
		return errors.New("field 'value' is required")
	}
	var cfg struct {
		Value any `json:"value"`
	}
	return step.DecodeConfig(config, &cfg)
}

func (s *Set) Execute(_ context.Context, config map[string]any, vars step.Variables) (any, error) {
	return step.InterpolateValue(config["value"], vars)
}
