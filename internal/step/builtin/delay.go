package builtin

import (
	"context"
	"time"

	"github.com/Little-Star888/agenttask/internal/step"
)

type delayConfig struct {
	Duration time.Duration `json:"duration" validate:"required,gt=0"`
}

// Delay waits for a fixed duration, returning early when the run is
// cancelled.
type Delay struct{}

func (d *Delay) Info() step.Info {
	return step.Info{
		Description: "Wait for a duration such as \"500ms\" or \"2s\"",
		ConfigKeys:  []string{"duration"},
	}
}

func (d *Delay) ValidateConfig(config map[string]any) error {
	var cfg delayConfig
	return step.DecodeConfig(config, &cfg)
}

func (d *Delay) Execute(ctx context.Context, config map[string]any, _ step.Variables) (any, error) {
	var cfg delayConfig
	if err := step.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(cfg.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return cfg.Duration.String(), nil
	}
}
