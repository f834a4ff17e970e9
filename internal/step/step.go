package step

import "context"

// Step is the capability bound to one step type tag.
type Step interface {
	// Execute runs the step with its opaque configuration and read access to
	// the variables published by earlier steps. The returned value is what the
	// runner publishes under the step's response variable. The context carries
	// the run's cancellation and deadline.
	Execute(ctx context.Context, config map[string]any, vars Variables) (any, error)

	// Info describes the step type for listing.
	Info() Info
}

// Variables is the read-only view of a run's variable context handed to steps.
type Variables interface {
	Get(name string) (any, bool)
	Snapshot() map[string]any
}

// ConfigValidator is implemented by steps that can reject a malformed
// configuration before any step of a task runs.
type ConfigValidator interface {
	ValidateConfig(config map[string]any) error
}

// Info describes a registered step type.
type Info struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	ConfigKeys  []string `json:"config_keys,omitempty"`
}
