package step

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Little-Star888/agenttask/internal/model"
)

// ErrUnknownType is returned when no capability is registered for a step type.
var ErrUnknownType = errors.New("unknown step type")

// Registry maps step type tags to their capabilities.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry creates an empty step registry.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// Register binds a capability to the given type tag, replacing any earlier
// registration for the same tag.
func (r *Registry) Register(stepType string, s Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[stepType] = s
}

// Resolve returns the capability registered for stepType.
func (r *Registry) Resolve(stepType string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.steps[stepType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, stepType)
	}
	return s, nil
}

// Validate checks every step of a task before any of them runs: each type
// must be registered, and capabilities that validate their configuration
// must accept it. The first problem is returned as a *model.DefinitionError.
func (r *Registry) Validate(steps []model.StepSpec) error {
	for i, spec := range steps {
		s, err := r.Resolve(spec.Type)
		if err != nil {
			return &model.DefinitionError{Field: "type", StepIndex: i, Reason: err.Error()}
		}
		cv, ok := s.(ConfigValidator)
		if !ok {
			continue
		}
		if err := cv.ValidateConfig(spec.Config); err != nil {
			return &model.DefinitionError{Field: "config", StepIndex: i, Reason: err.Error()}
		}
	}
	return nil
}

// List returns the registered step types sorted by type for a stable API
// response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.steps))
	for stepType, s := range r.steps {
		info := s.Info()
		info.Type = stepType
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Type < infos[j].Type
	})
	return infos
}
