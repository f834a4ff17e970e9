package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs/v2"
	"github.com/tidwall/gjson"

	"github.com/Little-Star888/agenttask/internal/step"
)

type jsonGetConfig struct {
	Source   string `json:"source" validate:"required"`
	Path     string `json:"path" validate:"required"`
	Optional bool   `json:"optional"`
}

// JSONGet extracts a value from a variable with a gjson path such as
// "items.#.id" or "user.name". The source may be a JSON string, raw bytes or
// any JSON-shaped value.
type JSONGet struct{}

func (j *JSONGet) Info() step.Info {
	return step.Info{
		Description: "Extract a value from a variable with a gjson path",
		ConfigKeys:  []string{"source", "path", "optional"},
	}
}

func (j *JSONGet) ValidateConfig(config map[string]any) error {
	var cfg jsonGetConfig
	return step.DecodeConfig(config, &cfg)
}

func (j *JSONGet) Execute(_ context.Context, config map[string]any, vars step.Variables) (any, error) {
	var cfg jsonGetConfig
	if err := step.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	src, ok := step.Lookup(vars, cfg.Source)
	if !ok {
		return nil, fmt.Errorf("variable %q is not set", cfg.Source)
	}
	raw, err := rawJSON(src)
	if err != nil {
		return nil, err
	}
	path, err := step.InterpolateString(cfg.Path, vars)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}

	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		if cfg.Optional {
			return nil, nil
		}
		return nil, fmt.Errorf("path %q not found in %q", path, cfg.Source)
	}
	return res.Value(), nil
}

type jsonSetConfig struct {
	Source string `json:"source"`
	Path   string `json:"path" validate:"required"`
	Value  any    `json:"value"`
}

// JSONSet produces a copy of a JSON document with a value set at a dotted
// path, creating intermediate objects as needed. Without a source it starts
// from an empty object. The source variable itself is never modified.
type JSONSet struct{}

func (j *JSONSet) Info() step.Info {
	return step.Info{
		Description: "Set a value at a dotted path in a copy of a JSON document",
		ConfigKeys:  []string{"source", "path", "value"},
	}
}

func (j *JSONSet) ValidateConfig(config map[string]any) error {
	var cfg jsonSetConfig
	return step.DecodeConfig(config, &cfg)
}

func (j *JSONSet) Execute(_ context.Context, config map[string]any, vars step.Variables) (any, error) {
	var cfg jsonSetConfig
	if err := step.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	doc := gabs.New()
	if cfg.Source != "" {
		src, ok := step.Lookup(vars, cfg.Source)
		if !ok {
			return nil, fmt.Errorf("variable %q is not set", cfg.Source)
		}
		raw, err := rawJSON(src)
		if err != nil {
			return nil, err
		}
		if doc, err = gabs.ParseJSON(raw); err != nil {
			return nil, fmt.Errorf("parse %q: %w", cfg.Source, err)
		}
	}

	value, err := step.InterpolateValue(cfg.Value, vars)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	if _, err := doc.SetP(value, cfg.Path); err != nil {
		return nil, fmt.Errorf("set %q: %w", cfg.Path, err)
	}
	return doc.Data(), nil
}

func rawJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return []byte(val), nil
	case []byte:
		return val, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode source: %w", err)
		}
		return b, nil
	}
}
