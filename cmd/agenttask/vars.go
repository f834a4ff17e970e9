package main

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// parseVars turns key=value pairs into run inputs.
func parseVars(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: want key=value", p)
		}
		inputs[key] = parseValue(value)
	}
	return inputs, nil
}

// parseValue decodes s as JSON when it is valid JSON and returns it
// unchanged otherwise.
func parseValue(s string) any {
	if !gjson.Valid(s) {
		return s
	}
	return gjson.Parse(s).Value()
}
