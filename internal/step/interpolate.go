package step

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.\-]*)\}`)

// Lookup resolves a variable reference. A plain name is looked up directly;
// a dotted name such as "user.address.city" falls back to walking into the
// map or slice bound to its first segment.
func Lookup(vars Variables, ref string) (any, bool) {
	if v, ok := vars.Get(ref); ok {
		return v, true
	}
	root, rest, found := strings.Cut(ref, ".")
	if !found {
		return nil, false
	}
	v, ok := vars.Get(root)
	if !ok {
		return nil, false
	}
	for _, seg := range strings.Split(rest, ".") {
		switch node := v.(type) {
		case map[string]any:
			v, ok = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			ok = err == nil && i >= 0 && i < len(node)
			if ok {
				v = node[i]
			}
		default:
			ok = false
		}
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// Interpolate expands ${name} placeholders in s. When s is exactly one
// placeholder the referenced value is returned unchanged, keeping its type.
// A placeholder that does not resolve is an error.
func Interpolate(s string, vars Variables) (any, error) {
	if m := placeholder.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
		ref := s[m[2]:m[3]]
		v, ok := Lookup(vars, ref)
		if !ok {
			return nil, fmt.Errorf("variable %q is not set", ref)
		}
		return v, nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		ref := match[2 : len(match)-1]
		v, ok := Lookup(vars, ref)
		if !ok {
			missing = append(missing, ref)
			return match
		}
		return format(v)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("variables not set: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// InterpolateString is Interpolate for fields that must stay strings.
func InterpolateString(s string, vars Variables) (string, error) {
	v, err := Interpolate(s, vars)
	if err != nil {
		return "", err
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	return format(v), nil
}

// InterpolateValue walks maps and slices, interpolating every string leaf.
func InterpolateValue(v any, vars Variables) (any, error) {
	switch val := v.(type) {
	case string:
		return Interpolate(val, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			r, err := InterpolateValue(e, vars)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			r, err := InterpolateValue(e, vars)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
