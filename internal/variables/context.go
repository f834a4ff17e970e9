// Package variables holds the run-scoped variable context that steps read from
// and the runner publishes step results into.
package variables

import (
	"maps"
	"slices"
	"sync"
)

// Context is an ordered mapping of variable name to value, owned by exactly
// one run. Bindings are only added or overwritten, never removed.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
	order  []string
}

// New creates a context seeded with the caller-supplied input variables.
// Seed keys are ordered by name so that seeding is deterministic.
func New(seed map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(seed))}
	for _, k := range slices.Sorted(maps.Keys(seed)) {
		c.set(k, seed[k])
	}
	return c
}

// Get returns the value bound to name. Absence is a normal outcome.
func (c *Context) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// Set binds value to name, overwriting any earlier binding. An overwritten
// name keeps its original position.
func (c *Context) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(name, value)
}

func (c *Context) set(name string, value any) {
	if _, exists := c.values[name]; !exists {
		c.order = append(c.order, name)
	}
	c.values[name] = value
}

// Snapshot returns a copy of the current bindings.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Names returns the bound names in the order they were first set.
func (c *Context) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of bindings.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
