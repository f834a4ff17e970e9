// Package engine runs task definitions. A Runner loads a task, validates
// every step against the step registry before anything executes, then drives
// the steps strictly in order through one variable context per run. Runs can
// be synchronous or submitted in the background, are cancellable between
// steps, and publish progress events for streaming.
package engine
