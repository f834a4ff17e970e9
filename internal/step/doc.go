// Package step defines the capability interface every step type implements,
// the registry that maps step type tags to capabilities, and helpers shared
// by step implementations for decoding their opaque configuration.
package step
