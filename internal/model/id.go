package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTaskID generates a new ULID string for a stored task definition.
func NewTaskID() string {
	return ulid.Make().String()
}

// NewRunID generates an identifier for a single task run.
func NewRunID() string {
	return uuid.NewString()
}
