package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Little-Star888/agenttask/internal/model"
)

// ErrNotFound is returned when no task exists for the requested id.
var ErrNotFound = errors.New("task not found")

// StorageError wraps a failure of the underlying storage medium. It is kept
// distinct from ErrNotFound so callers can tell "absent" from "broken".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store defines the persistence operations for task definitions.
//
// SaveTask creates a task when id is empty or unknown, assigning a fresh id,
// and otherwise overwrites the existing record in place, keeping its id and
// creation time. A load never observes a partially written record.
type Store interface {
	SaveTask(ctx context.Context, name string, cfg model.TaskConfig, id string) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context) ([]model.TaskSummary, error)
	DeleteTask(ctx context.Context, id string) error
	Close() error
}

// prepareSave validates the definition and returns a private copy of its
// config together with the encoded form every medium persists.
func prepareSave(name string, cfg model.TaskConfig) (model.TaskConfig, []byte, error) {
	if err := model.ValidateTask(name, &cfg); err != nil {
		return model.TaskConfig{}, nil, err
	}
	cfg = cfg.Clone()
	raw, err := json.Marshal(cfg)
	if err != nil {
		return model.TaskConfig{}, nil, fmt.Errorf("encode config: %w", err)
	}
	return cfg, raw, nil
}

// now returns the current time with the precision every medium round-trips.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
