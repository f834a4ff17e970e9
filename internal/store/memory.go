package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Little-Star888/agenttask/internal/model"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps tasks in process memory. Records are immutable once
// stored: a save builds a complete new record and swaps it in, and readers
// receive deep copies.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*model.Task)}
}

func (s *MemoryStore) SaveTask(_ context.Context, name string, cfg model.TaskConfig, id string) (*model.Task, error) {
	cfg, _, err := prepareSave(name, cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &model.Task{ID: id, Name: name, Config: cfg, UpdatedAt: now()}
	if prev, ok := s.tasks[id]; ok && id != "" {
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.ID = model.NewTaskID()
		rec.CreatedAt = rec.UpdatedAt
	}
	s.tasks[rec.ID] = rec
	return rec.Clone(), nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) ListTasks(_ context.Context) ([]model.TaskSummary, error) {
	s.mu.RLock()
	summaries := make([]model.TaskSummary, 0, len(s.tasks))
	for _, rec := range s.tasks {
		summaries = append(summaries, rec.Summary())
	}
	s.mu.RUnlock()

	sortSummaries(summaries)
	return summaries, nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// sortSummaries orders summaries most recently updated first, then by id.
func sortSummaries(summaries []model.TaskSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}
