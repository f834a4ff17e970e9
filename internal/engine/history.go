package engine

import (
	"sync"

	"github.com/Little-Star888/agenttask/internal/model"
)

// DefaultHistorySize is the number of runs kept for lookup when no
// WithHistorySize option is given.
const DefaultHistorySize = 256

// history keeps the most recent runs, evicting the oldest finished run
// first. Runs still in flight are never evicted, so the history may exceed
// its limit while more than limit runs overlap.
type history struct {
	mu      sync.RWMutex
	limit   int
	order   []string
	runs    map[string]*model.RunResult
	onEvict func(runID string)
}

func newHistory(limit int, onEvict func(string)) *history {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &history{
		limit:   limit,
		runs:    make(map[string]*model.RunResult),
		onEvict: onEvict,
	}
}

// put stores a copy of res, replacing an earlier version of the same run.
func (h *history) put(res *model.RunResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.runs[res.RunID]; !ok {
		h.order = append(h.order, res.RunID)
	}
	h.runs[res.RunID] = res.Clone()

	for len(h.order) > h.limit {
		i := h.oldestFinished()
		if i < 0 {
			return
		}
		runID := h.order[i]
		h.order = append(h.order[:i:i], h.order[i+1:]...)
		delete(h.runs, runID)
		if h.onEvict != nil {
			h.onEvict(runID)
		}
	}
}

// oldestFinished returns the position in order of the oldest terminal run,
// or -1 when every stored run is still in flight.
func (h *history) oldestFinished() int {
	for i, runID := range h.order {
		if h.runs[runID].Terminal() {
			return i
		}
	}
	return -1
}

func (h *history) get(runID string) (*model.RunResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	res, ok := h.runs[runID]
	if !ok {
		return nil, false
	}
	return res.Clone(), true
}

// list returns copies of the stored runs, newest first.
func (h *history) list() []*model.RunResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*model.RunResult, 0, len(h.order))
	for i := len(h.order) - 1; i >= 0; i-- {
		out = append(out, h.runs[h.order[i]].Clone())
	}
	return out
}
