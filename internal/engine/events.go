package engine

import (
	"sync"

	"github.com/Little-Star888/agenttask/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// EventBroker fans out run events to subscribers, keyed by run id.
// It is safe for concurrent use.
//
// Topics are created by Open. Closed topics are retained as markers so that
// late subscribers (those subscribing after a run finishes) receive a closed
// channel instead of blocking forever. Markers are dropped with Forget once
// the run leaves the runner's history.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan model.RunEvent
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Open creates the topic for a run so that subscribers can attach before
// its first event. Opening an existing topic is a no-op.
func (b *EventBroker) Open(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.topics[runID]; !ok {
		b.topics[runID] = &eventTopic{subs: make(map[int]chan model.RunEvent)}
	}
}

// Subscribe returns a channel that receives events for the given run and an
// unsubscribe function. If the run has already finished (Close was called)
// or was never opened, the returned channel is immediately closed.
func (b *EventBroker) Subscribe(runID string) (<-chan model.RunEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.RunEvent, subscriberBufferSize)
	t, ok := b.topics[runID]
	if !ok || t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to all subscribers of the given run.
// Events are dropped for subscribers whose buffers are full.
func (b *EventBroker) Publish(runID string, ev model.RunEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber.
		}
	}
}

// Close signals that no more events will be published for the given run.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *EventBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Forget drops a topic. Subscribers still attached have their channels
// closed, and later Publish or Close calls for the run are no-ops.
func (b *EventBroker) Forget(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		return
	}
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	delete(b.topics, runID)
}
