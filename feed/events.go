package feed

import (
	"sync"
	"time"
)

// EventKind names a category of consumer event.
type EventKind string

// Event kinds emitted by a Consumer.
const (
	// EventChange fires once per decoded record, in arrival order.
	EventChange EventKind = "change"
	// EventChangesError fires for a transport failure after the connect
	// callback has been consumed.
	EventChangesError EventKind = "error:changes"
	// EventViewsError fires once when a pre-fetch batch fails.
	EventViewsError EventKind = "error:views"
	// EventViews fires after every pre-fetch query has completed.
	EventViews EventKind = "views"
	// EventReconnect fires when a reconnect is scheduled after a failure.
	EventReconnect EventKind = "reconnect"
)

const viewEventPrefix = "views:"

// ViewEventKind returns the per-view rows event kind, "views:<name>".
func ViewEventKind(name string) EventKind {
	return EventKind(viewEventPrefix + name)
}

// Event is delivered to handlers. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// Record is set for EventChange. Record.Value may be nil.
	Record *Record
	// Cursor is the consumer position after the event.
	Cursor Cursor

	// View and Rows are set for per-view events.
	View string
	Rows []Row

	// Err is set for error events and for EventReconnect.
	Err error

	// Delay and Attempt are set for EventReconnect.
	Delay   time.Duration
	Attempt int
}

// Handler receives consumer events.
// Handlers run synchronously on the emitting goroutine and must not block
// for long: a slow change handler applies backpressure to the stream.
type Handler func(Event)

// registry is a typed set of handlers keyed by event kind.
// Emission is serialized so handlers never run concurrently.
type registry struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler

	emitMu sync.Mutex
}

func newRegistry() *registry {
	return &registry{handlers: make(map[EventKind][]Handler)}
}

func (r *registry) on(kind EventKind, h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.handlers[kind] = append(r.handlers[kind], h)
	r.mu.Unlock()
}

func (r *registry) emit(ev Event) {
	r.mu.RLock()
	hs := r.handlers[ev.Kind]
	r.mu.RUnlock()
	if len(hs) == 0 {
		return
	}

	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}
