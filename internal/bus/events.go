package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Diagnostic event types emitted by the dispatcher.
const (
	EventTriggerReceived   = "trigger.received"
	EventTriggerSuppressed = "trigger.suppressed"
	EventReplyComposed     = "reply.composed"
	EventExtractionMissed  = "extraction.missed"
	EventFetchCompleted    = "fetch.completed"
	EventFetchFailed       = "fetch.failed"
)

// Event is an internal observability record. It never reaches chat.
type Event struct {
	Type      string
	Channel   string
	Attrs     map[string]string // e.g. "kind", "command", "endpoint", "reason"
	Duration  time.Duration     // set for fetch events
	Timestamp time.Time
}

// Attr returns a named attribute or "".
func (e Event) Attr(key string) string { return e.Attrs[key] }

type EventHandler func(Event)

type namedHandler struct {
	id string
	fn EventHandler
}

// EventBus is a synchronous topic-based pub/sub for diagnostics. It keeps a
// bounded history of recent events for inspection.
type EventBus struct {
	mu         sync.RWMutex
	handlers   map[string][]namedHandler
	history    []Event
	maxHistory int
	seq        int
	logger     *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:   make(map[string][]namedHandler),
		maxHistory: 256,
		logger:     logger,
	}
}

// On registers fn for eventType ("*" matches everything) and returns an ID
// usable with Off.
func (eb *EventBus) On(eventType string, fn EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.seq++
	id := eventType + "#" + strconv.Itoa(eb.seq)
	eb.handlers[eventType] = append(eb.handlers[eventType], namedHandler{id: id, fn: fn})
	return id
}

func (eb *EventBus) Off(eventType, id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	hs := eb.handlers[eventType]
	for i, h := range hs {
		if h.id == id {
			eb.handlers[eventType] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// Emit records e and calls matching handlers in registration order. A
// panicking handler is logged and skipped.
func (eb *EventBus) Emit(e Event) {
	if eb == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	eb.mu.Lock()
	if len(eb.history) >= eb.maxHistory {
		eb.history = eb.history[1:]
	}
	eb.history = append(eb.history, e)
	handlers := make([]namedHandler, 0, len(eb.handlers[e.Type])+len(eb.handlers["*"]))
	handlers = append(handlers, eb.handlers[e.Type]...)
	handlers = append(handlers, eb.handlers["*"]...)
	eb.mu.Unlock()

	for _, h := range handlers {
		eb.call(h, e)
	}
}

func (eb *EventBus) call(h namedHandler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", e.Type, "handler", h.id, "panic", r)
		}
	}()
	h.fn(e)
}

// Recent returns up to n of the newest events of the given type, oldest
// first. "*" selects all types.
func (eb *EventBus) Recent(eventType string, n int) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var out []Event
	for i := len(eb.history) - 1; i >= 0 && len(out) < n; i-- {
		if eventType == "*" || eb.history[i].Type == eventType {
			out = append(out, eb.history[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
