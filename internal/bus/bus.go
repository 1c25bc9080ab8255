package bus

import (
	"log/slog"
	"sync"
	"time"

	"aoe2bot/internal/domain"
)

const publishTimeout = 5 * time.Second

// InMemoryBus carries trigger events from channels to the dispatcher and
// replies back to the channel that registered for them.
type InMemoryBus struct {
	inbound  chan domain.TriggerEvent
	handlers map[string]func(domain.Outbound)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates an InMemoryBus with the given inbound buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.TriggerEvent, bufferSize),
		handlers: make(map[string]func(domain.Outbound)),
		logger:   logger,
	}
}

// Publish enqueues ev. When the buffer is full it waits up to
// publishTimeout before dropping the event.
func (b *InMemoryBus) Publish(ev domain.TriggerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("publish on closed bus", "channel", ev.Channel, "kind", ev.Kind.String())
		return
	}

	select {
	case b.inbound <- ev:
		return
	default:
	}

	b.logger.Warn("inbound bus full, waiting", "channel", ev.Channel, "author", ev.Author.ID)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case b.inbound <- ev:
	case <-timer.C:
		b.logger.Error("event dropped: bus full",
			"channel", ev.Channel,
			"kind", ev.Kind.String(),
			"author", ev.Author.ID,
		)
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.TriggerEvent {
	return b.inbound
}

// SendOutbound hands msg to the handler registered for msg.Channel.
func (b *InMemoryBus) SendOutbound(msg domain.Outbound) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Channel]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no outbound handler for channel", "channel", msg.Channel)
		return
	}
	handler(msg)
}

func (b *InMemoryBus) OnOutbound(channelName string, handler func(domain.Outbound)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelName] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
