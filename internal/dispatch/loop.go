package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"aoe2bot/internal/bus"
	"aoe2bot/internal/domain"
	"aoe2bot/internal/reply"
)

const (
	defaultConcurrency = 16

	msgRateLimited = "You're sending commands too fast. Please wait a moment."
)

// Loop consumes trigger events from the bus and handles each one in its own
// goroutine, with at most Concurrency in flight.
type Loop struct {
	router      *Router
	bus         domain.MessageBus
	limiter     *RateLimiter
	events      *bus.EventBus
	logger      *slog.Logger
	concurrency int
}

type LoopConfig struct {
	Router      *Router
	Bus         domain.MessageBus
	Limiter     *RateLimiter  // optional; applied to outgoing replies, nil disables
	Events      *bus.EventBus // optional
	Logger      *slog.Logger
	Concurrency int
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		router:      cfg.Router,
		bus:         cfg.Bus,
		limiter:     cfg.Limiter,
		events:      cfg.Events,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run blocks until ctx is cancelled or the bus is closed. In-flight events
// are allowed to finish before it returns.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("dispatch loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	defer func() {
		for i := 0; i < cap(sem); i++ {
			sem <- struct{}{}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("dispatch loop stopping")
			return
		case ev, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound bus closed, dispatch loop stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(ev domain.TriggerEvent) {
				defer func() { <-sem }()
				l.process(ctx, ev)
			}(ev)
		}
	}
}

// process handles one event and sends its reply, if any. A panic is
// contained to the event that caused it.
func (l *Loop) process(ctx context.Context, ev domain.TriggerEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event handler panic",
				"channel", ev.Channel,
				"kind", ev.Kind.String(),
				"panic", fmt.Sprint(r),
			)
		}
	}()

	out := l.router.Handle(ctx, ev)
	if out.Err != nil {
		l.logger.Debug("event handled with error", "channel", ev.Channel, "command", ev.Command, "err", out.Err)
	}
	if out.Reply == nil {
		return
	}
	rep, ok := l.admit(ev, *out.Reply)
	if !ok {
		return
	}
	l.bus.SendOutbound(domain.Outbound{
		Channel:  ev.Channel,
		ChatID:   ev.ChatID,
		ReplyRef: ev.ReplyRef,
		Reply:    rep,
	})
}

// admit applies the per-user delivery limit to a composed reply. Events
// that produce no reply never reach it. A limited command is answered with
// a short notice so platforms that wait for an answer get one; a limited
// passive reply is dropped.
func (l *Loop) admit(ev domain.TriggerEvent, rep domain.StructuredReply) (domain.StructuredReply, bool) {
	if l.limiter.Allow(ev.Channel + ":" + ev.Author.ID) {
		return rep, true
	}
	l.logger.Info("reply rate limited", "channel", ev.Channel, "author", ev.Author.ID, "kind", ev.Kind.String())
	l.events.Emit(bus.Event{
		Type:    bus.EventTriggerSuppressed,
		Channel: ev.Channel,
		Attrs:   map[string]string{"reason": "rate_limited"},
	})
	if ev.Kind != domain.TriggerCommand {
		return domain.StructuredReply{}, false
	}
	return reply.Text(msgRateLimited), true
}
