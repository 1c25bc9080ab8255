package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"aoe2bot/internal/bus"
	"aoe2bot/internal/domain"
)

func collectOutbound(b *bus.InMemoryBus, channel string) (func() []domain.Outbound, *sync.WaitGroup) {
	var mu sync.Mutex
	var got []domain.Outbound
	wg := &sync.WaitGroup{}
	b.OnOutbound(channel, func(o domain.Outbound) {
		mu.Lock()
		got = append(got, o)
		mu.Unlock()
		wg.Done()
	})
	return func() []domain.Outbound {
		mu.Lock()
		defer mu.Unlock()
		return append([]domain.Outbound(nil), got...)
	}, wg
}

func TestLoop_RoutesReplies(t *testing.T) {
	b := bus.New(10, testLogger())
	r := newTestRouter(&fakeFetcher{body: "rank text"}, nil)
	loop := NewLoop(LoopConfig{Router: r, Bus: b, Logger: testLogger(), Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	results, wg := collectOutbound(b, "discord")
	wg.Add(2)

	b.Publish(command(CmdRank, map[string]string{ArgPlayerName: "x"}))
	b.Publish(passive(botID, "aoe2de 123456789")) // suppressed, no reply
	b.Publish(passive("u3", "aoe2de 123456789"))

	waitOrFail(t, wg)

	got := results()
	if len(got) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(got))
	}
	for _, o := range got {
		if o.ChatID != "chan-1" {
			t.Errorf("reply routed to wrong chat %q", o.ChatID)
		}
	}
}

type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, domain.UpstreamQuery) (string, error) {
	panic("fetcher exploded")
}

func TestLoop_PanicIsolated(t *testing.T) {
	b := bus.New(10, testLogger())
	r := newTestRouter(panicFetcher{}, nil)
	loop := NewLoop(LoopConfig{Router: r, Bus: b, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	results, wg := collectOutbound(b, "discord")
	wg.Add(1)

	b.Publish(command(CmdLeaderboard, nil))
	b.Publish(command(CmdMatchInfo, map[string]string{ArgMatchID: "123456789"}))

	waitOrFail(t, wg)
	if got := results(); len(got) != 1 || got[0].Reply.Body != "Extracted Match ID: **123456789**" {
		t.Fatalf("expected only the match reply, got %+v", got)
	}
}

func TestLoop_StopsOnBusClose(t *testing.T) {
	b := bus.New(1, testLogger())
	loop := NewLoop(LoopConfig{Router: newTestRouter(nil, nil), Bus: b, Logger: testLogger()})

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background())
		close(done)
	}()
	b.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after bus close")
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replies")
	}
}

func TestLoop_RateLimitedCommandGetsNotice(t *testing.T) {
	b := bus.New(10, testLogger())
	events := bus.NewEventBus(testLogger())
	loop := NewLoop(LoopConfig{
		Router:      newTestRouter(&fakeFetcher{}, nil),
		Bus:         b,
		Limiter:     NewRateLimiter(1, 1),
		Events:      events,
		Logger:      testLogger(),
		Concurrency: 1,
	})
	results := collectOutboundNoWait(b, "discord")
	ctx := context.Background()

	loop.process(ctx, command(CmdMatchInfo, map[string]string{ArgMatchID: "123456789"}))
	loop.process(ctx, command(CmdMatchInfo, map[string]string{ArgMatchID: "123456789"}))

	got := results()
	if len(got) != 2 {
		t.Fatalf("expected 2 outbound messages, got %d", len(got))
	}
	if len(got[0].Reply.Actions) != 3 {
		t.Fatalf("first reply should be the match reply, got %+v", got[0].Reply)
	}
	if got[1].Reply.Body != msgRateLimited || len(got[1].Reply.Actions) != 0 {
		t.Fatalf("second reply should be the notice, got %+v", got[1].Reply)
	}
	sup := events.Recent(bus.EventTriggerSuppressed, 1)
	if len(sup) != 1 || sup[0].Attr("reason") != "rate_limited" {
		t.Fatalf("expected rate_limited suppression, got %+v", sup)
	}
}

func TestLoop_RateLimitedPassiveDroppedChatterFree(t *testing.T) {
	b := bus.New(10, testLogger())
	loop := NewLoop(LoopConfig{
		Router:  newTestRouter(&fakeFetcher{}, nil),
		Bus:     b,
		Limiter: NewRateLimiter(1, 1),
		Logger:  testLogger(),
	})
	results := collectOutboundNoWait(b, "discord")
	ctx := context.Background()

	// Chatter produces no reply and spends no tokens.
	for i := 0; i < 3; i++ {
		loop.process(ctx, passive("u2", "gg wp"))
	}
	loop.process(ctx, passive("u2", "aoe2de://0/123456789"))
	loop.process(ctx, passive("u2", "aoe2de://0/123456789"))
	loop.process(ctx, passive("u3", "aoe2de://0/123456789"))

	got := results()
	if len(got) != 2 {
		t.Fatalf("expected replies for u2's first link and for u3, got %d", len(got))
	}
}

func TestLoop_NoLimiterDeliversEverything(t *testing.T) {
	b := bus.New(10, testLogger())
	loop := NewLoop(LoopConfig{Router: newTestRouter(&fakeFetcher{}, nil), Bus: b, Logger: testLogger()})
	results := collectOutboundNoWait(b, "discord")
	for i := 0; i < 20; i++ {
		loop.process(context.Background(), command(CmdMatchInfo, map[string]string{ArgMatchID: "123456789"}))
	}
	for _, o := range results() {
		if o.Reply.Body == msgRateLimited {
			t.Fatal("nil limiter must not limit")
		}
	}
	if n := len(results()); n != 20 {
		t.Fatalf("expected 20 replies, got %d", n)
	}
}

// collectOutboundNoWait records outbound messages for synchronous tests.
func collectOutboundNoWait(b *bus.InMemoryBus, channel string) func() []domain.Outbound {
	var mu sync.Mutex
	var got []domain.Outbound
	b.OnOutbound(channel, func(o domain.Outbound) {
		mu.Lock()
		got = append(got, o)
		mu.Unlock()
	})
	return func() []domain.Outbound {
		mu.Lock()
		defer mu.Unlock()
		return append([]domain.Outbound(nil), got...)
	}
}
