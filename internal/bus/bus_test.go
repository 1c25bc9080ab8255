package bus

import (
	"io"
	"log/slog"
	"testing"

	"aoe2bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	ev := domain.NewPassiveMessage(domain.Source{Channel: "cli", ChatID: "c1"}, domain.User{ID: "u1"}, "hi")
	b.Publish(ev)

	got := <-b.Subscribe()
	if got.Text != "hi" || got.Kind != domain.TriggerPassiveMessage {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestBus_OutboundRouting(t *testing.T) {
	b := New(1, testLogger())
	defer b.Close()

	var discord, slack int
	b.OnOutbound("discord", func(domain.Outbound) { discord++ })
	b.OnOutbound("slack", func(domain.Outbound) { slack++ })

	b.SendOutbound(domain.Outbound{Channel: "discord"})
	b.SendOutbound(domain.Outbound{Channel: "discord"})
	b.SendOutbound(domain.Outbound{Channel: "slack"})
	b.SendOutbound(domain.Outbound{Channel: "nowhere"})

	if discord != 2 || slack != 1 {
		t.Fatalf("expected 2 discord and 1 slack deliveries, got %d and %d", discord, slack)
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	b := New(1, testLogger())
	b.Close()
	b.Close()

	// Must not panic on a closed channel.
	b.Publish(domain.NewPassiveMessage(domain.Source{Channel: "cli"}, domain.User{}, "late"))

	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("expected closed inbound channel")
	}
}

func TestBus_DefaultBuffer(t *testing.T) {
	b := New(0, testLogger())
	if cap(b.inbound) != 100 {
		t.Fatalf("expected default buffer 100, got %d", cap(b.inbound))
	}
}
