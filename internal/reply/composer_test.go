package reply

import (
	"reflect"
	"testing"

	"aoe2bot/internal/domain"
	"aoe2bot/internal/matchid"
)

func TestCompose_Body(t *testing.T) {
	r := NewComposer(DefaultLinks()).Compose(matchid.MatchID("123456789"))
	if r.Body != "Extracted Match ID: **123456789**" {
		t.Fatalf("unexpected body %q", r.Body)
	}
}

func TestCompose_ActionsOrderAndLinks(t *testing.T) {
	r := NewComposer(DefaultLinks()).Compose(matchid.MatchID("123456789"))
	want := []domain.ReplyAction{
		{Label: "Join lobby in game", Style: domain.StyleSuccess, URL: "https://httpbin.org/redirect-to?url=aoe2de://0/123456789"},
		{Label: "Spectate match by clicking here", Style: domain.StylePrimary, URL: "https://httpbin.org/redirect-to?url=aoe2de://1/123456789"},
		{Label: "Post-match analysis (on aoe2insights)", Style: domain.StyleSecondary, URL: "https://www.aoe2insights.com/match/123456789/"},
	}
	if !reflect.DeepEqual(r.Actions, want) {
		t.Fatalf("actions mismatch:\n got %+v\nwant %+v", r.Actions, want)
	}
}

func TestCompose_Pure(t *testing.T) {
	c := NewComposer(DefaultLinks())
	a := c.Compose(matchid.MatchID("555666777"))
	b := c.Compose(matchid.MatchID("555666777"))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical replies for the same id")
	}
	other := c.Compose(matchid.MatchID("555666778"))
	if reflect.DeepEqual(a, other) {
		t.Fatal("expected different replies for different ids")
	}
}

func TestCompose_CustomLinks(t *testing.T) {
	c := NewComposer(Links{
		Join:     "https://example.test/join/{id}",
		Spectate: "https://example.test/watch?m={id}",
		Analysis: "https://example.test/a/{id}",
	})
	r := c.Compose(matchid.MatchID("100200300"))
	if r.Actions[1].URL != "https://example.test/watch?m=100200300" {
		t.Fatalf("unexpected spectate url %q", r.Actions[1].URL)
	}
}

func TestLinks_Validate(t *testing.T) {
	if err := DefaultLinks().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	bad := DefaultLinks()
	bad.Analysis = "https://www.aoe2insights.com/match/"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for template without placeholder")
	}
	bad = DefaultLinks()
	bad.Join = "{id}/{id}"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for template with two placeholders")
	}
}

func TestText(t *testing.T) {
	r := Text("hello")
	if r.Body != "hello" || len(r.Actions) != 0 {
		t.Fatalf("unexpected reply %+v", r)
	}
}
