package channel

import (
	"strings"
	"testing"
	"unicode/utf8"

	"aoe2bot/internal/domain"
)

func TestTextTrigger(t *testing.T) {
	src := domain.Source{Channel: "cli", ChatID: "direct"}
	author := domain.User{ID: "u1"}

	ev := textTrigger(src, author, "/rank The Viper")
	if ev.Kind != domain.TriggerCommand || ev.Command != "rank" || ev.Arg("player_name") != "The Viper" {
		t.Fatalf("unexpected command event %+v", ev)
	}

	ev = textTrigger(src, author, "aoe2de 123456789")
	if ev.Kind != domain.TriggerPassiveMessage || ev.Text != "aoe2de 123456789" {
		t.Fatalf("unexpected passive event %+v", ev)
	}
	if ev.Channel != "cli" || ev.ChatID != "direct" {
		t.Fatalf("source not carried: %+v", ev)
	}
}

func TestSplitMessage(t *testing.T) {
	if chunks := splitMessage("short message", 100); len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
	for _, blank := range []string{"", "  \n "} {
		if chunks := splitMessage(blank, 100); len(chunks) != 1 || chunks[0] != emptyBody {
			t.Errorf("splitMessage(%q) = %q, want [%q]", blank, chunks, emptyBody)
		}
	}

	long := strings.Repeat("word ", 100)
	chunks := splitMessage(long, 50)
	if len(chunks) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk %d too long: %d", i, len(c))
		}
	}
	if strings.Join(chunks, "") != long {
		t.Error("chunks must reassemble to the original")
	}
}

func TestSplitMessage_PrefersNewline(t *testing.T) {
	msg := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
	chunks := splitMessage(msg, 40)
	if len(chunks) != 2 || chunks[0] != strings.Repeat("a", 30)+"\n" {
		t.Fatalf("expected split after newline, got %q", chunks)
	}
}

func TestSplitMessage_MultiByteCountsCharacters(t *testing.T) {
	// 2000 characters but 6000 bytes: fits one Discord message.
	msg := strings.Repeat("日", 2000)
	if chunks := splitMessage(msg, discordMaxMsgLen); len(chunks) != 1 || chunks[0] != msg {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}

	msg = strings.Repeat("é", 70) + "\n" + strings.Repeat("ß", 25)
	chunks := splitMessage(msg, 40)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
		if n := utf8.RuneCountInString(c); n > 40 {
			t.Errorf("chunk %d has %d characters", i, n)
		}
	}
	if strings.Join(chunks, "") != msg {
		t.Error("chunks must reassemble to the original")
	}
}

func TestBoldToHTML(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Extracted Match ID: **123456789**", "Extracted Match ID: <b>123456789</b>"},
		{"a < b & c", "a &lt; b &amp; c"},
		{"**x** and **y**", "<b>x</b> and <b>y</b>"},
		{"odd ** marker", "odd ** marker"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := boldToHTML(tc.in); got != tc.want {
			t.Errorf("boldToHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlackMrkdwn(t *testing.T) {
	if got := slackMrkdwn("ID: **1** <x>"); got != "ID: *1* &lt;x&gt;" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestPlainActions(t *testing.T) {
	got := plainActions([]domain.ReplyAction{
		{Label: "Join", URL: "https://a"},
		{Label: "Watch", URL: "https://b"},
	})
	if got != "[Join] https://a\n[Watch] https://b\n" {
		t.Fatalf("unexpected %q", got)
	}
}
