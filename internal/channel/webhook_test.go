package channel

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aoe2bot/internal/bus"
	"aoe2bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// echoLoop answers every command event on b with its command name and
// ignores passive messages.
func echoLoop(b *bus.InMemoryBus) {
	for ev := range b.Subscribe() {
		if ev.Kind != domain.TriggerCommand {
			continue
		}
		b.SendOutbound(domain.Outbound{
			Channel:  ev.Channel,
			ChatID:   ev.ChatID,
			ReplyRef: ev.ReplyRef,
			Reply: domain.StructuredReply{
				Body:    "echo " + ev.Command + " " + ev.Arg("player_name"),
				Actions: []domain.ReplyAction{{Label: "Open", Style: domain.StyleSuccess, URL: "https://example.com"}},
			},
		})
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"content":"hello"}`)
	if !verifyHMAC(body, "test-secret", sign("test-secret", body)) {
		t.Error("valid HMAC should verify")
	}
	if verifyHMAC(body, "test-secret", "sha256=invalid") {
		t.Error("invalid HMAC should not verify")
	}
	if verifyHMAC(body, "test-secret", "") {
		t.Error("empty signature should not verify")
	}
}

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	w := NewWebhook(WebhookConfig{Logger: testLogger()})
	rr := httptest.NewRecorder()
	w.handleWebhook(rr, httptest.NewRequest("GET", "/webhook", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestWebhookHandler_BadRequests(t *testing.T) {
	w := NewWebhook(WebhookConfig{Logger: testLogger()})
	for _, body := range []string{
		"not json",
		`{"type":"message","content":""}`,
		`{"type":"command"}`,
		`{"type":"reaction","content":"x"}`,
	} {
		rr := httptest.NewRecorder()
		w.handleWebhook(rr, httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body)))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestWebhookHandler_Signature(t *testing.T) {
	w := NewWebhook(WebhookConfig{Secret: "my-secret", Logger: testLogger()})
	body := `{"content":"hello"}`

	rr := httptest.NewRecorder()
	w.handleWebhook(rr, httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-Signature-256", "sha256=invalid")
	rr = httptest.NewRecorder()
	w.handleWebhook(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
}

func TestWebhookHandler_CommandReply(t *testing.T) {
	b := bus.New(4, testLogger())
	defer b.Close()
	go echoLoop(b)

	w := NewWebhook(WebhookConfig{Secret: "s3cret", Logger: testLogger()})
	w.Attach(b)

	body := []byte(`{"type":"command","name":"rank","args":{"player_name":"Hera"}}`)
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature-256", sign("s3cret", body))
	rr := httptest.NewRecorder()
	w.handleWebhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var reply domain.StructuredReply
	if err := json.Unmarshal(rr.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Body != "echo rank Hera" || len(reply.Actions) != 1 || reply.Actions[0].Style != domain.StyleSuccess {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"style":"success"`)) {
		t.Fatalf("style should be encoded by name: %s", rr.Body.String())
	}
}

func TestWebhookHandler_NoReply(t *testing.T) {
	b := bus.New(4, testLogger())
	defer b.Close()
	go echoLoop(b)

	w := NewWebhook(WebhookConfig{ReplyTimeout: 50 * time.Millisecond, Logger: testLogger()})
	w.Attach(b)

	rr := httptest.NewRecorder()
	w.handleWebhook(rr, httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{"content":"hello there"}`)))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}
