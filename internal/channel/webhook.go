package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"aoe2bot/internal/domain"
)

const defaultWebhookReplyTimeout = 20 * time.Second

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	Host         string
	Port         int
	Path         string // webhook URL path (default: /webhook)
	Secret       string // HMAC secret for verifying webhook signatures
	ReplyTimeout time.Duration
	Logger       *slog.Logger
}

// Webhook accepts commands and chat lines over HTTP POST and answers each
// request with its reply. A request that produces no reply within the reply
// timeout is answered with 204.
type Webhook struct {
	addr         string
	path         string
	secret       string
	replyTimeout time.Duration
	bus          domain.MessageBus
	logger       *slog.Logger
	server       *http.Server

	seq     atomic.Int64
	pending sync.Map // reply ref -> chan domain.StructuredReply
}

// WebhookPayload is the expected JSON body for webhook requests.
type WebhookPayload struct {
	Type     string            `json:"type"` // "command" | "message"
	Name     string            `json:"name,omitempty"`
	Args     map[string]string `json:"args,omitempty"`
	Content  string            `json:"content,omitempty"`
	ChatID   string            `json:"chat_id,omitempty"`
	UserID   string            `json:"user_id,omitempty"`
	UserName string            `json:"user_name,omitempty"`
}

// NewWebhook creates a new webhook channel handler.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = defaultWebhookReplyTimeout
	}
	return &Webhook{
		addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		path:         cfg.Path,
		secret:       cfg.Secret,
		replyTimeout: cfg.ReplyTimeout,
		logger:       cfg.Logger,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Start begins the webhook HTTP server.
func (w *Webhook) Start(ctx context.Context, bus domain.MessageBus) error {
	w.Attach(bus)

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleWebhook)

	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "addr", w.addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// Attach connects the handler to bus without starting a server.
func (w *Webhook) Attach(bus domain.MessageBus) {
	w.bus = bus
	bus.OnOutbound(w.Name(), func(msg domain.Outbound) {
		v, ok := w.pending.LoadAndDelete(msg.ReplyRef)
		if !ok {
			w.logger.Debug("webhook reply without waiting request", "ref", msg.ReplyRef)
			return
		}
		v.(chan domain.StructuredReply) <- msg.Reply
	})
}

// Stop is a no-op; the server shuts down when Start's context is cancelled.
func (w *Webhook) Stop() error { return nil }

func (w *Webhook) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if w.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, w.secret, sig) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ref := "wh-" + strconv.FormatInt(w.seq.Add(1), 10)
	ev, err := w.trigger(ref, payload)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	w.logger.Info("webhook received",
		"type", payload.Type,
		"name", payload.Name,
		"chat_id", ev.ChatID,
		"user_id", ev.Author.ID,
	)

	replyCh := make(chan domain.StructuredReply, 1)
	w.pending.Store(ref, replyCh)
	defer w.pending.Delete(ref)

	w.bus.Publish(ev)

	timer := time.NewTimer(w.replyTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(reply)
	case <-timer.C:
		rw.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}

func (w *Webhook) trigger(ref string, p WebhookPayload) (domain.TriggerEvent, error) {
	if p.ChatID == "" {
		p.ChatID = "webhook-default"
	}
	if p.UserID == "" {
		p.UserID = "webhook"
	}
	src := domain.Source{Channel: w.Name(), ChatID: p.ChatID, ReplyRef: ref}
	author := domain.User{ID: p.UserID, Name: p.UserName}

	switch p.Type {
	case "command":
		if p.Name == "" {
			return domain.TriggerEvent{}, errors.New("name is required")
		}
		return domain.NewCommand(src, author, p.Name, p.Args, nil), nil
	case "message", "":
		if p.Content == "" {
			return domain.TriggerEvent{}, errors.New("content is required")
		}
		return domain.NewPassiveMessage(src, author, p.Content), nil
	default:
		return domain.TriggerEvent{}, fmt.Errorf("unknown type %q", p.Type)
	}
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
