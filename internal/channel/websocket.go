package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"aoe2bot/internal/domain"

	"github.com/gorilla/websocket"
)

// Frame types of the WebSocket protocol.
const (
	FrameCommand = "command"
	FrameMessage = "message"
	FrameReply   = "reply"
	FrameStatus  = "status"
	FrameError   = "error"
)

const wsWriteTimeout = 10 * time.Second

// WSConfig configures the WebSocket channel.
type WSConfig struct {
	Host   string
	Port   int
	Path   string // WebSocket endpoint path (default: /ws)
	Logger *slog.Logger
}

// WebSocketChannel accepts commands and chat lines as JSON frames.
type WebSocketChannel struct {
	addr   string
	path   string
	bus    domain.MessageBus
	logger *slog.Logger
	server *http.Server
	nextID atomic.Int64

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	conn   *websocket.Conn
	chatID string
	mu     sync.Mutex
}

// WSFrame is the JSON protocol for WebSocket communication. Clients send
// "command" frames (Name, Args) or "message" frames (Content, UserID); the
// server sends "reply", "status" and "error" frames.
type WSFrame struct {
	Type     string               `json:"type"`
	Name     string               `json:"name,omitempty"`
	Args     map[string]string    `json:"args,omitempty"`
	Content  string               `json:"content,omitempty"`
	UserID   string               `json:"user_id,omitempty"`
	UserName string               `json:"user_name,omitempty"`
	ChatID   string               `json:"chat_id,omitempty"`
	Body     string               `json:"body,omitempty"`
	Actions  []domain.ReplyAction `json:"actions,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketChannel creates a new WebSocket channel.
func NewWebSocketChannel(cfg WSConfig) *WebSocketChannel {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &WebSocketChannel{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		path:    cfg.Path,
		logger:  cfg.Logger,
		clients: make(map[string]*wsClient),
	}
}

func (ws *WebSocketChannel) Name() string { return "websocket" }

// Start listens on the configured address and serves until ctx is done.
func (ws *WebSocketChannel) Start(ctx context.Context, bus domain.MessageBus) error {
	ln, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("websocket listen %s: %w", ws.addr, err)
	}
	return ws.Serve(ctx, bus, ln)
}

// Serve is Start on an existing listener.
func (ws *WebSocketChannel) Serve(ctx context.Context, bus domain.MessageBus, ln net.Listener) error {
	ws.bus = bus

	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, ws.handleUpgrade)
	ws.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	bus.OnOutbound(ws.Name(), func(msg domain.Outbound) {
		ws.sendToChat(msg.ChatID, WSFrame{
			Type:    FrameReply,
			ChatID:  msg.ChatID,
			Body:    msg.Reply.Body,
			Actions: msg.Reply.Actions,
		})
	})

	ws.logger.Info("websocket server starting", "addr", ln.Addr().String(), "path", ws.path)

	errCh := make(chan error, 1)
	go func() {
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ws.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ws.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("websocket server: %w", err)
	}
}

// Stop is a no-op; the server shuts down when Start's context is cancelled.
func (ws *WebSocketChannel) Stop() error { return nil }

func (ws *WebSocketChannel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	n := ws.nextID.Add(1)
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = "ws-" + strconv.FormatInt(n, 10)
	}
	client := &wsClient{conn: conn, chatID: chatID}
	clientID := chatID + "#" + strconv.FormatInt(n, 10)

	ws.mu.Lock()
	ws.clients[clientID] = client
	ws.mu.Unlock()

	ws.logger.Info("websocket client connected", "client_id", clientID, "chat_id", chatID)
	client.send(WSFrame{Type: FrameStatus, Content: "connected", ChatID: chatID})

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, clientID)
		ws.mu.Unlock()
		conn.Close()
		ws.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var frame WSFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			ws.logger.Warn("invalid websocket frame", "err", err)
			client.send(WSFrame{Type: FrameError, Content: "invalid JSON frame"})
			continue
		}

		ev, err := ws.trigger(chatID, frame)
		if err != nil {
			client.send(WSFrame{Type: FrameError, Content: err.Error()})
			continue
		}
		ws.bus.Publish(ev)
	}
}

func (ws *WebSocketChannel) trigger(chatID string, f WSFrame) (domain.TriggerEvent, error) {
	src := domain.Source{Channel: ws.Name(), ChatID: chatID}
	author := domain.User{ID: f.UserID, Name: f.UserName}
	if author.ID == "" {
		author.ID = chatID
	}

	switch f.Type {
	case FrameCommand:
		if f.Name == "" {
			return domain.TriggerEvent{}, errors.New("command frame without name")
		}
		return domain.NewCommand(src, author, f.Name, f.Args, nil), nil
	case FrameMessage:
		return domain.NewPassiveMessage(src, author, f.Content), nil
	default:
		return domain.TriggerEvent{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

// sendToChat writes frame to every client in chatID, or to all clients when
// chatID is empty. Writes happen outside ws.mu so a slow client cannot stall
// connects and disconnects.
func (ws *WebSocketChannel) sendToChat(chatID string, frame WSFrame) {
	ws.mu.RLock()
	var targets []*wsClient
	for _, client := range ws.clients {
		if client.chatID == chatID || chatID == "" {
			targets = append(targets, client)
		}
	}
	ws.mu.RUnlock()

	for _, client := range targets {
		if err := client.send(frame); err != nil {
			ws.logger.Debug("websocket write failed", "chat_id", client.chatID, "err", err)
		}
	}
}

func (c *wsClient) send(frame WSFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WebSocketChannel) closeAllClients() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for id, client := range ws.clients {
		client.conn.Close()
		delete(ws.clients, id)
	}
}
