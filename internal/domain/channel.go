package domain

import "context"

// Channel is a chat platform adapter (Discord, Telegram, Slack, WebSocket, CLI).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
