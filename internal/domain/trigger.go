package domain

import "time"

// TriggerKind distinguishes the two ways a reply can be triggered.
type TriggerKind int

const (
	TriggerCommand TriggerKind = iota + 1
	TriggerPassiveMessage
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerCommand:
		return "command"
	case TriggerPassiveMessage:
		return "passive"
	default:
		return "unknown"
	}
}

// User is a chat-platform account as seen by the bot.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time // zero when the platform does not expose it
}

// TriggerEvent is one inbound occurrence, either an explicit command
// invocation or an ordinary chat message. Build it with NewCommand or
// NewPassiveMessage and treat it as read-only afterwards.
type TriggerEvent struct {
	Kind     TriggerKind
	Channel  string // adapter name: discord | telegram | slack | websocket | cli
	ChatID   string
	ReplyRef string // adapter-private reply routing token (e.g. a Discord interaction ID)
	Self     string // the bot's own user ID on the originating platform
	Author   User

	// Command fields.
	Command string
	Args    map[string]string
	Target  *User // resolved user argument, if the command takes one

	// Passive message fields.
	Text string

	Timestamp time.Time
}

// Source identifies where an event came from and how to answer it.
type Source struct {
	Channel  string
	ChatID   string
	ReplyRef string
	Self     string
}

// NewCommand builds a command trigger.
func NewCommand(src Source, author User, name string, args map[string]string, target *User) TriggerEvent {
	if args == nil {
		args = map[string]string{}
	}
	return TriggerEvent{
		Kind:      TriggerCommand,
		Channel:   src.Channel,
		ChatID:    src.ChatID,
		ReplyRef:  src.ReplyRef,
		Self:      src.Self,
		Author:    author,
		Command:   name,
		Args:      args,
		Target:    target,
		Timestamp: time.Now(),
	}
}

// NewPassiveMessage builds a trigger for an ordinary chat message.
func NewPassiveMessage(src Source, author User, text string) TriggerEvent {
	return TriggerEvent{
		Kind:      TriggerPassiveMessage,
		Channel:   src.Channel,
		ChatID:    src.ChatID,
		ReplyRef:  src.ReplyRef,
		Self:      src.Self,
		Author:    author,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Arg returns a command argument, or "" when absent.
func (e TriggerEvent) Arg(name string) string {
	return e.Args[name]
}

// IsSelf reports whether the event was authored by the bot itself.
func (e TriggerEvent) IsSelf() bool {
	return e.Self != "" && e.Author.ID == e.Self
}
