package domain

import "fmt"

// ActionStyle is the visual emphasis of a reply action.
type ActionStyle int

const (
	StylePrimary ActionStyle = iota + 1
	StyleSuccess
	StyleSecondary
)

func (s ActionStyle) String() string {
	switch s {
	case StylePrimary:
		return "primary"
	case StyleSuccess:
		return "success"
	case StyleSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// MarshalText encodes the style by name.
func (s ActionStyle) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ActionStyle) UnmarshalText(b []byte) error {
	switch string(b) {
	case "primary":
		*s = StylePrimary
	case "success":
		*s = StyleSuccess
	case "secondary":
		*s = StyleSecondary
	default:
		return fmt.Errorf("unknown action style %q", b)
	}
	return nil
}

// ReplyAction is a clickable link attached to a reply.
type ReplyAction struct {
	Label string      `json:"label"`
	Style ActionStyle `json:"style"`
	URL   string      `json:"url"`
}

// StructuredReply is body text plus an ordered list of link actions.
// Actions are displayed in slice order.
type StructuredReply struct {
	Body    string        `json:"body"`
	Actions []ReplyAction `json:"actions,omitempty"`
}

// Outbound is a reply addressed back to the chat an event came from.
type Outbound struct {
	Channel  string
	ChatID   string
	ReplyRef string
	Reply    StructuredReply
}
