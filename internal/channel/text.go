package channel

import (
	"html"
	"strings"

	"aoe2bot/internal/dispatch"
	"aoe2bot/internal/domain"
)

// textTrigger turns a line of chat text into a trigger: "/name args" is a
// command, anything else a passive message.
func textTrigger(src domain.Source, author domain.User, text string) domain.TriggerEvent {
	if cmd := dispatch.ParseCommand(text); cmd != nil {
		return domain.NewCommand(src, author, cmd.Name, cmd.Args, nil)
	}
	return domain.NewPassiveMessage(src, author, text)
}

// emptyBody stands in for a blank reply body. Discord and Slack reject
// messages without content.
const emptyBody = "(no data)"

// splitMessage splits a message into chunks of at most maxLen characters,
// trying to split on newlines when possible. Cuts fall on rune boundaries.
func splitMessage(msg string, maxLen int) []string {
	if strings.TrimSpace(msg) == "" {
		return []string{emptyBody}
	}

	runes := []rune(msg)
	var chunks []string
	for len(runes) > maxLen {
		cut := maxLen
		if idx := lastNewline(runes[:maxLen]); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// boldToHTML escapes s for Telegram's HTML parse mode and turns **x** spans
// into <b>x</b>. An unpaired ** is left as text.
func boldToHTML(s string) string {
	parts := strings.Split(s, "**")
	var sb strings.Builder
	for i, p := range parts {
		p = html.EscapeString(p)
		switch {
		case i == 0:
			sb.WriteString(p)
		case i%2 == 1 && i < len(parts)-1:
			sb.WriteString("<b>" + p)
		case i%2 == 1:
			sb.WriteString("**" + p)
		default:
			sb.WriteString("</b>" + p)
		}
	}
	return sb.String()
}

// slackMrkdwn escapes s for Slack and converts **x** to Slack's *x*.
func slackMrkdwn(s string) string {
	s = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
	return strings.ReplaceAll(s, "**", "*")
}

// plainActions renders actions as "[label] url" lines for text-only outputs.
func plainActions(actions []domain.ReplyAction) string {
	var sb strings.Builder
	for _, a := range actions {
		sb.WriteString("[" + a.Label + "] " + a.URL + "\n")
	}
	return sb.String()
}
