package reply

import (
	"fmt"
	"strings"

	"aoe2bot/internal/domain"
	"aoe2bot/internal/matchid"
)

// Placeholder is substituted with the match ID in link templates.
const Placeholder = "{id}"

const (
	LabelJoin     = "Join lobby in game"
	LabelSpectate = "Spectate match by clicking here"
	LabelAnalysis = "Post-match analysis (on aoe2insights)"
)

// Links holds the URL templates for the match reply buttons.
type Links struct {
	Join     string `json:"join" yaml:"join"`
	Spectate string `json:"spectate" yaml:"spectate"`
	Analysis string `json:"analysis" yaml:"analysis"`
}

// DefaultLinks returns the stock aoe2de deep links and aoe2insights page.
func DefaultLinks() Links {
	return Links{
		Join:     "https://httpbin.org/redirect-to?url=aoe2de://0/{id}",
		Spectate: "https://httpbin.org/redirect-to?url=aoe2de://1/{id}",
		Analysis: "https://www.aoe2insights.com/match/{id}/",
	}
}

// Validate checks that every template carries exactly one placeholder.
func (l Links) Validate() error {
	for name, tmpl := range map[string]string{"join": l.Join, "spectate": l.Spectate, "analysis": l.Analysis} {
		if n := strings.Count(tmpl, Placeholder); n != 1 {
			return fmt.Errorf("links.%s must contain %s exactly once, found %d", name, Placeholder, n)
		}
	}
	return nil
}

// Composer turns a match ID into the interactive match reply. It holds no
// mutable state and is safe for concurrent use.
type Composer struct {
	links Links
}

func NewComposer(links Links) *Composer {
	return &Composer{links: links}
}

// Compose builds the match reply. The actions are always Join, Spectate,
// Analysis in that order.
func (c *Composer) Compose(id matchid.MatchID) domain.StructuredReply {
	return domain.StructuredReply{
		Body: fmt.Sprintf("Extracted Match ID: **%s**", id),
		Actions: []domain.ReplyAction{
			{Label: LabelJoin, Style: domain.StyleSuccess, URL: expand(c.links.Join, id)},
			{Label: LabelSpectate, Style: domain.StylePrimary, URL: expand(c.links.Spectate, id)},
			{Label: LabelAnalysis, Style: domain.StyleSecondary, URL: expand(c.links.Analysis, id)},
		},
	}
}

// Text wraps a plain message as a reply with no actions.
func Text(body string) domain.StructuredReply {
	return domain.StructuredReply{Body: body}
}

// IDs are nine ASCII digits, so plain substitution is URL-safe.
func expand(tmpl string, id matchid.MatchID) string {
	return strings.ReplaceAll(tmpl, Placeholder, id.String())
}
