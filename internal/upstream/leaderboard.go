package upstream

import "strings"

const (
	attribution    = "(by aoe2insights.com)"
	entrySeparator = ", "
)

// FormatLeaderboard turns the single-line leaderboard text into one entry
// per line. The attribution is stripped first so it never ends up glued to
// an entry.
func FormatLeaderboard(raw string) string {
	stripped := strings.ReplaceAll(raw, attribution, "")
	parts := strings.Split(stripped, entrySeparator)
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return strings.Join(lines, "\n")
}
