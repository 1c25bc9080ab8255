// Package matchid finds Age of Empires II match IDs in free-form text.
//
// A match ID is a run of exactly nine ASCII digits. The run must be maximal:
// a longer number that merely contains nine digits is not a match ID, so
// phone numbers and profile IDs are never mistaken for one.
package matchid

import (
	"fmt"

	"github.com/samber/mo"
)

// Length is the number of digits in a match ID.
const Length = 9

// MatchID is a validated nine-digit match identifier.
type MatchID string

func (id MatchID) String() string { return string(id) }

// Extract returns the first maximal digit run of exactly Length digits in
// text, scanning left to right.
func Extract(text string) mo.Option[MatchID] {
	i := 0
	for i < len(text) {
		if !isDigit(text[i]) {
			i++
			continue
		}
		start := i
		for i < len(text) && isDigit(text[i]) {
			i++
		}
		if i-start == Length {
			return mo.Some(MatchID(text[start:i]))
		}
	}
	return mo.None[MatchID]()
}

// Parse validates s as a bare match ID.
func Parse(s string) (MatchID, error) {
	if len(s) != Length {
		return "", fmt.Errorf("match id must be %d digits, got %d characters", Length, len(s))
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return "", fmt.Errorf("match id contains non-digit %q at offset %d", s[i], i)
		}
	}
	return MatchID(s), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
