package upstream

import "testing"

func TestFormatLeaderboard(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"attribution mid list", "A, B (by aoe2insights.com), C", "A\nB\nC"},
		{"attribution at end", "P1, P2 (by aoe2insights.com)", "P1\nP2"},
		{"no attribution", "#1 Kratos (1800), #2 Nagraj (1750)", "#1 Kratos (1800)\n#2 Nagraj (1750)"},
		{"repeated attribution", "(by aoe2insights.com)A, B(by aoe2insights.com)", "A\nB"},
		{"single entry", "only one", "only one"},
		{"empty", "", ""},
		{"comma without space kept", "1,234 pts, next", "1,234 pts\nnext"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatLeaderboard(tc.in); got != tc.want {
				t.Fatalf("FormatLeaderboard(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
