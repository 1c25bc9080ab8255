package matchid

import "testing"

func TestExtract_Found(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"check match 123456789 please", "123456789"},
		{"123456789", "123456789"},
		{"at the end 987654321", "987654321"},
		{"https://www.aoe2insights.com/match/334455667/", "334455667"},
		{"aoe2de://0/223344556", "223344556"},
		{"id:111222333,", "111222333"},
		{"lobby123456789x", "123456789"},
		{"first 111111111 then 222222222", "111111111"},
		{"skip 1234567890 but take 555666777", "555666777"},
		{"https://httpbin.org/redirect-to?url=aoe2de://1/998877665", "998877665"},
	}
	for _, tc := range cases {
		in, want := tc.in, tc.want
		got := Extract(in)
		if !got.IsPresent() {
			t.Errorf("Extract(%q): expected %s, got none", in, want)
			continue
		}
		if got.MustGet().String() != want {
			t.Errorf("Extract(%q) = %s, want %s", in, got.MustGet(), want)
		}
	}
}

func TestExtract_NotFound(t *testing.T) {
	cases := []string{
		"",
		"no digits here",
		"anyone want to play aoe2de?",
		"12345678",
		"eight 12345678 digits",
		"my number is 11234567890",
		"ten 1234567890 digits",
		"x0123456789",
		"1234567891",
	}
	for _, in := range cases {
		if got := Extract(in); got.IsPresent() {
			t.Errorf("Extract(%q): expected none, got %s", in, got.MustGet())
		}
	}
}

// A longer digit run contains nine-digit substrings at every offset; none of
// them may be returned.
func TestExtract_RejectsEmbeddedRuns(t *testing.T) {
	for extra := 1; extra <= 5; extra++ {
		digits := "123456789"
		for i := 0; i < extra; i++ {
			digits += "0"
		}
		in := "see " + digits + " here"
		if got := Extract(in); got.IsPresent() {
			t.Fatalf("Extract(%q) returned embedded run %s", in, got.MustGet())
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	in := "match 123456789 and 987654321"
	a, b := Extract(in), Extract(in)
	if a.MustGet() != b.MustGet() {
		t.Fatalf("expected stable result, got %s and %s", a.MustGet(), b.MustGet())
	}
}

func TestParse(t *testing.T) {
	if id, err := Parse("123456789"); err != nil || id != "123456789" {
		t.Fatalf("Parse valid: got %q, %v", id, err)
	}
	for _, bad := range []string{"", "12345678", "1234567890", "12345678a", " 12345678"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q): expected error", bad)
		}
	}
}
