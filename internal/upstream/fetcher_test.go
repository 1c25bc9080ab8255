package upstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aoe2bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var testRoster = []domain.RosterEntry{
	{PlayerID: "9997875", Comment: "Kratos"},
	{PlayerID: "6903668", Comment: "Nagraj"},
	{PlayerID: "1489563", Comment: "deadmeat"},
}

func TestURL_DefaultEndpoints(t *testing.T) {
	f := NewFetcher(FetcherConfig{Logger: testLogger()})

	cases := []struct {
		q    domain.UpstreamQuery
		want string
	}{
		{
			PlayerRankQuery("TheViper", "12348548"),
			"https://data.aoe2companion.com/api/nightbot/rank?leaderboard_id=3&search=TheViper&profile_id=12348548&flag=true",
		},
		{
			TeamRankQuery("TheViper", "12348548"),
			"https://data.aoe2companion.com/api/nightbot/rank?leaderboard_id=4&search=TheViper&profile_id=12348548&flag=true",
		},
		{
			LeaderboardQuery(testRoster, 5),
			"https://www.aoe2insights.com/nightbot/leaderboard/3/?user_ids=9997875,6903668,1489563&rank=global&limit=5",
		},
	}
	for _, tc := range cases {
		got, err := f.URL(tc.q)
		if err != nil {
			t.Fatalf("URL(%s): %v", tc.q.Kind, err)
		}
		if got != tc.want {
			t.Errorf("URL(%s):\n got %s\nwant %s", tc.q.Kind, got, tc.want)
		}
	}
}

func TestURL_EscapesPlayerName(t *testing.T) {
	f := NewFetcher(FetcherConfig{Logger: testLogger()})
	got, err := f.URL(PlayerRankQuery("Hera & friends", "1"))
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultRankURL + "?leaderboard_id=3&search=Hera%20%26%20friends&profile_id=1&flag=true"
	if got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestURL_UnknownKind(t *testing.T) {
	f := NewFetcher(FetcherConfig{Logger: testLogger()})
	if _, err := f.URL(domain.UpstreamQuery{}); err == nil {
		t.Fatal("expected error for zero endpoint kind")
	}
}

func TestFetch_ReturnsBodyVerbatim(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, "  TheViper: #1 (2900) \n")
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{RankURL: srv.URL, Logger: testLogger()})
	body, err := f.Fetch(context.Background(), PlayerRankQuery("TheViper", "12348548"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if body != "  TheViper: #1 (2900) \n" {
		t.Fatalf("body was modified: %q", body)
	}
	if gotQuery != "leaderboard_id=3&search=TheViper&profile_id=12348548&flag=true" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
}

func TestFetch_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{LeaderboardURL: srv.URL, Logger: testLogger()})
	_, err := f.Fetch(context.Background(), LeaderboardQuery(testRoster, 5))
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != ErrHTTPStatus || fe.Status != http.StatusBadGateway {
		t.Fatalf("unexpected error %+v", fe)
	}
}

func TestFetch_SingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{RankURL: srv.URL, Logger: testLogger()})
	_, _ = f.Fetch(context.Background(), TeamRankQuery("x", "1"))
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

func TestFetch_Network(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f := NewFetcher(FetcherConfig{RankURL: addr, Client: NewHTTPClient(2 * time.Second), Logger: testLogger()})
	_, err := f.Fetch(context.Background(), PlayerRankQuery("x", "1"))
	if KindOf(err) != ErrNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestFetch_Decode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{RankURL: srv.URL, Logger: testLogger()})
	_, err := f.Fetch(context.Background(), PlayerRankQuery("x", "1"))
	if KindOf(err) != ErrDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestFetch_LargeBodyUnderLimitVerbatim(t *testing.T) {
	want := strings.Repeat("Kratos: #12 (2011), ", 3584) // 71680 bytes
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, want)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{LeaderboardURL: srv.URL, Logger: testLogger()})
	body, err := f.Fetch(context.Background(), LeaderboardQuery(testRoster, 5))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if body != want {
		t.Fatalf("body truncated or modified: got %d bytes, want %d", len(body), len(want))
	}
}

func TestFetch_OversizeBodyIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("é", 600)) // 1200 bytes
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{RankURL: srv.URL, MaxBodyBytes: 1024, Logger: testLogger()})
	body, err := f.Fetch(context.Background(), PlayerRankQuery("x", "1"))
	if KindOf(err) != ErrDecode {
		t.Fatalf("expected decode error for oversize body, got body=%d bytes err=%v", len(body), err)
	}
	if !strings.Contains(err.Error(), "exceeds 1024 bytes") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestFetch_BodyAtLimitAccepted(t *testing.T) {
	want := strings.Repeat("a", 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, want)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{RankURL: srv.URL, MaxBodyBytes: 1024, Logger: testLogger()})
	body, err := f.Fetch(context.Background(), PlayerRankQuery("x", "1"))
	if err != nil || body != want {
		t.Fatalf("body at the limit should pass: %d bytes, err=%v", len(body), err)
	}
}

func TestFetch_UnknownKindIsNotNetwork(t *testing.T) {
	f := NewFetcher(FetcherConfig{Logger: testLogger()})
	_, err := f.Fetch(context.Background(), domain.UpstreamQuery{})
	if err == nil {
		t.Fatal("expected error for zero endpoint kind")
	}
	if k := KindOf(err); k == ErrNetwork {
		t.Fatalf("unknown endpoint kind reported as %s", k)
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(FetcherConfig{RankURL: srv.URL, Logger: testLogger()})
	_, err := f.Fetch(ctx, PlayerRankQuery("x", "1"))
	if KindOf(err) != ErrNetwork {
		t.Fatalf("expected network error for cancelled context, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestKindOf_NonFetchError(t *testing.T) {
	if KindOf(errors.New("plain")) != 0 {
		t.Fatal("expected zero kind for foreign error")
	}
}
