// Package upstream relays text from the aoe2companion and aoe2insights
// nightbot endpoints.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"aoe2bot/internal/domain"
)

const (
	DefaultRankURL        = "https://data.aoe2companion.com/api/nightbot/rank"
	DefaultLeaderboardURL = "https://www.aoe2insights.com/nightbot/leaderboard/3/"

	// DefaultMaxBodyBytes bounds a response body. Larger bodies are an
	// ErrDecode failure, never a truncated success.
	DefaultMaxBodyBytes = 1 << 20
)

// Fetcher performs a single GET per query and returns the body verbatim.
type Fetcher struct {
	client         *http.Client
	rankURL        string
	leaderboardURL string
	maxBody        int64
	logger         *slog.Logger
}

// FetcherConfig configures a Fetcher. Empty URLs fall back to the public
// endpoints.
type FetcherConfig struct {
	Client         *http.Client
	RankURL        string
	LeaderboardURL string
	MaxBodyBytes   int64 // default DefaultMaxBodyBytes
	Logger         *slog.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(0)
	}
	if cfg.RankURL == "" {
		cfg.RankURL = DefaultRankURL
	}
	if cfg.LeaderboardURL == "" {
		cfg.LeaderboardURL = DefaultLeaderboardURL
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		client:         cfg.Client,
		rankURL:        cfg.RankURL,
		leaderboardURL: cfg.LeaderboardURL,
		maxBody:        cfg.MaxBodyBytes,
		logger:         cfg.Logger,
	}
}

// URL renders the request URL for q.
func (f *Fetcher) URL(q domain.UpstreamQuery) (string, error) {
	var base string
	switch q.Kind {
	case domain.EndpointPlayerRank, domain.EndpointTeamRank:
		base = f.rankURL
	case domain.EndpointLeaderboard:
		base = f.leaderboardURL
	default:
		return "", fmt.Errorf("unknown endpoint kind %d", q.Kind)
	}
	if len(q.Params) == 0 {
		return base, nil
	}
	var sb strings.Builder
	sb.WriteString(base)
	if strings.Contains(base, "?") {
		sb.WriteByte('&')
	} else {
		sb.WriteByte('?')
	}
	for i, p := range q.Params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(escapeValue(p.Value))
	}
	return sb.String(), nil
}

// Fetch issues one GET for q. It never retries. Request and response
// failures are *FetchError; a query with an unknown endpoint kind is a
// plain error since no request was attempted.
func (f *Fetcher) Fetch(ctx context.Context, q domain.UpstreamQuery) (string, error) {
	target, err := f.URL(q)
	if err != nil {
		return "", fmt.Errorf("build upstream url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &FetchError{Kind: ErrNetwork, URL: target, Err: err}
	}
	req.Header.Set("Accept", "text/plain")

	f.logger.Debug("upstream request", "endpoint", q.Kind.String(), "url", target)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Kind: ErrNetwork, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBody))
		return "", &FetchError{Kind: ErrHTTPStatus, Status: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return "", &FetchError{Kind: ErrDecode, URL: target, Err: err}
	}
	if int64(len(body)) > f.maxBody {
		return "", &FetchError{Kind: ErrDecode, URL: target, Err: fmt.Errorf("response exceeds %d bytes", f.maxBody)}
	}
	if !utf8.Valid(body) {
		return "", &FetchError{Kind: ErrDecode, URL: target, Err: fmt.Errorf("response is not valid UTF-8")}
	}
	return string(body), nil
}

// escapeValue query-escapes v but leaves commas literal, since the
// leaderboard endpoint expects user_ids=a,b,c, and encodes spaces as %20.
func escapeValue(v string) string {
	s := url.QueryEscape(v)
	s = strings.ReplaceAll(s, "%2C", ",")
	return strings.ReplaceAll(s, "+", "%20")
}
