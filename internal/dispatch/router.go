package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aoe2bot/internal/bus"
	"aoe2bot/internal/domain"
	"aoe2bot/internal/matchid"
	"aoe2bot/internal/reply"
	"aoe2bot/internal/upstream"
)

const (
	DefaultTriggerKeyword   = "aoe2de"
	DefaultLeaderboardLimit = 5

	msgNoMatchID      = "No 9-digit match ID found in the input."
	msgFetchFailed    = "Sorry, the statistics service could not be reached. Please try again later."
	msgUnknownCommand = "Unknown command. Type /help for available commands."
)

// Fetcher is the upstream statistics collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.UpstreamQuery) (string, error)
}

// Outcome is the result of handling one trigger event. A nil Reply means
// nothing is sent. Err records the failure behind a fallback reply; it is
// for logs and metrics only.
type Outcome struct {
	Reply *domain.StructuredReply
	Err   error
}

// Router turns trigger events into replies. It keeps no per-event state and
// is safe for concurrent use.
type Router struct {
	composer  *reply.Composer
	fetcher   Fetcher
	roster    []domain.RosterEntry
	profileID string
	limit     int
	keyword   string
	events    *bus.EventBus
	logger    *slog.Logger
}

// RouterConfig holds the router's collaborators and settings.
type RouterConfig struct {
	Composer         *reply.Composer
	Fetcher          Fetcher
	Roster           []domain.RosterEntry
	ProfileID        string
	LeaderboardLimit int
	TriggerKeyword   string
	Events           *bus.EventBus // optional
	Logger           *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Composer == nil {
		cfg.Composer = reply.NewComposer(reply.DefaultLinks())
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = DefaultLeaderboardLimit
	}
	if cfg.TriggerKeyword == "" {
		cfg.TriggerKeyword = DefaultTriggerKeyword
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	roster := make([]domain.RosterEntry, len(cfg.Roster))
	copy(roster, cfg.Roster)
	return &Router{
		composer:  cfg.Composer,
		fetcher:   cfg.Fetcher,
		roster:    roster,
		profileID: cfg.ProfileID,
		limit:     cfg.LeaderboardLimit,
		keyword:   strings.ToLower(cfg.TriggerKeyword),
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
}

// Handle processes a single event.
func (r *Router) Handle(ctx context.Context, ev domain.TriggerEvent) Outcome {
	r.emit(bus.EventTriggerReceived, ev, map[string]string{"kind": ev.Kind.String(), "command": ev.Command})

	switch ev.Kind {
	case domain.TriggerCommand:
		return r.handleCommand(ctx, ev)
	case domain.TriggerPassiveMessage:
		return r.handlePassive(ev)
	default:
		return Outcome{Err: fmt.Errorf("unknown trigger kind %d", ev.Kind)}
	}
}

func (r *Router) handleCommand(ctx context.Context, ev domain.TriggerEvent) Outcome {
	switch ev.Command {
	case CmdAge:
		return r.text(ev, ageText(ev))

	case CmdMatchInfo:
		input := ev.Arg(ArgMatchID)
		id := matchid.Extract(input)
		if !id.IsPresent() {
			r.logger.Warn("no match id in match_info input", "channel", ev.Channel, "input", input)
			return r.text(ev, msgNoMatchID)
		}
		return r.match(ev, id.MustGet())

	case CmdRank, CmdTeamRank:
		player := strings.TrimSpace(ev.Arg(ArgPlayerName))
		if player == "" {
			return r.text(ev, usageText(ev.Command))
		}
		q := upstream.PlayerRankQuery(player, r.profileID)
		if ev.Command == CmdTeamRank {
			q = upstream.TeamRankQuery(player, r.profileID)
		}
		body, err := r.fetch(ctx, ev, q)
		if err != nil {
			return r.fetchFailed(ev, err)
		}
		return r.text(ev, body)

	case CmdLeaderboard:
		body, err := r.fetch(ctx, ev, upstream.LeaderboardQuery(r.roster, r.limit))
		if err != nil {
			return r.fetchFailed(ev, err)
		}
		return r.text(ev, upstream.FormatLeaderboard(body))

	case CmdHelp:
		return r.text(ev, helpText())

	default:
		r.logger.Info("unknown command", "channel", ev.Channel, "command", ev.Command)
		return r.text(ev, msgUnknownCommand)
	}
}

func (r *Router) handlePassive(ev domain.TriggerEvent) Outcome {
	if ev.IsSelf() {
		r.emit(bus.EventTriggerSuppressed, ev, map[string]string{"reason": "self"})
		return Outcome{}
	}

	lower := strings.ToLower(ev.Text)
	if !strings.Contains(lower, r.keyword) {
		return Outcome{}
	}

	id := matchid.Extract(lower)
	if !id.IsPresent() {
		r.logger.Warn("trigger keyword without match id",
			"channel", ev.Channel,
			"chat_id", ev.ChatID,
			"author", ev.Author.ID,
			"text", ev.Text,
		)
		r.emit(bus.EventExtractionMissed, ev, nil)
		return Outcome{}
	}

	r.logger.Info("match id spotted in chat", "channel", ev.Channel, "chat_id", ev.ChatID, "match_id", id.MustGet().String())
	return r.match(ev, id.MustGet())
}

func (r *Router) fetch(ctx context.Context, ev domain.TriggerEvent, q domain.UpstreamQuery) (string, error) {
	if r.fetcher == nil {
		return "", &upstream.FetchError{Kind: upstream.ErrNetwork, Err: errors.New("no fetcher configured")}
	}
	start := time.Now()
	body, err := r.fetcher.Fetch(ctx, q)
	elapsed := time.Since(start)

	attrs := map[string]string{"endpoint": q.Kind.String()}
	if err != nil {
		attrs["kind"] = upstream.KindOf(err).String()
		r.emitTimed(bus.EventFetchFailed, ev, attrs, elapsed)
		return "", err
	}
	r.emitTimed(bus.EventFetchCompleted, ev, attrs, elapsed)
	return body, nil
}

func (r *Router) fetchFailed(ev domain.TriggerEvent, err error) Outcome {
	r.logger.Error("upstream fetch failed",
		"channel", ev.Channel,
		"command", ev.Command,
		"kind", upstream.KindOf(err).String(),
		"err", err,
	)
	out := r.text(ev, msgFetchFailed)
	out.Err = err
	return out
}

func (r *Router) match(ev domain.TriggerEvent, id matchid.MatchID) Outcome {
	rep := r.composer.Compose(id)
	r.emit(bus.EventReplyComposed, ev, map[string]string{"kind": ev.Kind.String(), "reply": "match"})
	return Outcome{Reply: &rep}
}

func (r *Router) text(ev domain.TriggerEvent, body string) Outcome {
	rep := reply.Text(body)
	r.emit(bus.EventReplyComposed, ev, map[string]string{"kind": ev.Kind.String(), "reply": "text"})
	return Outcome{Reply: &rep}
}

func (r *Router) emit(typ string, ev domain.TriggerEvent, attrs map[string]string) {
	r.emitTimed(typ, ev, attrs, 0)
}

func (r *Router) emitTimed(typ string, ev domain.TriggerEvent, attrs map[string]string, d time.Duration) {
	r.events.Emit(bus.Event{Type: typ, Channel: ev.Channel, Attrs: attrs, Duration: d})
}

func ageText(ev domain.TriggerEvent) string {
	u := ev.Author
	if ev.Target != nil {
		u = *ev.Target
	}
	name := u.Name
	if name == "" {
		name = u.ID
	}
	if u.CreatedAt.IsZero() {
		return fmt.Sprintf("%s's account creation date is not available", name)
	}
	return fmt.Sprintf("%s's account was created at %s", name, u.CreatedAt.UTC().Format(time.RFC3339))
}
