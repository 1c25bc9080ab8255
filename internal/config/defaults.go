package config

import (
	"aoe2bot/internal/dispatch"
	"aoe2bot/internal/domain"
	"aoe2bot/internal/reply"
	"aoe2bot/internal/upstream"
)

// DefaultProfileID is the aoe2companion profile the rank endpoint is queried
// on behalf of.
const DefaultProfileID = "12348548"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:            "info",
			LogFormat:           "text",
			MaxConcurrentEvents: 16,
		},
		Channels: ChannelsConfig{
			WebSocket: WebSocketConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8080,
				Path:    "/ws",
			},
			Webhook: WebhookConfig{
				Enabled:             false,
				Host:                "127.0.0.1",
				Port:                9090,
				Path:                "/webhook",
				ReplyTimeoutSeconds: 20,
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Upstream: UpstreamConfig{
			RankURL:          upstream.DefaultRankURL,
			LeaderboardURL:   upstream.DefaultLeaderboardURL,
			ProfileID:        DefaultProfileID,
			LeaderboardLimit: dispatch.DefaultLeaderboardLimit,
			TimeoutSeconds:   15,
		},
		Links:   reply.DefaultLinks(),
		Roster:  defaultRoster(),
		Trigger: TriggerConfig{
			Keyword:       dispatch.DefaultTriggerKeyword,
			RateBurst:     5,
			RatePerMinute: 0, // disabled; set to enable per-user reply limiting
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
			Path:    "/metrics",
		},
	}
}

func defaultRoster() []domain.RosterEntry {
	return []domain.RosterEntry{
		{PlayerID: "9997875", Comment: "Kratos"},
		{PlayerID: "6903668", Comment: "Nagraj"},
		{PlayerID: "1489563", Comment: "deadmeat"},
		{PlayerID: "15625569", Comment: "CVS"},
		{PlayerID: "2543215", Comment: "marathaSun"},
		{PlayerID: "1228227", Comment: "hjpotter92"},
	}
}
