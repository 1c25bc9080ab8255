package main

import (
	"log/slog"
	"time"

	"aoe2bot/internal/bus"
	"aoe2bot/internal/channel"
	"aoe2bot/internal/config"
	"aoe2bot/internal/dispatch"
	"aoe2bot/internal/domain"
	"aoe2bot/internal/metrics"
	"aoe2bot/internal/reply"
	"aoe2bot/internal/upstream"
)

const busBufferSize = 100

// app holds the wired core shared by the gateway and chat commands.
type app struct {
	cfg     *config.Config
	bus     *bus.InMemoryBus
	events  *bus.EventBus
	fetcher *upstream.Fetcher
	router  *dispatch.Router
	loop    *dispatch.Loop
	metrics *metrics.Collector
}

func newApp(cfg *config.Config, logger *slog.Logger) *app {
	events := bus.NewEventBus(logger)
	collector := metrics.NewCollector()
	collector.Attach(events)

	fetcher := upstream.NewFetcher(upstream.FetcherConfig{
		Client:         upstream.NewHTTPClient(time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second),
		RankURL:        cfg.Upstream.RankURL,
		LeaderboardURL: cfg.Upstream.LeaderboardURL,
		Logger:         logger,
	})

	router := dispatch.NewRouter(dispatch.RouterConfig{
		Composer:         reply.NewComposer(cfg.Links),
		Fetcher:          fetcher,
		Roster:           cfg.Roster,
		ProfileID:        cfg.Upstream.ProfileID,
		LeaderboardLimit: cfg.Upstream.LeaderboardLimit,
		TriggerKeyword:   cfg.Trigger.Keyword,
		Events:           events,
		Logger:           logger,
	})

	messageBus := bus.New(busBufferSize, logger)
	loop := dispatch.NewLoop(dispatch.LoopConfig{
		Router:      router,
		Bus:         messageBus,
		Limiter:     dispatch.NewRateLimiter(cfg.Trigger.RateBurst, cfg.Trigger.RatePerMinute),
		Events:      events,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentEvents,
	})

	return &app{
		cfg:     cfg,
		bus:     messageBus,
		events:  events,
		fetcher: fetcher,
		router:  router,
		loop:    loop,
		metrics: collector,
	}
}

// gatewayChannels returns the enabled network channels. The CLI channel is
// only used by the chat command.
func gatewayChannels(cfg *config.Config, logger *slog.Logger) []domain.Channel {
	var chans []domain.Channel
	ch := cfg.Channels

	if ch.Discord.Enabled {
		chans = append(chans, channel.NewDiscord(channel.DiscordConfig{
			Token:   ch.Discord.Token,
			GuildID: ch.Discord.GuildID,
			Logger:  logger,
		}))
	}
	if ch.Telegram.Enabled {
		chans = append(chans, channel.NewTelegram(channel.TelegramConfig{
			Token:     ch.Telegram.Token,
			AllowFrom: ch.Telegram.AllowFrom,
			Logger:    logger,
		}))
	}
	if ch.Slack.Enabled {
		chans = append(chans, channel.NewSlack(channel.SlackConfig{
			BotToken: ch.Slack.BotToken,
			AppToken: ch.Slack.AppToken,
			Logger:   logger,
		}))
	}
	if ch.WebSocket.Enabled {
		chans = append(chans, channel.NewWebSocketChannel(channel.WSConfig{
			Host:   ch.WebSocket.Host,
			Port:   ch.WebSocket.Port,
			Path:   ch.WebSocket.Path,
			Logger: logger,
		}))
	}
	if ch.Webhook.Enabled {
		chans = append(chans, channel.NewWebhook(channel.WebhookConfig{
			Host:         ch.Webhook.Host,
			Port:         ch.Webhook.Port,
			Path:         ch.Webhook.Path,
			Secret:       ch.Webhook.Secret,
			ReplyTimeout: time.Duration(ch.Webhook.ReplyTimeoutSeconds) * time.Second,
			Logger:       logger,
		}))
	}
	return chans
}
