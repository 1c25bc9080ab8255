package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"aoe2bot/internal/config"
	"aoe2bot/internal/upstream"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run diagnostic checks on the configuration",
		Long: `Verifies that the config file loads, enabled channels have credentials,
listen addresses are free and the statistics service answers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfgPath := resolveConfigPath()
			fmt.Fprintf(out, "aoe2bot check v%s\n", version)
			fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			r := &checkReport{out: out}

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				r.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Fprintf(out, "\nRun 'aoe2bot init' to create a default configuration.\n")
				return nil
			}
			r.pass("Config file", cfgPath)

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.summary()
			}
			r.pass("Config validation", "valid")

			// 3. Channels
			checkChannels(r, cfg)

			// 4. Listen addresses
			if cfg.Channels.WebSocket.Enabled {
				r.addr("WebSocket addr", net.JoinHostPort(cfg.Channels.WebSocket.Host, strconv.Itoa(cfg.Channels.WebSocket.Port)))
			}
			if cfg.Channels.Webhook.Enabled {
				r.addr("Webhook addr", net.JoinHostPort(cfg.Channels.Webhook.Host, strconv.Itoa(cfg.Channels.Webhook.Port)))
			}
			if cfg.Metrics.Enabled {
				r.addr("Metrics addr", cfg.Metrics.Addr)
			}

			// 5. Upstream
			if offline {
				r.warn("Upstream", "skipped (--offline)")
			} else {
				checkUpstream(cmd.Context(), r, cfg)
			}

			return r.summary()
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the upstream reachability check")
	return cmd
}

type checkReport struct {
	out                    io.Writer
	passed, warned, failed int
}

func (r *checkReport) pass(check, detail string) {
	fmt.Fprintf(r.out, "  [PASS] %-20s %s\n", check, detail)
	r.passed++
}

func (r *checkReport) fail(check, detail string) {
	fmt.Fprintf(r.out, "  [FAIL] %-20s %s\n", check, detail)
	r.failed++
}

func (r *checkReport) warn(check, detail string) {
	fmt.Fprintf(r.out, "  [WARN] %-20s %s\n", check, detail)
	r.warned++
}

func (r *checkReport) addr(check, addr string) {
	if err := checkListen(addr); err != nil {
		r.fail(check, fmt.Sprintf("%s unavailable: %v", addr, err))
		return
	}
	r.pass(check, addr+" available")
}

func (r *checkReport) summary() error {
	fmt.Fprintf(r.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(r.out, "Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		fmt.Fprintf(r.out, "\nPlease fix the failed checks before running aoe2bot.\n")
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Fprintf(r.out, "\naoe2bot should work but consider fixing the warnings.\n")
	} else {
		fmt.Fprintf(r.out, "\nAll checks passed! aoe2bot is ready to run.\n")
	}
	return nil
}

func checkChannels(r *checkReport, cfg *config.Config) {
	ch := cfg.Channels
	enabled := 0
	for _, c := range []struct {
		name    string
		enabled bool
		token   string
	}{
		{"Discord", ch.Discord.Enabled, ch.Discord.Token},
		{"Telegram", ch.Telegram.Enabled, ch.Telegram.Token},
		{"Slack", ch.Slack.Enabled, ch.Slack.BotToken},
	} {
		if !c.enabled {
			continue
		}
		enabled++
		if c.token == "" {
			r.fail(c.name, "enabled but no token configured")
		} else {
			r.pass(c.name, "token configured")
		}
	}
	if ch.WebSocket.Enabled {
		enabled++
	}
	if ch.Webhook.Enabled {
		enabled++
		if ch.Webhook.Secret == "" {
			r.warn("Webhook", "no secret set; requests are not signed")
		} else {
			r.pass("Webhook", "HMAC secret configured")
		}
	}
	if enabled == 0 {
		r.warn("Channels", "none enabled for the gateway; only 'aoe2bot chat' will work")
	}
}

func checkUpstream(ctx context.Context, r *checkReport, cfg *config.Config) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f := upstream.NewFetcher(upstream.FetcherConfig{
		Client:         upstream.NewHTTPClient(timeout),
		RankURL:        cfg.Upstream.RankURL,
		LeaderboardURL: cfg.Upstream.LeaderboardURL,
		Logger:         logger,
	})

	start := time.Now()
	body, err := f.Fetch(ctx, upstream.LeaderboardQuery(cfg.Roster, cfg.Upstream.LeaderboardLimit))
	if err != nil {
		r.fail("Upstream", fmt.Sprintf("%s: %v", upstream.KindOf(err), err))
		return
	}
	detail := fmt.Sprintf("leaderboard answered in %s", time.Since(start).Round(time.Millisecond))
	if upstream.FormatLeaderboard(body) == "" {
		r.warn("Upstream", detail+" with an empty body")
		return
	}
	r.pass("Upstream", detail)
}

func checkListen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
