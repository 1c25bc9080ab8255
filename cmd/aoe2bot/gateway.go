package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aoe2bot/internal/metrics"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start all enabled channels and the dispatcher",
		Long:  "Starts every enabled channel (Discord, Telegram, Slack, WebSocket, webhook), the dispatch loop and the metrics endpoint. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	chans := gatewayChannels(cfg, logger)
	if len(chans) == 0 {
		return errors.New("no channels enabled; enable one under channels in the config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger)
	defer a.bus.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.loop.Run(gctx)
		return nil
	})

	for _, ch := range chans {
		g.Go(func() error {
			logger.Info("channel starting", "channel", ch.Name())
			if err := ch.Start(gctx, a.bus); err != nil {
				return fmt.Errorf("%s channel: %w", ch.Name(), err)
			}
			return nil
		})
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, a.metrics, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	logger.Info("gateway started. Press Ctrl+C to stop.", "channels", len(chans))

	err = g.Wait()
	for _, ch := range chans {
		if stopErr := ch.Stop(); stopErr != nil {
			logger.Warn("channel stop failed", "channel", ch.Name(), "err", stopErr)
		}
	}
	if err != nil {
		logger.Error("gateway stopped with error", "err", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
