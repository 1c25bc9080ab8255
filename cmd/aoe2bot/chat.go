package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"aoe2bot/internal/channel"

	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in the terminal",
		Long:  "Reads lines from stdin. Lines starting with / are commands; anything else is treated as a chat message.",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Debug("config loaded", "path", cfgPath)
	if !cfg.Channels.CLI.Enabled {
		return errors.New("cli channel is disabled (channels.cli.enabled)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(ctx)
	}()

	cli := channel.NewCLI(channel.CLIConfig{
		Logger: logger,
		In:     cmd.InOrStdin(),
		Out:    cmd.OutOrStdout(),
	})
	err = cli.Start(ctx, a.bus)

	// Closing the bus lets the loop finish events still queued or in flight.
	a.bus.Close()
	<-loopDone
	return err
}
