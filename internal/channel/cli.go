package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"aoe2bot/internal/domain"
)

const cliPrompt = "You> "

// CLI implements domain.Channel for interactive terminal chat. Lines starting
// with "/" are commands; everything else is scanned like a chat message.
type CLI struct {
	bus    domain.MessageBus
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	user   domain.User
	mu     sync.Mutex // serializes writes to out
}

type CLIConfig struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
	User   string // author name for typed lines (default: "you")
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.User == "" {
		cfg.User = "you"
	}
	return &CLI{
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
		user:   domain.User{ID: "cli:" + cfg.User, Name: cfg.User},
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the REPL until EOF, /quit, or ctx is cancelled.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound(c.Name(), func(msg domain.Outbound) {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, _ = fmt.Fprintln(c.out, "\n--- aoe2bot ---")
		_, _ = fmt.Fprintln(c.out, msg.Reply.Body)
		_, _ = fmt.Fprint(c.out, plainActions(msg.Reply.Actions))
		_, _ = fmt.Fprintln(c.out, "---------------")
		_, _ = fmt.Fprint(c.out, cliPrompt)
	})

	c.write("aoe2bot CLI. Type /help for commands, /quit to exit.\n" + cliPrompt)

	src := domain.Source{Channel: c.Name(), ChatID: "direct"}
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				c.write(cliPrompt)
				continue
			}
			if line == "/quit" || line == "/exit" || line == "/q" {
				c.logger.Info("user requested quit")
				return nil
			}
			c.bus.Publish(textTrigger(src, c.user, line))
		}
	}
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }

func (c *CLI) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprint(c.out, s)
}
