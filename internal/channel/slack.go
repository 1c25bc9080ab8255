package channel

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"aoe2bot/internal/dispatch"
	"aoe2bot/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Section text is capped at 3000 characters by Block Kit.
const slackMaxMsgLen = 3000

// Slack implements domain.Channel for Slack using Socket Mode.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	bus      domain.MessageBus
	logger   *slog.Logger
	botUID   string
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	Logger   *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects to Slack via Socket Mode and blocks until ctx is done.
func (s *Slack) Start(ctx context.Context, bus domain.MessageBus) error {
	s.bus = bus

	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)
	s.socket = socketClient

	bus.OnOutbound(s.Name(), func(msg domain.Outbound) {
		s.sendReply(msg.ChatID, msg.Reply)
	})

	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(eventsAPIEvent)

			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.bus.Publish(s.commandTrigger(cmd))

			default:
				// Link button clicks arrive as interactive events; they only need an ack.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

// Stop is a no-op; the socket closes when Start's context is cancelled.
func (s *Slack) Stop() error { return nil }

func (s *Slack) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Edits, joins and other subtypes are not new chat.
	if ev.SubType != "" || ev.User == "" {
		return
	}

	s.logger.Debug("slack message received",
		"user", ev.User,
		"channel", ev.Channel,
		"content_len", len(ev.Text),
	)

	src := domain.Source{Channel: s.Name(), ChatID: ev.Channel, Self: s.botUID}
	s.bus.Publish(domain.NewPassiveMessage(src, domain.User{ID: ev.User}, ev.Text))
}

func (s *Slack) commandTrigger(cmd slack.SlashCommand) domain.TriggerEvent {
	name := strings.ToLower(strings.TrimPrefix(cmd.Command, "/"))
	text := strings.TrimSpace(cmd.Text)

	var target *domain.User
	if name == dispatch.CmdAge {
		target = parseSlackUserRef(text)
	}

	s.logger.Info("slack slash command",
		"command", name,
		"user", cmd.UserID,
		"channel", cmd.ChannelID,
	)

	src := domain.Source{Channel: s.Name(), ChatID: cmd.ChannelID, Self: s.botUID}
	author := domain.User{ID: cmd.UserID, Name: cmd.UserName}
	return domain.NewCommand(src, author, name, dispatch.CommandArgs(name, text), target)
}

func (s *Slack) sendReply(channelID string, reply domain.StructuredReply) {
	chunks := splitMessage(reply.Body, slackMaxMsgLen)
	for n, chunk := range chunks {
		var actions []domain.ReplyAction
		if n == len(chunks)-1 {
			actions = reply.Actions
		}
		_, _, err := s.client.PostMessage(
			channelID,
			slack.MsgOptionText(chunk, false),
			slack.MsgOptionBlocks(slackBlocks(chunk, actions)...),
		)
		if err != nil {
			s.logger.Error("slack send failed", "channel", channelID, "err", err)
			return
		}
	}
}

// slackBlocks renders the body as a mrkdwn section followed by an actions
// block of URL buttons.
func slackBlocks(body string, actions []domain.ReplyAction) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, slackMrkdwn(body), false, false), nil, nil),
	}
	if len(actions) == 0 {
		return blocks
	}
	elems := make([]slack.BlockElement, 0, len(actions))
	for i, a := range actions {
		btn := slack.NewButtonBlockElement(
			fmt.Sprintf("link_%d", i),
			a.URL,
			slack.NewTextBlockObject(slack.PlainTextType, a.Label, false, false),
		)
		btn.URL = a.URL
		btn.Style = slackStyle(a.Style)
		elems = append(elems, btn)
	}
	return append(blocks, slack.NewActionBlock("reply_actions", elems...))
}

// slackStyle maps action styles onto Slack's two button colours.
func slackStyle(s domain.ActionStyle) slack.Style {
	switch s {
	case domain.StyleSuccess, domain.StylePrimary:
		return slack.StylePrimary
	default:
		return slack.StyleDefault
	}
}

var slackUserRef = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|([^>]*))?>`)

// parseSlackUserRef extracts the first <@U123|name> mention from text.
func parseSlackUserRef(text string) *domain.User {
	m := slackUserRef.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &domain.User{ID: m[1], Name: m[2]}
}
