package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aoe2bot/internal/dispatch"
	"aoe2bot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

const (
	discordMaxMsgLen = 2000
	// Interaction tokens stay valid for follow-ups this long.
	discordInteractionTTL = 15 * time.Minute
)

// Discord implements domain.Channel for Discord.
type Discord struct {
	token   string
	guildID string
	session *discordgo.Session
	bus     domain.MessageBus
	logger  *slog.Logger

	// pending holds deferred slash-command interactions by interaction ID
	// until their follow-up is sent.
	pending sync.Map // string -> pendingInteraction
}

type pendingInteraction struct {
	interaction *discordgo.Interaction
	at          time.Time
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Token   string
	GuildID string
	Logger  *slog.Logger
}

// NewDiscord creates a new Discord channel handler.
func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord using a bot token and blocks until ctx is done.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	d.bus = bus

	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	bus.OnOutbound(d.Name(), d.deliver)
	session.AddHandler(d.onMessage)
	session.AddHandler(d.onInteraction)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord bot connected", "user", session.State.User.Username)

	d.registerSlashCommands()

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

// Stop is a no-op; the session closes when Start's context is cancelled.
func (d *Discord) Stop() error { return nil }

func (d *Discord) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	if d.guildID != "" && m.GuildID != "" && m.GuildID != d.guildID {
		return
	}

	d.logger.Debug("discord message received",
		"author", m.Author.Username,
		"channel_id", m.ChannelID,
		"content_len", len(m.Content),
	)

	src := domain.Source{Channel: d.Name(), ChatID: m.ChannelID, Self: selfID(s)}
	d.bus.Publish(domain.NewPassiveMessage(src, discordUser(m.Author), m.Content))
}

func (d *Discord) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		d.logger.Error("discord interaction ack failed", "command", data.Name, "err", err)
		return
	}

	author := interactionAuthor(i.Interaction)
	args, target := commandOptions(data)

	d.logger.Info("discord slash command",
		"command", data.Name,
		"user", author.Name,
		"channel_id", i.ChannelID,
	)

	d.prunePending(time.Now())
	d.pending.Store(i.ID, pendingInteraction{interaction: i.Interaction, at: time.Now()})

	src := domain.Source{Channel: d.Name(), ChatID: i.ChannelID, ReplyRef: i.ID, Self: selfID(s)}
	d.bus.Publish(domain.NewCommand(src, author, data.Name, args, target))
}

// deliver sends a reply. Replies to slash commands go out as the
// interaction's follow-up, everything else as a channel message.
func (d *Discord) deliver(msg domain.Outbound) {
	chunks := splitMessage(msg.Reply.Body, discordMaxMsgLen)
	components := discordComponents(msg.Reply.Actions)

	var ia *discordgo.Interaction
	if msg.ReplyRef != "" {
		if v, ok := d.pending.LoadAndDelete(msg.ReplyRef); ok {
			ia = v.(pendingInteraction).interaction
		}
	}

	for n, chunk := range chunks {
		var comps []discordgo.MessageComponent
		if n == len(chunks)-1 {
			comps = components
		}

		var err error
		if ia != nil {
			_, err = d.session.FollowupMessageCreate(ia, true, &discordgo.WebhookParams{
				Content:    chunk,
				Components: comps,
			})
		} else {
			_, err = d.session.ChannelMessageSendComplex(msg.ChatID, &discordgo.MessageSend{
				Content:    chunk,
				Components: comps,
			})
		}
		if err != nil {
			d.logger.Error("discord send failed", "channel_id", msg.ChatID, "followup", ia != nil, "err", err)
			return
		}
	}
}

func (d *Discord) prunePending(now time.Time) {
	d.pending.Range(func(k, v any) bool {
		if now.Sub(v.(pendingInteraction).at) > discordInteractionTTL {
			d.pending.Delete(k)
		}
		return true
	})
}

func (d *Discord) registerSlashCommands() {
	appID := d.session.State.User.ID
	for _, cmd := range discordCommands() {
		if _, err := d.session.ApplicationCommandCreate(appID, d.guildID, cmd); err != nil {
			d.logger.Warn("failed to register slash command", "command", cmd.Name, "err", err)
		}
	}
}

// discordCommands maps the dispatcher's command table onto Discord
// application commands.
func discordCommands() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(dispatch.Commands))
	for _, c := range dispatch.Commands {
		cmd := &discordgo.ApplicationCommand{Name: c.Name, Description: c.Description}
		if c.Param != "" {
			optType := discordgo.ApplicationCommandOptionString
			if c.UserParam {
				optType = discordgo.ApplicationCommandOptionUser
			}
			cmd.Options = []*discordgo.ApplicationCommandOption{{
				Type:        optType,
				Name:        c.Param,
				Description: c.ParamDescription,
				Required:    c.Required,
			}}
		}
		out = append(out, cmd)
	}
	return out
}

// commandOptions extracts string arguments and a resolved user argument.
func commandOptions(data discordgo.ApplicationCommandInteractionData) (map[string]string, *domain.User) {
	args := map[string]string{}
	var target *domain.User
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			args[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionUser:
			id, _ := opt.Value.(string)
			args[opt.Name] = id
			u := &discordgo.User{ID: id}
			if data.Resolved != nil {
				if ru, ok := data.Resolved.Users[id]; ok {
					u = ru
				}
			}
			du := discordUser(u)
			target = &du
		}
	}
	return args, target
}

// discordComponents renders actions as a single row of link buttons.
// Discord draws every link button the same way, so the style is not carried.
func discordComponents(actions []domain.ReplyAction) []discordgo.MessageComponent {
	if len(actions) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, a := range actions {
		row.Components = append(row.Components, discordgo.Button{
			Label: a.Label,
			Style: discordgo.LinkButton,
			URL:   a.URL,
		})
	}
	return []discordgo.MessageComponent{row}
}

func interactionAuthor(i *discordgo.Interaction) domain.User {
	if i.Member != nil && i.Member.User != nil {
		return discordUser(i.Member.User)
	}
	if i.User != nil {
		return discordUser(i.User)
	}
	return domain.User{}
}

// discordUser converts a Discord user. The creation time is encoded in the
// snowflake ID.
func discordUser(u *discordgo.User) domain.User {
	out := domain.User{ID: u.ID, Name: u.Username}
	if created, err := discordgo.SnowflakeTimestamp(u.ID); err == nil {
		out.CreatedAt = created
	}
	return out
}

func selfID(s *discordgo.Session) string {
	if s == nil || s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}
