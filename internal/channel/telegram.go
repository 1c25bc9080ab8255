package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"aoe2bot/internal/dispatch"
	"aoe2bot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxMsgLen = 4000

// Telegram implements domain.Channel for Telegram Bot.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is done.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnOutbound(t.Name(), func(msg domain.Outbound) {
		chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
		if err != nil {
			t.logger.Error("invalid chat ID for telegram outbound", "chatID", msg.ChatID, "err", err)
			return
		}
		t.sendReply(chatID, msg.Reply)
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op. StopReceivingUpdates is called when Start's context is
// cancelled and panics if called twice.
func (t *Telegram) Stop() error { return nil }

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	ev, ok := t.trigger(update.Message)
	if !ok {
		return
	}
	t.bus.Publish(ev)
}

// trigger converts a message into a trigger event. It reports false for
// messages that should be ignored.
func (t *Telegram) trigger(m *tgbotapi.Message) (domain.TriggerEvent, bool) {
	if m.From == nil || m.Chat == nil {
		return domain.TriggerEvent{}, false
	}
	if !t.isAllowed(m.From.ID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", m.From.ID,
			"username", m.From.UserName,
		)
		return domain.TriggerEvent{}, false
	}

	text := strings.TrimSpace(m.Text)
	if text == "" {
		text = strings.TrimSpace(m.Caption)
	}
	if text == "" {
		return domain.TriggerEvent{}, false
	}

	src := domain.Source{
		Channel: t.Name(),
		ChatID:  strconv.FormatInt(m.Chat.ID, 10),
		Self:    t.selfID(),
	}
	author := telegramUser(m.From)

	if !m.IsCommand() {
		return domain.NewPassiveMessage(src, author, text), true
	}

	name := strings.ToLower(m.Command())
	if name == "start" {
		name = dispatch.CmdHelp
	}
	args := dispatch.CommandArgs(name, strings.TrimSpace(m.CommandArguments()))

	// /age as a reply to someone targets that someone.
	var target *domain.User
	if name == dispatch.CmdAge && m.ReplyToMessage != nil && m.ReplyToMessage.From != nil {
		u := telegramUser(m.ReplyToMessage.From)
		target = &u
	}

	t.logger.Info("telegram command",
		"command", name,
		"user_id", m.From.ID,
		"chat_id", m.Chat.ID,
	)
	return domain.NewCommand(src, author, name, args, target), true
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) selfID() string {
	if t.bot == nil {
		return ""
	}
	return strconv.FormatInt(t.bot.Self.ID, 10)
}

// sendReply sends the body in HTML parse mode with the actions as an inline
// keyboard of URL buttons under the last chunk.
func (t *Telegram) sendReply(chatID int64, reply domain.StructuredReply) {
	chunks := splitMessage(reply.Body, telegramMaxMsgLen)
	for n, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, boldToHTML(chunk))
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if n == len(chunks)-1 {
			if kb, ok := telegramKeyboard(reply.Actions); ok {
				msg.ReplyMarkup = kb
			}
		}
		if _, err := t.bot.Send(msg); err != nil {
			t.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
			return
		}
	}
}

// telegramKeyboard renders one URL button per row. Telegram has no button
// colours, so the style is dropped.
func telegramKeyboard(actions []domain.ReplyAction) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(actions) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(a.Label, a.URL)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func telegramUser(u *tgbotapi.User) domain.User {
	name := u.UserName
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return domain.User{ID: strconv.FormatInt(u.ID, 10), Name: name}
}

