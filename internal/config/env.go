package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvDiscordToken  = "DISCORD_TOKEN"
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
	EnvSlackBotToken = "SLACK_BOT_TOKEN"
	EnvSlackAppToken = "SLACK_APP_TOKEN"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. An empty path means
// ".env" in the working directory, which may be absent.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv fills empty channel tokens from the environment.
func ApplyEnv(cfg *Config) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&cfg.Channels.Discord.Token, EnvDiscordToken)
	fill(&cfg.Channels.Telegram.Token, EnvTelegramToken)
	fill(&cfg.Channels.Slack.BotToken, EnvSlackBotToken)
	fill(&cfg.Channels.Slack.AppToken, EnvSlackAppToken)
}
