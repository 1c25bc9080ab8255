package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"aoe2bot/internal/domain"
	"aoe2bot/internal/reply"
)

// Config is the root configuration for aoe2bot.
type Config struct {
	General  GeneralConfig        `json:"general" yaml:"general"`
	Channels ChannelsConfig       `json:"channels" yaml:"channels"`
	Upstream UpstreamConfig       `json:"upstream" yaml:"upstream"`
	Links    reply.Links          `json:"links" yaml:"links"`
	Roster   []domain.RosterEntry `json:"roster" yaml:"roster"`
	Trigger  TriggerConfig        `json:"trigger" yaml:"trigger"`
	Metrics  MetricsConfig        `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel            string `json:"logLevel" yaml:"logLevel"`
	LogFormat           string `json:"logFormat" yaml:"logFormat"` // "text" | "json"
	MaxConcurrentEvents int    `json:"maxConcurrentEvents" yaml:"maxConcurrentEvents"`
}

type ChannelsConfig struct {
	Discord   DiscordConfig   `json:"discord" yaml:"discord"`
	Telegram  TelegramConfig  `json:"telegram" yaml:"telegram"`
	Slack     SlackConfig     `json:"slack" yaml:"slack"`
	WebSocket WebSocketConfig `json:"websocket" yaml:"websocket"`
	Webhook   WebhookConfig   `json:"webhook" yaml:"webhook"`
	CLI       CLIConfig       `json:"cli" yaml:"cli"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"token" yaml:"token"`
	GuildID string `json:"guildId,omitempty" yaml:"guildId,omitempty"` // optional: register commands in one guild only
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled" yaml:"enabled"`
	Token     string         `json:"token" yaml:"token"`
	AllowFrom FlexStringList `json:"allowFrom" yaml:"allowFrom"`
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"botToken" yaml:"botToken"`
	AppToken string `json:"appToken" yaml:"appToken"` // required for Socket Mode
}

type WebSocketConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// WebhookConfig configures the HTTP POST channel.
type WebhookConfig struct {
	Enabled             bool   `json:"enabled" yaml:"enabled"`
	Host                string `json:"host" yaml:"host"`
	Port                int    `json:"port" yaml:"port"`
	Path                string `json:"path" yaml:"path"`
	Secret              string `json:"secret,omitempty" yaml:"secret,omitempty"` // HMAC-SHA256 key; empty disables signature checks
	ReplyTimeoutSeconds int    `json:"replyTimeoutSeconds" yaml:"replyTimeoutSeconds"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// UpstreamConfig points at the statistics services.
type UpstreamConfig struct {
	RankURL          string `json:"rankUrl" yaml:"rankUrl"`
	LeaderboardURL   string `json:"leaderboardUrl" yaml:"leaderboardUrl"`
	ProfileID        string `json:"profileId" yaml:"profileId"`
	LeaderboardLimit int    `json:"leaderboardLimit" yaml:"leaderboardLimit"`
	TimeoutSeconds   int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type TriggerConfig struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	// Per-user reply limit. RatePerMinute 0 disables it.
	RateBurst     int     `json:"rateBurst" yaml:"rateBurst"`
	RatePerMinute float64 `json:"ratePerMinute" yaml:"ratePerMinute"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	Path    string `json:"path" yaml:"path"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// Contains reports whether id is in the list. An empty list allows everyone.
func (f FlexStringList) Contains(id string) bool {
	if len(f) == 0 {
		return true
	}
	for _, s := range f {
		if s == id {
			return true
		}
	}
	return false
}

// DefaultConfigDir returns the default config directory (~/.aoe2bot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aoe2bot"
	}
	return filepath.Join(home, ".aoe2bot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// IsYAML reports whether path names a YAML file.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a JSON or YAML config file, expands ${VAR} references, fills
// empty tokens from the environment and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg, err := Parse(data, IsYAML(path))
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	ApplyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadRaw reads a config file without env expansion or validation. Use it
// when the result will be written back so ${VAR} references and
// environment tokens are not baked into the file.
func LoadRaw(path string) (*Config, error) {
	path = ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	cfg, err := Parse(data, IsYAML(path))
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over Defaults(). Fields missing from data keep their
// default values.
func Parse(data []byte, isYAML bool) (*Config, error) {
	cfg := Defaults()
	if isYAML {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes cfg as YAML or JSON depending on the file extension.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if IsYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	// tokens may be inlined
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	if errs := problems(cfg); len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// problems lists every validation failure. Each entry starts with the dot
// path of the offending setting.
func problems(cfg *Config) []string {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}
	if cfg.General.MaxConcurrentEvents < 1 || cfg.General.MaxConcurrentEvents > 1000 {
		errs = append(errs, "general.maxConcurrentEvents must be between 1 and 1000")
	}

	ch := cfg.Channels
	if ch.Discord.Enabled && ch.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}
	if ch.Telegram.Enabled && ch.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if ch.Slack.Enabled && (ch.Slack.BotToken == "" || ch.Slack.AppToken == "") {
		errs = append(errs, "channels.slack.botToken and channels.slack.appToken are required when slack is enabled")
	}
	if ch.WebSocket.Port < 0 || ch.WebSocket.Port > 65535 {
		errs = append(errs, "channels.websocket.port must be between 0 and 65535")
	}
	if ch.WebSocket.Enabled && !strings.HasPrefix(ch.WebSocket.Path, "/") {
		errs = append(errs, "channels.websocket.path must start with /")
	}
	if ch.Webhook.Port < 0 || ch.Webhook.Port > 65535 {
		errs = append(errs, "channels.webhook.port must be between 0 and 65535")
	}
	if ch.Webhook.Enabled {
		if !strings.HasPrefix(ch.Webhook.Path, "/") {
			errs = append(errs, "channels.webhook.path must start with /")
		}
		if ch.Webhook.ReplyTimeoutSeconds < 1 {
			errs = append(errs, "channels.webhook.replyTimeoutSeconds must be >= 1")
		}
	}

	for name, raw := range map[string]string{"upstream.rankUrl": cfg.Upstream.RankURL, "upstream.leaderboardUrl": cfg.Upstream.LeaderboardURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, name+" must be an absolute URL")
		}
	}
	if cfg.Upstream.ProfileID == "" {
		errs = append(errs, "upstream.profileId must not be empty")
	}
	if cfg.Upstream.LeaderboardLimit < 1 {
		errs = append(errs, "upstream.leaderboardLimit must be >= 1")
	}
	if cfg.Upstream.TimeoutSeconds < 1 {
		errs = append(errs, "upstream.timeoutSeconds must be >= 1")
	}

	if err := cfg.Links.Validate(); err != nil {
		errs = append(errs, "links: "+err.Error())
	}
	for i, r := range cfg.Roster {
		if r.PlayerID == "" || strings.ContainsAny(r.PlayerID, ", ") {
			errs = append(errs, fmt.Sprintf("roster.%d.playerId must be a non-empty id without commas or spaces", i))
		}
	}
	if strings.TrimSpace(cfg.Trigger.Keyword) == "" {
		errs = append(errs, "trigger.keyword must not be empty")
	}
	if cfg.Trigger.RatePerMinute < 0 {
		errs = append(errs, "trigger.ratePerMinute must not be negative")
	}
	if cfg.Trigger.RatePerMinute > 0 && cfg.Trigger.RateBurst < 1 {
		errs = append(errs, "trigger.rateBurst must be at least 1 when rate limiting is on")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Addr == "" {
			errs = append(errs, "metrics.addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, "metrics.path must start with /")
		}
	}

	return errs
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
