// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath    = "config.toml"
	DefaultChannelPrefix = "phone-"
	DefaultHistoryLimit  = 200
	DefaultTimezone      = "Asia/Karachi"
	DefaultCronPattern   = "0 13 * * *"
	DefaultConcurrency   = 4
	DefaultGeminiModel   = "gemini-2.5-pro"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Discord DiscordConfig `toml:"discord"`
	Run     RunConfig     `toml:"run"`
	Gemini  GeminiConfig  `toml:"gemini"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DiscordConfig holds the bot token and the guild, owner, and channel scope
// the summary run operates on.
type DiscordConfig struct {
	Token         string `toml:"token"`
	GuildID       string `toml:"guild_id"`
	OwnerUserID   string `toml:"owner_user_id"`
	ChannelPrefix string `toml:"channel_prefix"`
	HistoryLimit  int    `toml:"history_limit"`
}

// RunConfig holds the summary-run trigger: its timezone, cron pattern, and
// per-run channel concurrency.
type RunConfig struct {
	Timezone    string `toml:"timezone"`
	Cron        string `toml:"cron"`
	Concurrency int    `toml:"concurrency"`
}

// GeminiConfig holds the optional AI formatter settings. When disabled or
// unconfigured the deterministic formatter is used.
type GeminiConfig struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// Load reads and parses the TOML config file at path and applies default
// values for missing fields. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Discord: DiscordConfig{
			ChannelPrefix: DefaultChannelPrefix,
			HistoryLimit:  DefaultHistoryLimit,
		},
		Run: RunConfig{
			Timezone:    DefaultTimezone,
			Cron:        DefaultCronPattern,
			Concurrency: DefaultConcurrency,
		},
		Gemini: GeminiConfig{
			Model: DefaultGeminiModel,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
