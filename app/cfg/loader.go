package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// File locations
	SettingsFile string `long:"settings-file" env:"SETTINGS_FILE" default:"./settings.yml" description:"Path to the curation settings file"`
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	StorePath    string `long:"store-path" env:"STORE_PATH" default:"./news-sieve.db" description:"Path to the persistent state database"`

	// Oracle configuration
	OracleEndpoint string `long:"oracle-endpoint" env:"ORACLE_ENDPOINT" default:"https://api.openai.com/v1/chat/completions" description:"Completion API endpoint"`
	OracleAPIKey   string `long:"oracle-api-key" env:"ORACLE_API_KEY" description:"Completion API key (evaluation stages are disabled when empty)"`
	OracleModel    string `long:"oracle-model" env:"ORACLE_MODEL" default:"gpt-4o-mini" description:"Default completion model"`

	// Delivery configuration
	TelegramBotToken string `long:"telegram-bot-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (delivery is disabled when empty)"`
	TelegramChatID   string `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat ID for delivered items"`

	// Social source configuration
	SocialUsageEndpoint string `long:"social-usage-endpoint" env:"SOCIAL_USAGE_ENDPOINT" default:"https://api.x.com/2/usage/tweets" description:"Quota endpoint for rotated social API credentials"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"News Sieve/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SettingsFile:        raw.SettingsFile,
		SourcesDir:          raw.SourcesDir,
		StorePath:           raw.StorePath,
		OracleEndpoint:      raw.OracleEndpoint,
		OracleAPIKey:        raw.OracleAPIKey,
		OracleModel:         raw.OracleModel,
		TelegramBotToken:    raw.TelegramBotToken,
		TelegramChatID:      raw.TelegramChatID,
		SocialUsageEndpoint: raw.SocialUsageEndpoint,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
