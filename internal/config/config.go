// Package config defines the top-level configuration for the town wheel
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TOWNWHEEL_* environment
// variables.
type Config struct {
	Wheel    WheelConfig    `toml:"wheel"`
	Engine   EngineConfig   `toml:"engine"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// WheelConfig holds the cycle timing and settlement knobs.
type WheelConfig struct {
	CycleIntervalSeconds int `toml:"cycle_interval_seconds"` // between spins
	BettingWindowSeconds int `toml:"betting_window_seconds"` // ANNOUNCING duration
	CooldownSeconds      int `toml:"cooldown_seconds"`       // AFTERMATH duration

	MinBankroll   int64   `toml:"min_bankroll"`   // eligibility floor
	MinWager      int64   `toml:"min_wager"`      // stake floor
	WagerFraction float64 `toml:"wager_fraction"` // of the smaller bankroll

	RakePercent int `toml:"rake_percent"`

	HealPerUnit int `toml:"heal_per_unit"` // shelter healing per buff unit
	MaxHeal     int `toml:"max_heal"`
	MaxHealth   int `toml:"max_health"`

	MaxTurns            int `toml:"max_turns"`             // stuck-match ceiling
	TurnDelayMillis     int `toml:"turn_delay_millis"`     // delay between engine polls
	MaxConsecutiveFails int `toml:"max_consecutive_fails"` // turn errors before abort

	HistorySize      int `toml:"history_size"`       // result ring capacity
	MemoryMaxEntries int `toml:"memory_max_entries"` // actor memory log cap

	// GameWeights maps game type to its weight in the random draw,
	// e.g. {poker = 60, rps = 40}.
	GameWeights map[string]int `toml:"game_weights"`
}

// CycleInterval returns the spin period as a duration.
func (w WheelConfig) CycleInterval() time.Duration {
	return time.Duration(w.CycleIntervalSeconds) * time.Second
}

// BettingWindow returns the ANNOUNCING phase duration.
func (w WheelConfig) BettingWindow() time.Duration {
	return time.Duration(w.BettingWindowSeconds) * time.Second
}

// Cooldown returns the AFTERMATH phase duration.
func (w WheelConfig) Cooldown() time.Duration {
	return time.Duration(w.CooldownSeconds) * time.Second
}

// TurnDelay returns the pause between engine turn polls.
func (w WheelConfig) TurnDelay() time.Duration {
	return time.Duration(w.TurnDelayMillis) * time.Millisecond
}

// EngineConfig holds the external game engine endpoint.
type EngineConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the cold-storage archiver.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	IntervalHours int  `toml:"interval_hours"`
	RetentionDays int  `toml:"retention_days"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"` // empty disables auth
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
	EnableWebsocket bool     `toml:"enable_websocket"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		Wheel: WheelConfig{
			CycleIntervalSeconds: 600,
			BettingWindowSeconds: 120,
			CooldownSeconds:      30,
			MinBankroll:          100,
			MinWager:             10,
			WagerFraction:        0.10,
			RakePercent:          5,
			HealPerUnit:          5,
			MaxHeal:              25,
			MaxHealth:            100,
			MaxTurns:             30,
			TurnDelayMillis:      500,
			MaxConsecutiveFails:  3,
			HistorySize:          20,
			MemoryMaxEntries:     50,
			GameWeights:          map[string]int{"poker": 60, "rps": 40},
		},
		Engine: EngineConfig{
			BaseURL:        "http://localhost:7070",
			TimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "townwheel",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "townwheel-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			IntervalHours: 24,
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Port:            8080,
			RateLimitPerMin: 120,
			EnableWebsocket: true,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration for internal consistency and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	w := c.Wheel
	if w.CycleIntervalSeconds <= 0 {
		errs = append(errs, "wheel: cycle_interval_seconds must be positive")
	}
	if w.BettingWindowSeconds <= 0 {
		errs = append(errs, "wheel: betting_window_seconds must be positive")
	}
	if w.BettingWindowSeconds >= w.CycleIntervalSeconds {
		errs = append(errs, "wheel: betting_window_seconds must be shorter than cycle_interval_seconds")
	}
	if w.RakePercent < 0 || w.RakePercent >= 100 {
		errs = append(errs, fmt.Sprintf("wheel: rake_percent must be in [0,100), got %d", w.RakePercent))
	}
	if w.WagerFraction <= 0 || w.WagerFraction > 1 {
		errs = append(errs, fmt.Sprintf("wheel: wager_fraction must be in (0,1], got %g", w.WagerFraction))
	}
	if w.MinWager <= 0 {
		errs = append(errs, "wheel: min_wager must be positive")
	}
	if w.MaxTurns <= 0 {
		errs = append(errs, "wheel: max_turns must be positive")
	}
	if w.HistorySize <= 0 {
		errs = append(errs, "wheel: history_size must be positive")
	}
	if len(w.GameWeights) == 0 {
		errs = append(errs, "wheel: game_weights must not be empty")
	} else {
		total := 0
		for game, weight := range w.GameWeights {
			if weight < 0 {
				errs = append(errs, fmt.Sprintf("wheel: game_weights[%s] must not be negative", game))
			}
			total += weight
		}
		if total <= 0 {
			errs = append(errs, "wheel: game_weights must sum to a positive total")
		}
	}

	if c.Engine.BaseURL == "" {
		errs = append(errs, "engine: base_url must not be empty")
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
		errs = append(errs, "postgres: either dsn or host+database must be set")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "archive: s3 bucket must be set when the archiver is enabled")
		}
		if c.Archive.IntervalHours <= 0 {
			errs = append(errs, "archive: interval_hours must be positive")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be in (0,65535], got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
