package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOWNWHEEL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOWNWHEEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wheel ──
	setInt(&cfg.Wheel.CycleIntervalSeconds, "TOWNWHEEL_CYCLE_INTERVAL_SECONDS")
	setInt(&cfg.Wheel.BettingWindowSeconds, "TOWNWHEEL_BETTING_WINDOW_SECONDS")
	setInt(&cfg.Wheel.CooldownSeconds, "TOWNWHEEL_COOLDOWN_SECONDS")
	setInt64(&cfg.Wheel.MinBankroll, "TOWNWHEEL_MIN_BANKROLL")
	setInt64(&cfg.Wheel.MinWager, "TOWNWHEEL_MIN_WAGER")
	setFloat64(&cfg.Wheel.WagerFraction, "TOWNWHEEL_WAGER_FRACTION")
	setInt(&cfg.Wheel.RakePercent, "TOWNWHEEL_RAKE_PERCENT")
	setInt(&cfg.Wheel.MaxTurns, "TOWNWHEEL_MAX_TURNS")

	// ── Engine ──
	setStr(&cfg.Engine.BaseURL, "TOWNWHEEL_ENGINE_BASE_URL")
	setStr(&cfg.Engine.APIKey, "TOWNWHEEL_ENGINE_API_KEY")
	setInt(&cfg.Engine.TimeoutSeconds, "TOWNWHEEL_ENGINE_TIMEOUT_SECONDS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TOWNWHEEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TOWNWHEEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TOWNWHEEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TOWNWHEEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TOWNWHEEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TOWNWHEEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TOWNWHEEL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TOWNWHEEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TOWNWHEEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TOWNWHEEL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TOWNWHEEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOWNWHEEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOWNWHEEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOWNWHEEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TOWNWHEEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TOWNWHEEL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TOWNWHEEL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOWNWHEEL_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOWNWHEEL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOWNWHEEL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOWNWHEEL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TOWNWHEEL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TOWNWHEEL_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "TOWNWHEEL_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.IntervalHours, "TOWNWHEEL_ARCHIVE_INTERVAL_HOURS")
	setInt(&cfg.Archive.RetentionDays, "TOWNWHEEL_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "TOWNWHEEL_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "TOWNWHEEL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "TOWNWHEEL_SERVER_RATE_LIMIT_PER_MIN")
	setStringSlice(&cfg.Server.CORSOrigins, "TOWNWHEEL_SERVER_CORS_ORIGINS")
	setBool(&cfg.Server.EnableWebsocket, "TOWNWHEEL_SERVER_ENABLE_WEBSOCKET")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TOWNWHEEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TOWNWHEEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TOWNWHEEL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TOWNWHEEL_NOTIFY_EVENTS")

	// ── Logging ──
	setStr(&cfg.LogLevel, "TOWNWHEEL_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
