package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	s3blob "github.com/alanyoungcy/townwheel/internal/blob/s3"
	"github.com/alanyoungcy/townwheel/internal/cache/redis"
	"github.com/alanyoungcy/townwheel/internal/config"
	"github.com/alanyoungcy/townwheel/internal/domain"
	"github.com/alanyoungcy/townwheel/internal/engine"
	"github.com/alanyoungcy/townwheel/internal/market"
	"github.com/alanyoungcy/townwheel/internal/notify"
	"github.com/alanyoungcy/townwheel/internal/store/postgres"
	"github.com/alanyoungcy/townwheel/internal/wheel"
)

// Dependencies bundles every component the application runs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	ActorStore  domain.ActorStore
	MarketStore domain.MarketStore
	LedgerStore domain.LedgerStore
	StatsStore  domain.StatsStore
	EventStore  domain.EventStore

	// Caches
	OddsCache   domain.OddsCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Services
	Market    *market.Service
	Scheduler *wheel.Scheduler
	Engine    domain.Engine

	// Archival (nil unless enabled)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.ActorStore = postgres.NewActorStore(pool, cfg.Wheel.MaxHealth)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.LedgerStore = postgres.NewLedgerStore(pool)
	deps.StatsStore = postgres.NewStatsStore(pool)
	deps.EventStore = postgres.NewEventStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.OddsCache = redis.NewOddsCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Market service ---
	deps.Market = market.NewService(
		deps.MarketStore,
		deps.LedgerStore,
		deps.StatsStore,
		deps.OddsCache,
		deps.SignalBus,
		cfg.Wheel.RakePercent,
		logger,
	)

	// --- Engine client ---
	deps.Engine = engine.NewClient(
		cfg.Engine.BaseURL,
		cfg.Engine.APIKey,
		time.Duration(cfg.Engine.TimeoutSeconds)*time.Second,
	)

	// --- Wheel scheduler ---
	runner := wheel.NewMatchRunner(
		deps.Engine,
		deps.SignalBus,
		cfg.Wheel.MaxTurns,
		cfg.Wheel.MaxConsecutiveFails,
		cfg.Wheel.TurnDelay(),
		logger,
	)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	deps.Scheduler = wheel.NewScheduler(cfg.Wheel, wheel.SchedulerDeps{
		Actors:   deps.ActorStore,
		Events:   deps.EventStore,
		Market:   deps.Market,
		Engine:   deps.Engine,
		Runner:   runner,
		Selector: wheel.NewAgentSelector(rng),
		Buffs:    wheel.NewBuffResolver(deps.ActorStore),
		Wager: wheel.WagerCalculator{
			MinWager: cfg.Wheel.MinWager,
			Fraction: cfg.Wheel.WagerFraction,
		},
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
		Locks:    deps.LockManager,
	}, logger)

	// --- S3 archiver (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.MarketStore,
			deps.EventStore,
			logger,
		)
	}

	return deps, cleanup, nil
}
