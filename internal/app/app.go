// Package app provides top-level application lifecycle management for the
// town wheel service. It wires together stores, caches, the engine client,
// the market service, the scheduler, and the HTTP/WebSocket API, and runs
// them under one errgroup until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/townwheel/internal/config"
	"github.com/alanyoungcy/townwheel/internal/server"
	"github.com/alanyoungcy/townwheel/internal/server/handler"
	"github.com/alanyoungcy/townwheel/internal/server/ws"
)

// shutdownGrace is how long in-flight HTTP requests get to finish.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the scheduler, the HTTP server, the
// websocket hub, and the optional archiver, and blocks until the context is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	var wsHub *ws.Hub
	if a.cfg.Server.EnableWebsocket {
		wsHub = ws.NewHub(deps.SignalBus, func() any { return deps.Scheduler.Status() }, a.logger)
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Wheel:   handler.NewWheelHandler(deps.Scheduler, deps.Market, a.logger),
		Markets: handler.NewMarketHandler(deps.Market, deps.Scheduler, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, wsHub, deps.RateLimiter, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Scheduler.Run(gctx)
	})

	if wsHub != nil {
		g.Go(func() error {
			return wsHub.Run(gctx)
		})
	}

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Archiver != nil {
		interval := time.Duration(a.cfg.Archive.IntervalHours) * time.Hour
		retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			return deps.Archiver.Run(gctx, interval, retention)
		})
	}

	a.logger.InfoContext(ctx, "application started",
		slog.Int("port", a.cfg.Server.Port),
		slog.Bool("websocket", wsHub != nil),
		slog.Bool("archiver", deps.Archiver != nil),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
