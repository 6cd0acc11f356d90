package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dom/stream-games/internal/announce"
	"github.com/dom/stream-games/internal/api"
	"github.com/dom/stream-games/internal/api/handlers"
	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/config"
	"github.com/dom/stream-games/internal/metrics"
	"github.com/dom/stream-games/internal/repository/postgres"
	"github.com/dom/stream-games/internal/service"
)

const sessionPruneInterval = 15 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Postgres ---
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("opening database handle: %w", err)
	}
	defer sqlDB.Close()
	logger.Info("connected to database")

	repos := postgres.NewRepositories(db)
	m := metrics.New()

	hub := broadcast.NewHub(logger,
		broadcast.WithHeartbeat(cfg.StreamHeartbeat),
		broadcast.WithAllowedOrigins(cfg.AllowedOrigins),
		broadcast.WithMetrics(m),
	)
	defer hub.Close()

	// --- Chat announcements ---
	announcer := newAnnouncer(cfg, logger, m)
	defer announcer.Close()

	services := service.NewServices(repos, hub, announcer, cfg, logger)

	operator, err := services.Auth.EnsureOperator(ctx)
	if err != nil {
		return fmt.Errorf("seeding operator: %w", err)
	}
	if operator != nil {
		logger.Info("operator account ready", "username", operator.Username)
	} else {
		logger.Warn("ADMIN_USER or ADMIN_PASSWORD_HASH not set, operator login relies on existing accounts")
	}
	if cfg.PublicAppKey == "" {
		logger.Warn("PUBLIC_APP_KEY not set, public endpoints are disabled")
	}

	// --- HTTP Server ---
	router := api.NewRouter(services, hub, m, map[string]handlers.Checker{
		"postgres":  dbChecker{db},
		"announcer": announcer,
	}, cfg, logger)

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Streams stay open indefinitely
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		pruneSessions(gctx, services.Auth, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newAnnouncer(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) announce.Announcer {
	if !cfg.AnnounceEnabled || cfg.NATSURL == "" {
		logger.Info("chat announcements go to the log")
		return announce.NewLogAnnouncer(logger)
	}

	a, err := announce.NewNATSAnnouncer(cfg.NATSURL, cfg.AnnounceSubject, logger, m)
	if err != nil {
		logger.Error("nats unavailable, chat announcements go to the log", "error", err)
		return announce.NewLogAnnouncer(logger)
	}
	logger.Info("chat announcements published to nats", "subject", cfg.AnnounceSubject)
	return a
}

func pruneSessions(ctx context.Context, auth *service.AuthService, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PruneSessions(ctx)
			if err != nil {
				logger.Warn("pruning sessions failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned expired sessions", "count", n)
			}
		}
	}
}

// dbChecker adapts *gorm.DB to handlers.Checker.
type dbChecker struct{ db *gorm.DB }

func (d dbChecker) Check(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
