package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/phuslu/log"

	"github.com/mauv0809/crispy-broccoli/internal/config"
	"github.com/mauv0809/crispy-broccoli/internal/db"
	"github.com/mauv0809/crispy-broccoli/internal/handlers"
	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/logging"
	"github.com/mauv0809/crispy-broccoli/internal/scanner"
	"github.com/mauv0809/crispy-broccoli/internal/scoring"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.LoadFromFiles(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading config failed")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Authenticate with the provider. Nothing works without a crumb.
	session, err := ingest.NewSession(cfg.SessionOptions(logger)...)
	if err != nil {
		logger.Fatal().Err(err).Msg("Creating provider session failed")
	}
	if err := session.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Provider authentication failed")
	}

	client := ingest.NewClient(session, cfg.ClientOptions(logger)...)
	crawler := ingest.NewCrawler(client, logger)
	engine := scoring.NewEngine(cfg.ScoringConfig())
	sc := scanner.New(client, engine, cfg.Screen.Concurrency, logger)

	// Universe cache (optional)
	var (
		store    scanner.UniverseStore
		statusDB handlers.UniverseStore
	)
	if cfg.Database.URL != "" {
		if cfg.Database.RunMigrations {
			if err := db.RunMigrations(cfg.Database.URL); err != nil {
				logger.Warn().Err(err).Msg("Could not run migrations")
			} else {
				logger.Info().Msg("Migrations completed")
			}
		}

		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("Could not connect to database, continuing without universe cache")
		} else {
			defer pool.Close()
			repo := db.NewRepository(pool)
			store, statusDB = repo, repo
			logger.Info().Msg("Connected to database")
		}
	} else {
		logger.Info().Msg("DATABASE_URL not set, universe cache disabled")
	}

	universe := scanner.NewUniverse(crawler, store, cfg.DiscoverOptions(), cfg.Discovery.UseCache, logger)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.Info()
			if v.Error != nil {
				entry = logger.Warn().Err(v.Error)
			}
			entry.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h := handlers.New(session)
	admin := handlers.NewAdminHandler(sc, universe, statusDB, logger)
	handlers.RegisterRoutes(e, h, admin)

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("Starting server")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}
