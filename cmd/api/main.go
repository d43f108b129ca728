package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/bmc-canvas-api/internal/config"
	"github.com/noah-isme/bmc-canvas-api/internal/database"
	"github.com/noah-isme/bmc-canvas-api/internal/handler"
	"github.com/noah-isme/bmc-canvas-api/internal/middleware"
	"github.com/noah-isme/bmc-canvas-api/internal/repository"
	"github.com/noah-isme/bmc-canvas-api/internal/router"
	"github.com/noah-isme/bmc-canvas-api/internal/service"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	store, closeStore, err := openStore(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open store")
	}
	defer closeStore()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	live, err := newLiveEvaluator(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create evaluator")
	}

	validate := utils.NewValidator()
	cache := service.NewLeaderboardCache(redisClient, cfg.LeaderboardTTL, logger)
	hub := service.NewLeaderboardHub(redisClient, natsConn, cfg.EventsPrefix, logger)

	scoringService := service.NewScoringService(live, nil, ai.PromptOptions{Region: cfg.RubricRegion, Places: cfg.RubricPlaces}, logger)
	sessionService := service.NewSessionService(store.Sessions, store.Submissions, cache, hub, cfg.DefaultSessionName, logger)
	leaderboardService := service.NewLeaderboardService(store.Submissions, sessionService, cache, hub, logger)
	analysisService := service.NewAnalysisService(scoringService, sessionService, store.Submissions, cache, hub, validate, logger)

	if _, err := sessionService.Default(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare default session")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    256 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AnalyzeHandler:     handler.NewAnalyzeHandler(analysisService, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboardService, sessionService, hub, logger),
		SessionHandler:     handler.NewSessionHandler(sessionService, validate, logger),
		Health:             handler.HealthCheck(cfg, scoringService.Mode(), store.Driver, store.Ping),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)

	logger.Info().
		Str("addr", cfg.HTTPAddress()).
		Str("storage", store.Driver).
		Str("scoring", scoringService.Mode()).
		Msg("starting bmc canvas api")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

// openStore connects the configured storage backend. The returned func releases it.
func openStore(cfg config.Config, redisClient *redis.Client) (repository.Store, func(), error) {
	noop := func() {}

	switch cfg.StorageDriver {
	case config.DriverPostgres, config.DriverSQLite:
		connect := func() (*gorm.DB, error) { return database.ConnectPostgres(cfg.DatabaseURL) }
		if cfg.StorageDriver == config.DriverSQLite {
			connect = func() (*gorm.DB, error) { return database.ConnectSQLite(cfg.SQLitePath) }
		}

		db, err := connect()
		if err != nil {
			return repository.Store{}, noop, err
		}
		if err := database.Migrate(db); err != nil {
			return repository.Store{}, noop, fmt.Errorf("migrate: %w", err)
		}

		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repository.NewGormStore(db, cfg.StorageDriver), closeDB, nil

	case config.DriverRedis:
		if redisClient == nil {
			return repository.Store{}, noop, fmt.Errorf("redis storage requires a redis url")
		}
		return repository.NewRedisStore(redisClient), noop, nil

	case config.DriverBolt:
		db, err := database.OpenBolt(cfg.BoltPath, repository.BoltBuckets)
		if err != nil {
			return repository.Store{}, noop, err
		}
		return repository.NewBoltStore(db), func() { _ = db.Close() }, nil

	default:
		return repository.Store{}, noop, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// newLiveEvaluator returns nil when no credential is configured, which puts scoring in mock mode.
func newLiveEvaluator(cfg config.Config, logger zerolog.Logger) (ai.Evaluator, error) {
	if !cfg.LiveScoring() {
		logger.Warn().Msg("no model credential configured, scoring with mock evaluator")
		return nil, nil
	}

	evaluatorCfg := ai.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.AIModel,
		BaseURL:     cfg.AIBaseURL,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout,
		Logger:      logger,
	}

	if cfg.AIProvider == config.ProviderCompatible {
		evaluator, err := ai.NewCompatibleEvaluator(evaluatorCfg)
		if err != nil {
			return nil, err
		}
		return evaluator, nil
	}

	evaluator, err := ai.NewOpenAIEvaluator(evaluatorCfg)
	if err != nil {
		return nil, err
	}
	return evaluator, nil
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
