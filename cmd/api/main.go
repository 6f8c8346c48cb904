package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/config"
	"github.com/noah-isme/gema-quiz-api/internal/database"
	"github.com/noah-isme/gema-quiz-api/internal/handler"
	"github.com/noah-isme/gema-quiz-api/internal/lock"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
	"github.com/noah-isme/gema-quiz-api/internal/router"
	"github.com/noah-isme/gema-quiz-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	probes := map[string]handler.HealthProbe{"database": pingDatabase(db)}

	var (
		redisClient *redis.Client
		locker      lock.Locker
	)
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, "lock:progress", cfg.Progress.LockTTL, logger)
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("redis url not set, progress locks are process local and status cache is disabled")
		locker = lock.NewLocalLocker()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName), nats.MaxReconnects(-1))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	policy := service.ProgressPolicy{
		MaxAttempts:     cfg.Progress.MaxAttempts,
		PassingScore:    cfg.Progress.PassingScore,
		Level1PassRatio: cfg.Progress.Level1PassRatio,
	}

	quizRepo := repository.NewQuizRepository(db)
	progressStore := service.NewProgressStore(repository.NewProgressRepository(db), locker, service.ProgressStoreOptions{
		Cache:    redisClient,
		CacheTTL: cfg.Progress.StatusCacheTTL,
		Events:   service.NewNATSPublisher(natsConn, cfg.EventsSubject),
		Timeout:  cfg.Progress.Timeout,
	}, logger)

	attemptService := service.NewQuizAttemptService(progressStore, quizRepo, repository.NewQuizSubmissionRepository(db), policy, validate, logger)
	assistanceService := service.NewAssistanceService(progressStore, quizRepo, repository.NewAssistanceRepository(db), policy, validate, logger)
	overrideService := service.NewOverrideService(progressStore, quizRepo, policy, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: logger})
	router.Register(app, cfg, router.Dependencies{
		QuizAttemptHandler: handler.NewQuizAttemptHandler(attemptService, middleware.RateLimit("attempts", cfg.RateLimitMax, cfg.RateLimitEvery), logger),
		AssistanceHandler:  handler.NewAssistanceHandler(assistanceService, logger),
		OverrideHandler:    handler.NewOverrideHandler(overrideService, validate, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:       probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func pingDatabase(db *gorm.DB) handler.HealthProbe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
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
