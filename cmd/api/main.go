package main

import (
	"context"
	"log"
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

	"github.com/noah-isme/artemis-ci-api/internal/config"
	"github.com/noah-isme/artemis-ci-api/internal/database"
	"github.com/noah-isme/artemis-ci-api/internal/handler"
	"github.com/noah-isme/artemis-ci-api/internal/middleware"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
	"github.com/noah-isme/artemis-ci-api/internal/router"
	"github.com/noah-isme/artemis-ci-api/internal/service"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
	cloud "github.com/noah-isme/artemis-ci-api/pkg/cloudinary"
	"github.com/noah-isme/artemis-ci-api/pkg/lti"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PostgresOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		LogQueries:      cfg.AppEnv == "development",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, results are only delivered to local subscribers")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	ci, err := bamboo.New(bamboo.Config{
		BaseURL:          cfg.BambooURL,
		User:             cfg.BambooUser,
		Password:         cfg.BambooPassword,
		Timeout:          cfg.BambooTimeout,
		ArtifactMaxDepth: cfg.BambooArtifactMaxDepth,
		ArtifactMaxBytes: cfg.BambooArtifactMaxBytes,
		Logger:           logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create ci client")
	}

	var mirror service.ArtifactMirror
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		cloudMirror, err := cloud.New(cloudCfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create artifact mirror")
		}
		mirror = cloudMirror
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	participationRepo := repository.NewParticipationRepository(db)
	submissionRepo := repository.NewProgrammingSubmissionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	exerciseRepo := repository.NewProgrammingExerciseRepository(db)
	outcomeRepo := repository.NewLtiOutcomeRepository(db)

	parser, err := service.NewBuildResultParser(cfg.BambooAssignmentRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create build result parser")
	}

	locks := service.NewSubmissionLocks()
	broadcaster := service.NewResultBroadcaster(redisClient, cfg.RealtimeChannel, natsConn, logger)
	broadcaster.Start(ctx)

	ltiClient := lti.New(lti.Config{
		ConsumerKey:    cfg.LTIConsumerKey,
		ConsumerSecret: cfg.LTIConsumerSecret,
		Timeout:        cfg.LTITimeout,
	}, logger)
	outcomeService := service.NewLtiOutcomeService(outcomeRepo, ltiClient, logger)

	reconciler := service.NewResultReconciler(
		participationRepo,
		submissionRepo,
		resultRepo,
		parser,
		ci,
		broadcaster,
		outcomeService,
		locks,
		logger,
		service.ResultReconcilerConfig{ScorePushTimeout: cfg.LTITimeout},
	)
	submissionService := service.NewProgrammingSubmissionService(participationRepo, submissionRepo, resultRepo, locks, validate, logger)
	testCaseService := service.NewTestCaseChangeService(exerciseRepo, participationRepo, submissionRepo, ci, locks, cfg.RebuildConcurrency, logger)
	buildPlanService := service.NewBuildPlanService(ci, participationRepo, resultRepo, mirror, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv != "production"})
	router.Register(app, cfg, router.Dependencies{
		BuildResultHandler: handler.NewBuildResultHandler(reconciler, submissionService, testCaseService, logger),
		RealtimeHandler:    handler.NewRealtimeHandler(broadcaster, logger),
		BuildPlanHandler:   handler.NewBuildPlanHandler(buildPlanService, reconciler, logger),
		LtiOutcomeHandler:  handler.NewLtiOutcomeHandler(outcomeService, validate, logger),
		HealthProbes:       healthProbes(db, redisClient),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger()
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return probes
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
