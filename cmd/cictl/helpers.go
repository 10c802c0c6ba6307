package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/config"
	"github.com/noah-isme/artemis-ci-api/internal/database"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
	"github.com/noah-isme/artemis-ci-api/internal/service"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
	"github.com/noah-isme/artemis-ci-api/pkg/lti"
)

// cliEnv holds what a single command needs. Connections are only opened on demand.
type cliEnv struct {
	cfg    config.Config
	logger zerolog.Logger
	ci     *bamboo.Client
	lti    *lti.Client
	db     *gorm.DB
	redis  *redis.Client
	nats   *nats.Conn
}

func newCLIEnv() (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := zerolog.WarnLevel
	if rootFlags.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

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
		return nil, fmt.Errorf("ci client: %w", err)
	}

	ltiClient := lti.New(lti.Config{
		ConsumerKey:    cfg.LTIConsumerKey,
		ConsumerSecret: cfg.LTIConsumerSecret,
		Timeout:        cfg.LTITimeout,
	}, logger)

	return &cliEnv{cfg: cfg, logger: logger, ci: ci, lti: ltiClient}, nil
}

func (r *cliEnv) database() (*gorm.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := database.ConnectPostgres(r.cfg.DatabaseURL, database.PostgresOptions{MaxOpenConns: 2})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *cliEnv) close() {
	if r.nats != nil {
		if err := r.nats.Flush(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to flush nats connection")
		}
		r.nats.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.db != nil {
		if sqlDB, err := r.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// buildPlans returns a plan service. withDB is needed when a participation gets the plan attached.
func (r *cliEnv) buildPlans(withDB bool) (service.BuildPlanService, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if !withDB {
		return service.NewBuildPlanService(r.ci, nil, nil, nil, validate, r.logger), nil
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return service.NewBuildPlanService(r.ci, repository.NewParticipationRepository(db), repository.NewResultRepository(db), nil, validate, r.logger), nil
}

// reconciler returns a reconciler with the same side effects as the API. Scores are reported
// before a reconcile call returns so the process cannot exit with a push in flight.
func (r *cliEnv) reconciler(ctx context.Context) (service.ResultReconciler, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	parser, err := service.NewBuildResultParser(r.cfg.BambooAssignmentRepo)
	if err != nil {
		return nil, err
	}
	broadcaster, err := r.broadcaster(ctx)
	if err != nil {
		return nil, err
	}

	return service.NewResultReconciler(
		repository.NewParticipationRepository(db),
		repository.NewProgrammingSubmissionRepository(db),
		repository.NewResultRepository(db),
		parser,
		r.ci,
		broadcaster,
		service.NewLtiOutcomeService(repository.NewLtiOutcomeRepository(db), r.lti, r.logger),
		nil,
		r.logger,
		service.ResultReconcilerConfig{ScorePushTimeout: r.cfg.LTITimeout, SyncScorePush: true},
	), nil
}

// broadcaster publishes recorded results to the fan-out the API nodes consume, so connected
// clients see them. It is nil when neither redis nor NATS is configured.
func (r *cliEnv) broadcaster(ctx context.Context) (service.ResultBroadcaster, error) {
	if r.cfg.RedisURL == "" && r.cfg.NATSURL == "" {
		return nil, nil
	}
	if r.cfg.RedisURL != "" && r.redis == nil {
		client, err := database.ConnectRedis(ctx, r.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		r.redis = client
	}
	if r.cfg.NATSURL != "" && r.nats == nil {
		conn, err := database.ConnectNATS(r.cfg.NATSURL, r.cfg.AppName+"-cictl")
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		r.nats = conn
	}
	return service.NewResultBroadcaster(r.redis, r.cfg.RealtimeChannel, r.nats, r.logger), nil
}

func (r *cliEnv) participationForPlan(ctx context.Context, planKey string) (uint, error) {
	db, err := r.database()
	if err != nil {
		return 0, err
	}
	participation, err := repository.NewParticipationRepository(db).GetByBuildPlanID(ctx, planKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("no participation uses build plan %s", planKey)
		}
		return 0, err
	}
	return participation.ID, nil
}

func commandContext(cmd interface{ Context() context.Context }, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

func printJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
