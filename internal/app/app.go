// Package app wires the configured services of the NIL match engine for the
// server and Lambda entry points.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nil-match-engine/internal/config"
	"nil-match-engine/internal/services/database"
	"nil-match-engine/internal/services/ranking"
	"nil-match-engine/internal/services/refresh"
	s3service "nil-match-engine/internal/services/s3"
	"nil-match-engine/internal/services/scoring"
	"nil-match-engine/internal/services/store"
)

// App holds the wired services.
type App struct {
	Config  *config.Config
	DB      *database.DB
	Repo    *database.Repository
	Store   store.Store
	Scorer  *scoring.Scorer
	Ranking *ranking.Service
	Refresh *refresh.Job

	// Reports and Rosters are nil when their bucket is not configured.
	Reports *s3service.Service
	Rosters *s3service.Service

	redis  *redis.Client
	logger *zap.Logger
}

// New connects to PostgreSQL (and Redis when configured) and builds the
// store stack: repository, circuit breaker, then the cache.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	weights, err := config.LoadWeights(cfg.WeightsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Repo:   database.NewRepository(db),
		Scorer: scoring.NewScorer(weights, scoring.WithBudgetDivisor(cfg.BudgetDivisor)),
		logger: logger,
	}

	guarded := store.NewBreaker(a.Repo, cfg.BreakerFailures, cfg.BreakerTimeout, logger)
	var s store.Store = guarded
	if cfg.CacheEnabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s = store.NewCached(s, a.redis, cfg.CacheTTL, logger)
		logger.Info("Snapshot cache enabled",
			zap.String("addr", cfg.RedisAddr),
			zap.Duration("ttl", cfg.CacheTTL),
		)
	}
	a.Store = s

	a.Ranking = ranking.NewService(s, a.Scorer, ranking.Config{
		FetchTimeout: cfg.SearchFetchTimeout,
		BatchSize:    cfg.SearchBatchSize,
		Workers:      cfg.ScoringWorkers,
	}, logger)

	refreshOpts := []refresh.Option{refresh.WithBatchSize(cfg.SearchBatchSize)}
	if cfg.ReportsBucket != "" {
		if a.Reports, err = s3service.NewService(ctx, cfg.AWSRegion, cfg.ReportsBucket); err != nil {
			a.Close()
			return nil, err
		}
		refreshOpts = append(refreshOpts, refresh.WithArchiver(a.Reports))
	}
	// Refresh rescores from current rows, never from the cache.
	a.Refresh = refresh.NewJob(guarded, a.Scorer, cfg.RefreshWorkers, logger, refreshOpts...)

	if cfg.RosterBucket != "" {
		if a.Rosters, err = s3service.NewService(ctx, cfg.AWSRegion, cfg.RosterBucket); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// Close releases the database pool and Redis client.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
