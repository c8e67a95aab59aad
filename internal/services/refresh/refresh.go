// Package refresh recomputes the cached match scores stored on an agency's
// athlete interactions.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nil-match-engine/internal/metrics"
	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/scoring"
	"nil-match-engine/internal/services/store"
)

// DefaultWorkers is the persist concurrency when none is configured.
const DefaultWorkers = 4

// ReportArchiver stores the summary of a finished run.
type ReportArchiver interface {
	ArchiveRefreshReport(ctx context.Context, report *models.RefreshReport) (string, error)
}

// Job refreshes interaction scores for one agency at a time. It reads
// beneath any Redis cache layer so scores reflect current rows.
type Job struct {
	store     store.Store
	scorer    *scoring.Scorer
	workers   int
	batchSize int
	archiver  ReportArchiver
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Job.
type Option func(*Job)

// WithArchiver uploads every run report through a.
func WithArchiver(a ReportArchiver) Option {
	return func(j *Job) { j.archiver = a }
}

// WithBatchSize sets how many athletes are loaded per store call.
func WithBatchSize(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

// NewJob creates a refresh job.
func NewJob(s store.Store, scorer *scoring.Scorer, workers int, logger *zap.Logger, opts ...Option) *Job {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Job{
		store:     store.Uncached(s),
		scorer:    scorer,
		workers:   workers,
		batchSize: 500,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// RefreshScores rescores every interaction of the agency and writes back the
// score fields. A failed write is logged and counted; it does not stop the
// run. Interactions whose athlete is no longer visible are skipped. Status
// is never modified.
func (j *Job) RefreshScores(ctx context.Context, agencyID string) (*models.RefreshReport, error) {
	if agencyID == "" {
		return nil, models.ErrEmptyTargetID
	}

	report := &models.RefreshReport{
		RunID:     uuid.New().String(),
		AgencyID:  agencyID,
		StartedAt: j.now().UTC(),
	}
	log := j.logger.With(zap.String("run_id", report.RunID), zap.String("agency_id", agencyID))
	log.Info("Starting score refresh")

	target, err := store.FetchAgencyTarget(ctx, j.store, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agency: %w", err)
	}

	interactions, err := j.store.FetchInteractions(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interactions: %w", err)
	}

	candidates, traits, err := j.loadAthletes(ctx, interactions)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	count := func(result string) {
		mu.Lock()
		defer mu.Unlock()
		switch result {
		case metrics.ResultUpdated:
			report.UpdatedCount++
		case metrics.ResultFailed:
			report.FailedCount++
		default:
			report.SkippedCount++
		}
		metrics.RefreshInteractions.WithLabelValues(result).Inc()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)
	for _, in := range interactions {
		in := in
		c, ok := candidates[in.AthleteID]
		if !ok {
			log.Debug("Skipping interaction without a visible athlete",
				zap.String("interaction_id", in.ID),
				zap.String("athlete_id", in.AthleteID),
			)
			count(metrics.ResultSkipped)
			continue
		}

		g.Go(func() error {
			result := j.scorer.ScoreAgency(c, target, traits[in.AthleteID])
			if err := j.store.PersistInteractionScore(gctx, in.ID, result); err != nil {
				if ctx.Err() != nil {
					return err
				}
				log.Warn("Failed to persist interaction score",
					zap.String("interaction_id", in.ID),
					zap.Error(err),
				)
				count(metrics.ResultFailed)
				return nil
			}
			count(metrics.ResultUpdated)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score refresh interrupted: %w", err)
	}

	report.DurationMS = j.now().UTC().Sub(report.StartedAt).Milliseconds()

	if j.archiver != nil {
		key, err := j.archiver.ArchiveRefreshReport(ctx, report)
		if err != nil {
			log.Warn("Failed to archive refresh report", zap.Error(err))
		} else {
			log.Debug("Archived refresh report", zap.String("key", key))
		}
	}

	log.Info("Score refresh completed",
		zap.Int("updated", report.UpdatedCount),
		zap.Int("failed", report.FailedCount),
		zap.Int("skipped", report.SkippedCount),
		zap.Int64("duration_ms", report.DurationMS),
	)
	return report, nil
}

// loadAthletes batch-loads the snapshots and traits of every athlete the
// interactions refer to.
func (j *Job) loadAthletes(ctx context.Context, interactions []models.Interaction) (map[string]*models.CandidateProfile, map[string][]models.AthleteTrait, error) {
	seen := make(map[string]bool, len(interactions))
	ids := make([]string, 0, len(interactions))
	for _, in := range interactions {
		if !seen[in.AthleteID] {
			seen[in.AthleteID] = true
			ids = append(ids, in.AthleteID)
		}
	}

	candidates := make(map[string]*models.CandidateProfile, len(ids))
	traits := make(map[string][]models.AthleteTrait, len(ids))
	for _, batch := range store.Batches(ids, j.batchSize) {
		found, err := j.store.FetchCandidatesByIDs(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch athletes: %w", err)
		}
		for id, c := range found {
			candidates[id] = c
		}

		got, err := j.store.FetchAthleteTraits(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch athlete traits: %w", err)
		}
		for id, t := range got {
			traits[id] = t
		}
	}
	return candidates, traits, nil
}
