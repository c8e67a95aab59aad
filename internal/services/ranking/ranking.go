// Package ranking implements the ranked candidate search and single-pair
// scoring on top of the store and the scorers.
package ranking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nil-match-engine/internal/metrics"
	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/scoring"
	"nil-match-engine/internal/services/store"
)

// Defaults used when Config fields are unset.
const (
	DefaultFetchTimeout = 5 * time.Second
	DefaultBatchSize    = 500
)

// Config tunes the search pipeline.
type Config struct {
	// FetchTimeout bounds the whole candidate fetch. When it expires the
	// search ranks what was fetched and reports a partial result.
	FetchTimeout time.Duration
	BatchSize    int
	Workers      int
}

// Service runs searches and single-pair scoring.
type Service struct {
	store  store.Store
	scorer *scoring.Scorer
	cfg    Config
	logger *zap.Logger
}

// NewService creates a ranking service.
func NewService(s store.Store, scorer *scoring.Scorer, cfg Config, logger *zap.Logger) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, scorer: scorer, cfg: cfg, logger: logger}
}

// target is a resolved campaign or agency.
type target struct {
	mode     models.MatchMode
	campaign *models.TargetCriteria
	agency   *models.AgencyTarget
}

func (s *Service) loadTarget(ctx context.Context, mode models.MatchMode, id string) (*target, error) {
	switch mode {
	case models.ModeCampaign:
		t, err := s.store.FetchCampaignTarget(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch campaign: %w", err)
		}
		return &target{mode: mode, campaign: t}, nil
	case models.ModeAgency:
		a, err := store.FetchAgencyTarget(ctx, s.store, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch agency: %w", err)
		}
		return &target{mode: mode, agency: a}, nil
	default:
		return nil, models.ErrInvalidMode
	}
}

// scored pairs a candidate with its result for sorting.
type scored struct {
	candidate *models.CandidateProfile
	result    *models.MatchResult
}

// Search ranks the candidates passing the request filters.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	req.ApplyDefaults()
	if err := models.ValidateSearchRequest(&req); err != nil {
		return nil, err
	}

	mode := string(req.Mode)
	resp, err := s.search(ctx, &req)
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.SearchRequests.WithLabelValues(mode, status).Inc()
	metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Error("Search failed",
			zap.String("mode", mode),
			zap.String("target_id", req.TargetID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Search completed",
		zap.String("mode", mode),
		zap.String("target_id", req.TargetID),
		zap.Int("total", resp.Total),
		zap.Bool("partial", resp.Partial),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func (s *Service) search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	t, err := s.loadTarget(ctx, req.Mode, req.TargetID)
	if err != nil {
		return nil, err
	}

	candidates, partial, err := s.fetchCandidates(ctx, req.Filters)
	if err != nil {
		return nil, err
	}
	if partial {
		metrics.SearchPartial.Inc()
		s.logger.Warn("Candidate fetch timed out, returning partial results",
			zap.String("target_id", req.TargetID),
			zap.Int("fetched", len(candidates)),
			zap.Duration("timeout", s.cfg.FetchTimeout),
		)
	}

	var traits map[string][]models.AthleteTrait
	if t.mode == models.ModeAgency {
		if traits, err = s.fetchTraits(ctx, candidates); err != nil {
			return nil, err
		}
	}

	results := s.scoreAll(t, candidates, traits)
	metrics.CandidatesScored.WithLabelValues(string(t.mode)).Add(float64(len(results)))
	sortResults(results, req.Sort)

	return paginate(results, req.Page, partial), nil
}

// fetchCandidates pages through the filtered candidates in keyset batches.
// It reports partial when the fetch deadline expires part way.
func (s *Service) fetchCandidates(ctx context.Context, filter models.CandidateFilter) ([]*models.CandidateProfile, bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	candidates := []*models.CandidateProfile{}
	cursor := ""
	for {
		page, err := s.store.FetchCandidates(fetchCtx, filter, cursor, s.cfg.BatchSize)
		if err != nil {
			if ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
				return candidates, true, nil
			}
			return nil, false, fmt.Errorf("failed to fetch candidates: %w", err)
		}
		candidates = append(candidates, page.Candidates...)
		if page.NextCursor == "" {
			return candidates, false, nil
		}
		cursor = page.NextCursor
	}
}

func (s *Service) fetchTraits(ctx context.Context, candidates []*models.CandidateProfile) (map[string][]models.AthleteTrait, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	traits := make(map[string][]models.AthleteTrait, len(ids))
	for _, batch := range store.Batches(ids, s.cfg.BatchSize) {
		got, err := s.store.FetchAthleteTraits(fetchCtx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch athlete traits: %w", err)
		}
		for id, t := range got {
			traits[id] = t
		}
	}
	return traits, nil
}

// scoreAll scores every candidate on a bounded worker pool. Each worker
// writes only its own slot.
func (s *Service) scoreAll(t *target, candidates []*models.CandidateProfile, traits map[string][]models.AthleteTrait) []scored {
	results := make([]scored, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			results[i] = scored{candidate: c, result: s.scoreOne(t, c, traits[c.ID])}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) scoreOne(t *target, c *models.CandidateProfile, traits []models.AthleteTrait) *models.MatchResult {
	if t.mode == models.ModeAgency {
		return s.scorer.ScoreAgency(c, t.agency, traits)
	}
	return s.scorer.ScoreCampaign(c, t.campaign)
}

func sortKey(r scored, key models.SortKey) float64 {
	switch key {
	case models.SortByFollowers:
		return float64(r.candidate.TotalFollowers())
	case models.SortByEngagement:
		return r.candidate.AvgEngagementRate
	case models.SortByFMV:
		return r.candidate.FMVMid()
	default:
		return float64(r.result.Total)
	}
}

// sortResults orders by the requested key, breaking ties by candidate id
// ascending in both directions so pages are reproducible.
func sortResults(results []scored, spec models.SortSpec) {
	slices.SortFunc(results, func(a, b scored) int {
		c := cmp.Compare(sortKey(a, spec.Key), sortKey(b, spec.Key))
		if spec.Order == models.SortDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.candidate.ID, b.candidate.ID)
	})
}

func paginate(results []scored, page models.PageRequest, partial bool) *models.SearchResponse {
	total := len(results)
	offset := page.Offset()
	end := offset + page.Limit

	resp := &models.SearchResponse{
		Results: []models.RankedCandidate{},
		Total:   total,
		Page:    page.Page,
		Limit:   page.Limit,
		HasMore: total > end,
		Partial: partial,
	}
	if offset >= total {
		return resp
	}
	if end > total {
		end = total
	}

	resp.Results = make([]models.RankedCandidate, 0, end-offset)
	for _, r := range results[offset:end] {
		resp.Results = append(resp.Results, models.RankedCandidate{CandidateID: r.candidate.ID, MatchResult: r.result})
	}
	return resp
}

// Score computes the match result of one candidate against a campaign or
// agency. An unknown candidate, or one without a public profile, is
// models.ErrNotFound.
func (s *Service) Score(ctx context.Context, mode models.MatchMode, targetID, candidateID string) (*models.MatchResult, error) {
	if !mode.IsValid() {
		return nil, models.ErrInvalidMode
	}
	if targetID == "" {
		return nil, models.ErrEmptyTargetID
	}
	if candidateID == "" {
		return nil, models.ErrEmptyCandidateID
	}

	result, err := s.score(ctx, mode, targetID, candidateID)
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.SearchRequests.WithLabelValues(string(mode), status).Inc()
	return result, err
}

func (s *Service) score(ctx context.Context, mode models.MatchMode, targetID, candidateID string) (*models.MatchResult, error) {
	t, err := s.loadTarget(ctx, mode, targetID)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	found, err := s.store.FetchCandidatesByIDs(fetchCtx, []string{candidateID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate: %w", err)
	}
	c, ok := found[candidateID]
	if !ok {
		return nil, fmt.Errorf("candidate %q: %w", candidateID, models.ErrNotFound)
	}

	var traits []models.AthleteTrait
	if mode == models.ModeAgency {
		got, err := s.store.FetchAthleteTraits(fetchCtx, []string{candidateID})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch athlete traits: %w", err)
		}
		traits = got[candidateID]
	}

	metrics.CandidatesScored.WithLabelValues(string(mode)).Inc()
	return s.scoreOne(t, c, traits), nil
}
