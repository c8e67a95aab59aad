package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"nil-match-engine/internal/metrics"
	"nil-match-engine/internal/models"
)

var _ Store = (*Breaker)(nil)

// Breaker wraps a Store with a circuit breaker. After failures consecutive
// errors the circuit opens and calls fail fast with ErrStoreUnavailable
// until timeout elapses. Not-found results and caller cancellations do not
// count as failures.
type Breaker struct {
	Store
	cb     *gobreaker.CircuitBreaker[interface{}]
	logger *zap.Logger
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Store, failures uint32, timeout time.Duration, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if failures == 0 {
		failures = 5
	}

	metrics.BreakerState.Set(0)
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, models.ErrNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Store circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.BreakerState.Set(stateValue(to))
		},
	})

	return &Breaker{Store: inner, cb: cb, logger: logger}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// guarded runs fn through the breaker and casts its result.
func guarded[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// FetchCandidates runs through the breaker.
func (b *Breaker) FetchCandidates(ctx context.Context, filter models.CandidateFilter, cursor string, limit int) (*CandidatePage, error) {
	return guarded(b, func() (*CandidatePage, error) {
		return b.Store.FetchCandidates(ctx, filter, cursor, limit)
	})
}

// FetchCandidatesByIDs runs through the breaker.
func (b *Breaker) FetchCandidatesByIDs(ctx context.Context, ids []string) (map[string]*models.CandidateProfile, error) {
	return guarded(b, func() (map[string]*models.CandidateProfile, error) {
		return b.Store.FetchCandidatesByIDs(ctx, ids)
	})
}

// FetchCampaignTarget runs through the breaker.
func (b *Breaker) FetchCampaignTarget(ctx context.Context, campaignID string) (*models.TargetCriteria, error) {
	return guarded(b, func() (*models.TargetCriteria, error) {
		return b.Store.FetchCampaignTarget(ctx, campaignID)
	})
}

// FetchBrandValues runs through the breaker.
func (b *Breaker) FetchBrandValues(ctx context.Context, agencyID string) ([]models.BrandValue, error) {
	return guarded(b, func() ([]models.BrandValue, error) {
		return b.Store.FetchBrandValues(ctx, agencyID)
	})
}

// FetchAgencyCriteria runs through the breaker.
func (b *Breaker) FetchAgencyCriteria(ctx context.Context, agencyID string) (*models.AgencyCriteria, error) {
	return guarded(b, func() (*models.AgencyCriteria, error) {
		return b.Store.FetchAgencyCriteria(ctx, agencyID)
	})
}

// FetchAthleteTraits runs through the breaker.
func (b *Breaker) FetchAthleteTraits(ctx context.Context, athleteIDs []string) (map[string][]models.AthleteTrait, error) {
	return guarded(b, func() (map[string][]models.AthleteTrait, error) {
		return b.Store.FetchAthleteTraits(ctx, athleteIDs)
	})
}

// FetchInteractions runs through the breaker.
func (b *Breaker) FetchInteractions(ctx context.Context, agencyID string) ([]models.Interaction, error) {
	return guarded(b, func() ([]models.Interaction, error) {
		return b.Store.FetchInteractions(ctx, agencyID)
	})
}

// PersistInteractionScore runs through the breaker.
func (b *Breaker) PersistInteractionScore(ctx context.Context, interactionID string, result *models.MatchResult) error {
	_, err := guarded(b, func() (struct{}, error) {
		return struct{}{}, b.Store.PersistInteractionScore(ctx, interactionID, result)
	})
	return err
}
