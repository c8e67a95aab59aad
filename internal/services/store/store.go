// Package store defines the data-store collaborator the match engine reads
// snapshots from, plus in-memory, cached and circuit-breaking implementations.
package store

import (
	"context"
	"errors"

	"nil-match-engine/internal/models"
)

// ErrStoreUnavailable is returned while the store circuit breaker is open.
var ErrStoreUnavailable = errors.New("store unavailable")

// CandidatePage is one keyset page of candidates ordered by id.
// NextCursor is empty on the last page.
type CandidatePage struct {
	Candidates []*models.CandidateProfile
	NextCursor string
}

// Store is the data-store collaborator. Candidate fetches are batched and
// push the hard filters down; profiles that are missing or private are
// never returned.
type Store interface {
	// FetchCandidates returns up to limit candidates with id > cursor that
	// pass filter.
	FetchCandidates(ctx context.Context, filter models.CandidateFilter, cursor string, limit int) (*CandidatePage, error)
	// FetchCandidatesByIDs returns the requested candidates keyed by id.
	// Unknown ids are absent from the map.
	FetchCandidatesByIDs(ctx context.Context, ids []string) (map[string]*models.CandidateProfile, error)
	FetchCampaignTarget(ctx context.Context, campaignID string) (*models.TargetCriteria, error)
	// FetchBrandValues returns models.ErrNotFound for an unknown agency.
	FetchBrandValues(ctx context.Context, agencyID string) ([]models.BrandValue, error)
	// FetchAgencyCriteria returns zero criteria when the agency saved none.
	FetchAgencyCriteria(ctx context.Context, agencyID string) (*models.AgencyCriteria, error)
	FetchAthleteTraits(ctx context.Context, athleteIDs []string) (map[string][]models.AthleteTrait, error)
	FetchInteractions(ctx context.Context, agencyID string) ([]models.Interaction, error)
	// PersistInteractionScore writes only the score fields of an interaction.
	PersistInteractionScore(ctx context.Context, interactionID string, result *models.MatchResult) error
	Ping(ctx context.Context) error
}

// FetchAgencyTarget loads everything agency-mode scoring needs about an agency.
func FetchAgencyTarget(ctx context.Context, s Store, agencyID string) (*models.AgencyTarget, error) {
	values, err := s.FetchBrandValues(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	criteria, err := s.FetchAgencyCriteria(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	target := &models.AgencyTarget{AgencyID: agencyID, BrandValues: values}
	if criteria != nil {
		target.Criteria = *criteria
	}
	return target, nil
}

// Batches splits ids into consecutive slices of at most size ids.
func Batches(ids []string, size int) [][]string {
	if size <= 0 || len(ids) <= size {
		if len(ids) == 0 {
			return nil
		}
		return [][]string{ids}
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
