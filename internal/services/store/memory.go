package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nil-match-engine/internal/models"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store used by the offline ranking CLI and tests.
type Memory struct {
	mu           sync.RWMutex
	candidates   map[string]*models.CandidateProfile
	campaigns    map[string]*models.TargetCriteria
	agencies     map[string]*models.AgencyTarget
	traits       map[string][]models.AthleteTrait
	interactions map[string]*models.Interaction
	scores       map[string]models.ScoreFields
	now          func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		candidates:   make(map[string]*models.CandidateProfile),
		campaigns:    make(map[string]*models.TargetCriteria),
		agencies:     make(map[string]*models.AgencyTarget),
		traits:       make(map[string][]models.AthleteTrait),
		interactions: make(map[string]*models.Interaction),
		scores:       make(map[string]models.ScoreFields),
		now:          time.Now,
	}
}

// PutCandidate adds or replaces a candidate after validating it.
func (m *Memory) PutCandidate(c *models.CandidateProfile) error {
	if err := models.ValidateCandidate(c); err != nil {
		return fmt.Errorf("candidate %q: %w", c.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = c
	return nil
}

// PutCampaign adds or replaces a campaign target.
func (m *Memory) PutCampaign(t *models.TargetCriteria) error {
	if err := models.ValidateTarget(t); err != nil {
		return fmt.Errorf("campaign %q: %w", t.CampaignID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[t.CampaignID] = t
	return nil
}

// PutAgency adds or replaces an agency's brand values and criteria.
func (m *Memory) PutAgency(a *models.AgencyTarget) error {
	for i := range a.BrandValues {
		if err := models.ValidateBrandValue(&a.BrandValues[i]); err != nil {
			return fmt.Errorf("agency %q: %w", a.AgencyID, err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agencies[a.AgencyID] = a
	return nil
}

// PutTraits sets an athlete's trait scores.
func (m *Memory) PutTraits(athleteID string, traits []models.AthleteTrait) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traits[athleteID] = traits
}

// PutInteraction adds or replaces an interaction.
func (m *Memory) PutInteraction(i models.Interaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions[i.ID] = &i
}

// StoredScore returns the score fields last persisted for an interaction.
func (m *Memory) StoredScore(interactionID string) (models.ScoreFields, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[interactionID]
	return s, ok
}

// Interaction returns a copy of a stored interaction.
func (m *Memory) Interaction(id string) (models.Interaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.interactions[id]
	if !ok {
		return models.Interaction{}, false
	}
	return *i, true
}

// FetchCandidates returns a filtered keyset page ordered by id.
func (m *Memory) FetchCandidates(ctx context.Context, filter models.CandidateFilter, cursor string, limit int) (*CandidatePage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.candidates))
	for id := range m.candidates {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit <= 0 {
		limit = len(ids)
	}

	page := &CandidatePage{Candidates: make([]*models.CandidateProfile, 0, limit)}
	for _, id := range ids {
		c := m.candidates[id]
		if !filter.Matches(c) {
			continue
		}
		if len(page.Candidates) == limit {
			page.NextCursor = page.Candidates[len(page.Candidates)-1].ID
			break
		}
		page.Candidates = append(page.Candidates, c)
	}
	return page, nil
}

// FetchCandidatesByIDs returns the known candidates among ids.
func (m *Memory) FetchCandidatesByIDs(ctx context.Context, ids []string) (map[string]*models.CandidateProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*models.CandidateProfile, len(ids))
	for _, id := range ids {
		if c, ok := m.candidates[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// FetchCampaignTarget returns a campaign's targeting criteria.
func (m *Memory) FetchCampaignTarget(ctx context.Context, campaignID string) (*models.TargetCriteria, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign %q: %w", campaignID, models.ErrNotFound)
	}
	return t, nil
}

// FetchBrandValues returns an agency's brand values.
func (m *Memory) FetchBrandValues(ctx context.Context, agencyID string) ([]models.BrandValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agencies[agencyID]
	if !ok {
		return nil, fmt.Errorf("agency %q: %w", agencyID, models.ErrNotFound)
	}
	return append([]models.BrandValue{}, a.BrandValues...), nil
}

// FetchAgencyCriteria returns an agency's saved criteria.
func (m *Memory) FetchAgencyCriteria(ctx context.Context, agencyID string) (*models.AgencyCriteria, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	criteria := &models.AgencyCriteria{}
	if a, ok := m.agencies[agencyID]; ok {
		*criteria = a.Criteria
	}
	return criteria, nil
}

// FetchAthleteTraits returns trait scores for the given athletes.
func (m *Memory) FetchAthleteTraits(ctx context.Context, athleteIDs []string) (map[string][]models.AthleteTrait, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]models.AthleteTrait, len(athleteIDs))
	for _, id := range athleteIDs {
		if t, ok := m.traits[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

// FetchInteractions returns an agency's interactions ordered by id.
func (m *Memory) FetchInteractions(ctx context.Context, agencyID string) ([]models.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Interaction{}
	for _, i := range m.interactions {
		if i.AgencyID == agencyID {
			out = append(out, *i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// PersistInteractionScore stores the score fields of an interaction. The
// refresh timestamp only moves when the score actually changed.
func (m *Memory) PersistInteractionScore(ctx context.Context, interactionID string, result *models.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.interactions[interactionID]
	if !ok {
		return fmt.Errorf("interaction %q: %w", interactionID, models.ErrNotFound)
	}

	fields := result.ScoreFields()
	if prev, ok := m.scores[interactionID]; ok && sameScore(prev, fields) {
		return nil
	}
	m.scores[interactionID] = fields
	total := result.Total
	now := m.now()
	i.MatchScore = &total
	i.ScoreRefreshedAt = &now
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func sameScore(a, b models.ScoreFields) bool {
	if a.Total != b.Total || a.Confidence != b.Confidence || len(a.Factors) != len(b.Factors) {
		return false
	}
	for i := range a.Factors {
		if a.Factors[i].Name != b.Factors[i].Name || a.Factors[i].Points != b.Factors[i].Points {
			return false
		}
	}
	return true
}
