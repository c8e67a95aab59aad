package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nil-match-engine/internal/models"
)

func newTestCandidate(id, sport string, followers int64) *models.CandidateProfile {
	return &models.CandidateProfile{
		ID:           id,
		Name:         "Athlete " + id,
		PrimarySport: sport,
		Followers:    map[models.Platform]int64{models.PlatformInstagram: followers},
		FMVLow:       1000,
		FMVHigh:      2000,
	}
}

func seededMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	for i, sport := range []string{"soccer", "golf", "soccer", "soccer", "tennis"} {
		id := string(rune('a' + i))
		require.NoError(t, m.PutCandidate(newTestCandidate(id, sport, int64(1000*(i+1)))))
	}
	require.NoError(t, m.PutCampaign(&models.TargetCriteria{CampaignID: "camp-1", BudgetPerCandidate: 1500}))
	require.NoError(t, m.PutAgency(&models.AgencyTarget{
		AgencyID:    "ag-1",
		BrandValues: []models.BrandValue{{TraitID: "grit", Priority: 1, ImportanceWeight: 1}},
		Criteria:    models.AgencyCriteria{Sports: []string{"soccer"}},
	}))
	m.PutTraits("a", []models.AthleteTrait{{TraitID: "grit", Score: 90}})
	m.PutInteraction(models.Interaction{ID: "int-2", AgencyID: "ag-1", AthleteID: "c", Status: models.InteractionSaved})
	m.PutInteraction(models.Interaction{ID: "int-1", AgencyID: "ag-1", AthleteID: "a", Status: models.InteractionSuggested})
	m.PutInteraction(models.Interaction{ID: "int-9", AgencyID: "ag-2", AthleteID: "b"})
	return m
}

func TestMemory_FetchCandidatesKeyset(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()
	filter := models.CandidateFilter{Sports: []string{"soccer"}}

	page, err := m.FetchCandidates(ctx, filter, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Candidates, 2)
	assert.Equal(t, "a", page.Candidates[0].ID)
	assert.Equal(t, "c", page.Candidates[1].ID)
	assert.Equal(t, "c", page.NextCursor)

	page, err = m.FetchCandidates(ctx, filter, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	assert.Equal(t, "d", page.Candidates[0].ID)
	assert.Empty(t, page.NextCursor)
}

func TestMemory_FetchCandidatesCancelled(t *testing.T) {
	m := seededMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.FetchCandidates(ctx, models.CandidateFilter{}, "", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_RejectsInvalidSnapshots(t *testing.T) {
	m := NewMemory()
	bad := newTestCandidate("x", "golf", 10)
	bad.FMVLow = 5000
	assert.ErrorIs(t, m.PutCandidate(bad), models.ErrInvalidFMVRange)
	assert.ErrorIs(t, m.PutAgency(&models.AgencyTarget{AgencyID: "ag", BrandValues: []models.BrandValue{{Priority: 7}}}), models.ErrInvalidPriority)
}

func TestMemory_Lookups(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	byID, err := m.FetchCandidatesByIDs(ctx, []string{"a", "zz"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	_, err = m.FetchCampaignTarget(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = m.FetchBrandValues(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	criteria, err := m.FetchAgencyCriteria(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, models.AgencyCriteria{}, *criteria)

	target, err := FetchAgencyTarget(ctx, m, "ag-1")
	require.NoError(t, err)
	assert.Len(t, target.BrandValues, 1)
	assert.Equal(t, []string{"soccer"}, target.Criteria.Sports)

	traits, err := m.FetchAthleteTraits(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, traits, 1)

	interactions, err := m.FetchInteractions(ctx, "ag-1")
	require.NoError(t, err)
	require.Len(t, interactions, 2)
	assert.Equal(t, "int-1", interactions[0].ID)
}

func TestMemory_PersistInteractionScoreIsIdempotent(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()
	calls := 0
	m.now = func() time.Time {
		calls++
		return time.Date(2026, 1, 1, 0, 0, calls, 0, time.UTC)
	}

	result := &models.MatchResult{
		Total:      64,
		Confidence: models.ConfidenceMedium,
		Factors:    models.Factors{{Name: models.FactorTraitAlignment, Points: 40, Score: 40, Max: 60}},
	}
	require.NoError(t, m.PersistInteractionScore(ctx, "int-1", result))
	first, _ := m.Interaction("int-1")

	require.NoError(t, m.PersistInteractionScore(ctx, "int-1", result))
	second, _ := m.Interaction("int-1")

	assert.Equal(t, 64, *second.MatchScore)
	assert.Equal(t, *first.ScoreRefreshedAt, *second.ScoreRefreshedAt)
	assert.Equal(t, models.InteractionSuggested, second.Status)

	stored, ok := m.StoredScore("int-1")
	require.True(t, ok)
	assert.Equal(t, result.ScoreFields(), stored)

	assert.ErrorIs(t, m.PersistInteractionScore(ctx, "nope", result), models.ErrNotFound)
}

// countingStore counts calls reaching the wrapped store and can be made to fail.
type countingStore struct {
	Store
	campaignCalls int
	byIDCalls     [][]string
	err           error
}

func (s *countingStore) FetchCampaignTarget(ctx context.Context, id string) (*models.TargetCriteria, error) {
	s.campaignCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.FetchCampaignTarget(ctx, id)
}

func (s *countingStore) FetchCandidatesByIDs(ctx context.Context, ids []string) (map[string]*models.CandidateProfile, error) {
	s.byIDCalls = append(s.byIDCalls, ids)
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.FetchCandidatesByIDs(ctx, ids)
}

func setupCached(t *testing.T, inner Store) (*Cached, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCached(inner, client, time.Minute, zap.NewNop()), mr
}

func TestCached_CampaignTargetCacheAside(t *testing.T) {
	inner := &countingStore{Store: seededMemory(t)}
	cached, mr := setupCached(t, inner)
	ctx := context.Background()

	first, err := cached.FetchCampaignTarget(ctx, "camp-1")
	require.NoError(t, err)
	second, err := cached.FetchCampaignTarget(ctx, "camp-1")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.campaignCalls)
	assert.Equal(t, first.BudgetPerCandidate, second.BudgetPerCandidate)
	assert.True(t, mr.Exists("nilmatch:campaign:camp-1"))

	mr.FastForward(2 * time.Minute)
	_, err = cached.FetchCampaignTarget(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.campaignCalls)
}

func TestCached_NotFoundIsNotCached(t *testing.T) {
	inner := &countingStore{Store: seededMemory(t)}
	cached, mr := setupCached(t, inner)

	_, err := cached.FetchCampaignTarget(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, mr.Exists("nilmatch:campaign:missing"))
}

func TestCached_CandidatesByIDsLoadsOnlyMisses(t *testing.T) {
	inner := &countingStore{Store: seededMemory(t)}
	cached, _ := setupCached(t, inner)
	ctx := context.Background()

	got, err := cached.FetchCandidatesByIDs(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = cached.FetchCandidatesByIDs(ctx, []string{"a", "b", "c", "zz"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int64(1000), got["a"].TotalFollowers())

	require.Len(t, inner.byIDCalls, 2)
	assert.Equal(t, []string{"c", "zz"}, inner.byIDCalls[1])
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	inner := &countingStore{Store: seededMemory(t)}
	cached, mr := setupCached(t, inner)
	mr.Close()

	target, err := cached.FetchCampaignTarget(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "camp-1", target.CampaignID)

	got, err := cached.FetchCandidatesByIDs(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.Error(t, cached.Ping(context.Background()))
}

func TestCached_Invalidate(t *testing.T) {
	inner := &countingStore{Store: seededMemory(t)}
	cached, mr := setupCached(t, inner)
	ctx := context.Background()

	_, err := cached.FetchCampaignTarget(ctx, "camp-1")
	require.NoError(t, err)
	require.NoError(t, cached.Invalidate(ctx, "camp-1"))
	assert.False(t, mr.Exists("nilmatch:campaign:camp-1"))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &countingStore{Store: seededMemory(t), err: errors.New("connection refused")}
	b := NewBreaker(inner, 3, time.Hour, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.FetchCampaignTarget(ctx, "camp-1")
		assert.EqualError(t, err, "connection refused")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.FetchCampaignTarget(ctx, "camp-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 3, inner.campaignCalls)
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	b := NewBreaker(seededMemory(t), 2, time.Hour, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.FetchCampaignTarget(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	target, err := b.FetchCampaignTarget(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "camp-1", target.CampaignID)

	page, err := b.FetchCandidates(ctx, models.CandidateFilter{}, "", 10)
	require.NoError(t, err)
	assert.Len(t, page.Candidates, 5)
}

func TestBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	assert.Nil(t, Batches(nil, 2))
	assert.Equal(t, [][]string{ids}, Batches(ids, 0))
	assert.Equal(t, [][]string{ids}, Batches(ids, 5))
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, Batches(ids, 2))
}
