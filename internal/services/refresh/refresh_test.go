package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/scoring"
	"nil-match-engine/internal/services/store"
)

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for _, id := range []string{"ath-1", "ath-2", "ath-3"} {
		require.NoError(t, m.PutCandidate(&models.CandidateProfile{
			ID:                id,
			Name:              "Athlete " + id,
			PrimarySport:      "soccer",
			Followers:         map[models.Platform]int64{models.PlatformTikTok: 4000},
			AvgEngagementRate: 4,
			FMVLow:            1000,
			FMVHigh:           3000,
		}))
	}
	require.NoError(t, m.PutAgency(&models.AgencyTarget{
		AgencyID:    "ag-1",
		BrandValues: []models.BrandValue{{TraitID: "grit", Priority: 1, ImportanceWeight: 1}},
		Criteria:    models.AgencyCriteria{Sports: []string{"soccer"}, MinFollowers: 1000},
	}))
	m.PutTraits("ath-1", []models.AthleteTrait{{TraitID: "grit", Score: 80}})

	m.PutInteraction(models.Interaction{ID: "int-1", AgencyID: "ag-1", AthleteID: "ath-1", Status: models.InteractionSaved})
	m.PutInteraction(models.Interaction{ID: "int-2", AgencyID: "ag-1", AthleteID: "ath-2", Status: models.InteractionContacted})
	m.PutInteraction(models.Interaction{ID: "int-3", AgencyID: "ag-1", AthleteID: "gone", Status: models.InteractionViewed})
	m.PutInteraction(models.Interaction{ID: "int-4", AgencyID: "ag-2", AthleteID: "ath-3"})
	return m
}

func newTestJob(s store.Store, opts ...Option) *Job {
	return NewJob(s, scoring.NewScorer(scoring.DefaultWeights()), 2, zap.NewNop(), opts...)
}

func TestRefreshScores(t *testing.T) {
	m := seeded(t)
	job := newTestJob(m, WithBatchSize(1))

	report, err := job.RefreshScores(context.Background(), "ag-1")
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "ag-1", report.AgencyID)
	assert.Equal(t, 2, report.UpdatedCount)
	assert.Equal(t, 0, report.FailedCount)
	assert.Equal(t, 1, report.SkippedCount)
	assert.GreaterOrEqual(t, report.DurationMS, int64(0))

	first, ok := m.StoredScore("int-1")
	require.True(t, ok)
	_, ok = first.Factors.Get(models.FactorTraitAlignment)
	assert.True(t, ok)

	in, ok := m.Interaction("int-2")
	require.True(t, ok)
	assert.Equal(t, models.InteractionContacted, in.Status, "status is never modified")
	require.NotNil(t, in.MatchScore)

	_, ok = m.StoredScore("int-4")
	assert.False(t, ok, "other agencies are untouched")
}

func TestRefreshScores_Idempotent(t *testing.T) {
	m := seeded(t)
	job := newTestJob(m)
	ctx := context.Background()

	_, err := job.RefreshScores(ctx, "ag-1")
	require.NoError(t, err)
	before, _ := m.Interaction("int-1")
	stored, _ := m.StoredScore("int-1")

	time.Sleep(2 * time.Millisecond)
	_, err = job.RefreshScores(ctx, "ag-1")
	require.NoError(t, err)
	after, _ := m.Interaction("int-1")
	again, _ := m.StoredScore("int-1")

	assert.Equal(t, stored, again)
	assert.Equal(t, *before.ScoreRefreshedAt, *after.ScoreRefreshedAt, "unchanged scores are not rewritten")
}

func TestRefreshScores_UnknownAgency(t *testing.T) {
	_, err := newTestJob(seeded(t)).RefreshScores(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = newTestJob(seeded(t)).RefreshScores(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrEmptyTargetID)
}

// flakyStore fails writes for one interaction.
type flakyStore struct {
	store.Store
	failID string
}

func (s *flakyStore) PersistInteractionScore(ctx context.Context, id string, result *models.MatchResult) error {
	if id == s.failID {
		return errors.New("connection reset")
	}
	return s.Store.PersistInteractionScore(ctx, id, result)
}

func TestRefreshScores_PersistFailureDoesNotAbort(t *testing.T) {
	m := seeded(t)
	job := newTestJob(&flakyStore{Store: m, failID: "int-1"})

	report, err := job.RefreshScores(context.Background(), "ag-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpdatedCount)
	assert.Equal(t, 1, report.FailedCount)
	assert.Equal(t, 1, report.SkippedCount)

	_, ok := m.StoredScore("int-2")
	assert.True(t, ok)
}

type recordingArchiver struct {
	reports []*models.RefreshReport
	err     error
}

func (a *recordingArchiver) ArchiveRefreshReport(_ context.Context, r *models.RefreshReport) (string, error) {
	a.reports = append(a.reports, r)
	return "reports/refresh/" + r.AgencyID + "/" + r.RunID + ".json", a.err
}

func TestRefreshScores_ArchivesReport(t *testing.T) {
	archiver := &recordingArchiver{}
	job := newTestJob(seeded(t), WithArchiver(archiver))

	report, err := job.RefreshScores(context.Background(), "ag-1")
	require.NoError(t, err)
	require.Len(t, archiver.reports, 1)
	assert.Same(t, report, archiver.reports[0])
}

func TestRefreshScores_ArchiveFailureIsNotFatal(t *testing.T) {
	archiver := &recordingArchiver{err: errors.New("access denied")}
	job := newTestJob(seeded(t), WithArchiver(archiver))

	report, err := job.RefreshScores(context.Background(), "ag-1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.UpdatedCount)
}

func TestRefreshScores_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestJob(seeded(t)).RefreshScores(ctx, "ag-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshScores_IgnoresCachedSnapshots(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	m.PutTraits("ath-1", []models.AthleteTrait{{TraitID: "grit", Score: 100}, {TraitID: "flair", Score: 0}})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cached := store.NewCached(m, client, time.Hour, zap.NewNop())

	job := newTestJob(cached)
	_, err := job.RefreshScores(ctx, "ag-1")
	require.NoError(t, err)
	before, ok := m.StoredScore("int-1")
	require.True(t, ok)

	// Warm the cache, then change what the agency values.
	_, err = store.FetchAgencyTarget(ctx, cached, "ag-1")
	require.NoError(t, err)
	_, err = cached.FetchCandidatesByIDs(ctx, []string{"ath-1"})
	require.NoError(t, err)
	require.NoError(t, m.PutAgency(&models.AgencyTarget{
		AgencyID:    "ag-1",
		BrandValues: []models.BrandValue{{TraitID: "flair", Priority: 1, ImportanceWeight: 1}},
		Criteria:    models.AgencyCriteria{Sports: []string{"soccer"}, MinFollowers: 1000},
	}))

	stale, err := store.FetchAgencyTarget(ctx, cached, "ag-1")
	require.NoError(t, err)
	require.Equal(t, "grit", stale.BrandValues[0].TraitID, "cache still holds the old values")

	_, err = job.RefreshScores(ctx, "ag-1")
	require.NoError(t, err)
	after, ok := m.StoredScore("int-1")
	require.True(t, ok)

	current, err := store.FetchAgencyTarget(ctx, m, "ag-1")
	require.NoError(t, err)
	athletes, err := m.FetchCandidatesByIDs(ctx, []string{"ath-1"})
	require.NoError(t, err)
	traits, err := m.FetchAthleteTraits(ctx, []string{"ath-1"})
	require.NoError(t, err)
	want := scoring.NewScorer(scoring.DefaultWeights()).ScoreAgency(athletes["ath-1"], current, traits["ath-1"])

	assert.Equal(t, want.Total, after.Total)
	assert.Less(t, after.Total, before.Total)
}

func TestUncached(t *testing.T) {
	m := store.NewMemory()
	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { _ = client.Close() })

	layered := store.NewCached(store.NewCached(m, client, time.Minute, nil), client, time.Minute, nil)
	assert.Same(t, m, store.Uncached(layered))
	assert.Same(t, m, store.Uncached(m))
}
