package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nil-match-engine/internal/models"
)

func TestBuildCandidateQuery_NoFilters(t *testing.T) {
	query, args := buildCandidateQuery(models.CandidateFilter{}, "", 0)

	assert.Contains(t, query, "WHERE a.is_public AND a.id > $1")
	assert.Contains(t, query, "ORDER BY a.id")
	assert.NotContains(t, query, "LIMIT")
	assert.NotContains(t, query, "social_stats")
	assert.Equal(t, []interface{}{""}, args)
}

func TestBuildCandidateQuery_AllFilters(t *testing.T) {
	filter := models.CandidateFilter{
		Sports:            []string{"Soccer", "golf"},
		MinFollowers:      1000,
		MinEngagementRate: 2.5,
		GraduationYears:   []int{2026, 2027},
		Query:             "  St. 50%_ ",
	}

	query, args := buildCandidateQuery(filter, "ath-9", 50)

	assert.Contains(t, query, "lower(a.primary_sport) = ANY($2)")
	assert.Contains(t, query, "unnest(a.secondary_sports) s WHERE lower(s) = ANY($2)")
	assert.Contains(t, query, ">= $3")
	assert.Contains(t, query, "s.engagement_rate >= 0) >= $4")
	assert.Contains(t, query, "a.graduation_year = ANY($5)")
	assert.Contains(t, query, "a.name ILIKE $6 OR a.school_name ILIKE $6")
	assert.True(t, strings.HasSuffix(query, "LIMIT $7"))

	assert.Equal(t, []interface{}{
		"ath-9",
		[]string{"soccer", "golf"},
		int64(1000),
		2.5,
		[]int32{2026, 2027},
		`%st. 50\%\_%`,
		51,
	}, args)
}

func TestBuildCandidateQuery_PlaceholdersMatchArgs(t *testing.T) {
	tests := []struct {
		name   string
		filter models.CandidateFilter
		limit  int
		want   int
	}{
		{"cursor only", models.CandidateFilter{}, 0, 1},
		{"limit", models.CandidateFilter{}, 10, 2},
		{"followers", models.CandidateFilter{MinFollowers: 5}, 10, 3},
		{"query", models.CandidateFilter{Query: "lee"}, 0, 2},
		{"blank query ignored", models.CandidateFilter{Query: "   "}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildCandidateQuery(tt.filter, "", tt.limit)
			assert.Len(t, args, tt.want)
			assert.Contains(t, query, "$"+string(rune('0'+tt.want)))
		})
	}
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))
	assert.Equal(t, "tx", *nullIfEmpty("tx"))
	assert.Nil(t, nullIfZero(0))
	assert.Equal(t, 2026, *nullIfZero(2026))
	assert.Equal(t, []string{}, nonNilTerms(nil))
}

// liveRepository connects to DATABASE_URL and skips when it is not set.
func liveRepository(t *testing.T) (*Repository, *DB) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := NewFromURL(url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, db.Migrate(ctx))

	return NewRepository(db), db
}

func TestRepository_Live(t *testing.T) {
	repo, db := liveRepository(t)
	ctx := context.Background()
	prefix := "test-" + uuid.NewString()[:8] + "-"
	agencyID := prefix + "agency"
	campaignID := prefix + "campaign"

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM athletes WHERE id LIKE $1", prefix+"%")
		_, _ = db.ExecContext(ctx, "DELETE FROM agencies WHERE id = $1", agencyID)
	})

	roster := []*models.CandidateProfile{
		{
			ID:                prefix + "a",
			Name:              "Jordan Lee",
			SchoolName:        "State University",
			PrimarySport:      "Soccer",
			SchoolLevel:       models.SchoolLevelD1,
			State:             "TX",
			GraduationYear:    2026,
			Followers:         map[models.Platform]int64{models.PlatformInstagram: 8000, models.PlatformTikTok: 4000},
			AvgEngagementRate: 4.2,
			FMVLow:            50000,
			FMVHigh:           90000,
		},
		{ID: prefix + "b", Name: "Sam Cruz", PrimarySport: "golf"},
		{ID: prefix + "bad", Name: "Bad", FMVLow: 10, FMVHigh: 1},
	}
	imported, err := repo.UpsertCandidates(ctx, roster)
	require.NoError(t, err)
	assert.Equal(t, 2, imported.InsertedCount)
	assert.Equal(t, 1, imported.FailedCount)

	_, err = db.ExecContext(ctx, "INSERT INTO agencies (id, name) VALUES ($1, 'Test Agency')", agencyID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO campaigns (id, agency_id, target_sports, budget_per_athlete, target_gender)
		VALUES ($1, $2, ARRAY['soccer'], 60000, NULL)`, campaignID, agencyID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO agency_athlete_interactions (id, agency_id, athlete_id, status)
		VALUES ($1, $2, $3, 'saved')`, prefix+"int", agencyID, prefix+"a")
	require.NoError(t, err)

	t.Run("fetch candidates with filters", func(t *testing.T) {
		filter := models.CandidateFilter{Sports: []string{"soccer"}, MinFollowers: 10000, Query: "jordan"}
		page, err := repo.FetchCandidates(ctx, filter, prefix, 10)
		require.NoError(t, err)
		require.Len(t, page.Candidates, 1)
		c := page.Candidates[0]
		assert.Equal(t, int64(12000), c.TotalFollowers())
		assert.InDelta(t, 4.2, c.AvgEngagementRate, 1e-9)
		assert.Equal(t, int64(90000), c.FMVHigh)
	})

	t.Run("campaign target defaults", func(t *testing.T) {
		target, err := repo.FetchCampaignTarget(ctx, campaignID)
		require.NoError(t, err)
		assert.Equal(t, models.GenderAny, target.TargetGender)
		assert.Equal(t, int64(60000), target.BudgetPerCandidate)

		_, err = repo.FetchCampaignTarget(ctx, prefix+"missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("agency without values or criteria", func(t *testing.T) {
		values, err := repo.FetchBrandValues(ctx, agencyID)
		require.NoError(t, err)
		assert.Empty(t, values)

		criteria, err := repo.FetchAgencyCriteria(ctx, agencyID)
		require.NoError(t, err)
		assert.Equal(t, models.AgencyCriteria{}, *criteria)

		_, err = repo.FetchBrandValues(ctx, prefix+"nobody")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("persist is idempotent", func(t *testing.T) {
		result := &models.MatchResult{
			Total:      72,
			Confidence: models.ConfidenceMedium,
			Factors:    models.Factors{{Name: models.FactorTraitAlignment, Points: 42, Score: 42, Max: 60}},
		}
		require.NoError(t, repo.PersistInteractionScore(ctx, prefix+"int", result))
		first, err := repo.FetchInteractions(ctx, agencyID)
		require.NoError(t, err)
		require.Len(t, first, 1)

		require.NoError(t, repo.PersistInteractionScore(ctx, prefix+"int", result))
		second, err := repo.FetchInteractions(ctx, agencyID)
		require.NoError(t, err)

		assert.Equal(t, 72, *second[0].MatchScore)
		assert.Equal(t, models.InteractionSaved, second[0].Status)
		assert.True(t, first[0].ScoreRefreshedAt.Equal(*second[0].ScoreRefreshedAt))

		assert.ErrorIs(t, repo.PersistInteractionScore(ctx, prefix+"none", result), models.ErrNotFound)
	})
}
