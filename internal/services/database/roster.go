package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"nil-match-engine/internal/models"
)

// ImportResult is the outcome of a roster import.
type ImportResult struct {
	InsertedCount int      `json:"inserted_count"`
	FailedCount   int      `json:"failed_count"`
	Errors        []string `json:"errors,omitempty"`
}

// UpsertCandidates writes roster athletes with their social stats and
// valuation. Each athlete is written under its own savepoint so one bad row
// does not roll back the rest.
func (r *Repository) UpsertCandidates(ctx context.Context, candidates []*models.CandidateProfile) (*ImportResult, error) {
	result := &ImportResult{Errors: []string{}}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, c := range candidates {
			sp, err := tx.Begin(ctx)
			if err != nil {
				return fmt.Errorf("failed to open savepoint: %w", err)
			}

			if err := upsertCandidate(ctx, sp, c); err != nil {
				_ = sp.Rollback(ctx)
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("athlete %s: %v", c.ID, err))
				continue
			}
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("failed to release savepoint: %w", err)
			}
			result.InsertedCount++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("roster import failed: %w", err)
	}

	return result, nil
}

func upsertCandidate(ctx context.Context, tx pgx.Tx, c *models.CandidateProfile) error {
	if err := models.ValidateCandidate(c); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO athletes (
			id, name, school_name, primary_sport, secondary_sports, school_level,
			state, city, gender, graduation_year, archetype,
			brand_affinity, causes, hobbies, lifestyle_interests, content_interests
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			school_name = EXCLUDED.school_name,
			primary_sport = EXCLUDED.primary_sport,
			secondary_sports = EXCLUDED.secondary_sports,
			school_level = EXCLUDED.school_level,
			state = EXCLUDED.state,
			city = EXCLUDED.city,
			gender = EXCLUDED.gender,
			graduation_year = EXCLUDED.graduation_year,
			archetype = EXCLUDED.archetype,
			brand_affinity = EXCLUDED.brand_affinity,
			causes = EXCLUDED.causes,
			hobbies = EXCLUDED.hobbies,
			lifestyle_interests = EXCLUDED.lifestyle_interests,
			content_interests = EXCLUDED.content_interests,
			updated_at = NOW()`,
		c.ID,
		c.Name,
		nullIfEmpty(c.SchoolName),
		nullIfEmpty(c.PrimarySport),
		nonNilTerms(c.SecondarySports),
		nullIfEmpty(string(c.SchoolLevel)),
		nullIfEmpty(c.State),
		nullIfEmpty(c.City),
		nullIfEmpty(c.Gender),
		nullIfZero(c.GraduationYear),
		nullIfEmpty(c.Archetype),
		nonNilTerms(c.BrandAffinity),
		nonNilTerms(c.Causes),
		nonNilTerms(c.Hobbies),
		nonNilTerms(c.LifestyleInterests),
		nonNilTerms(c.ContentInterests),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert athlete: %w", err)
	}

	// The roster carries one average engagement rate, stored on every platform row.
	for platform, followers := range c.Followers {
		_, err := tx.Exec(ctx, `
			INSERT INTO social_stats (athlete_id, platform, followers, engagement_rate)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (athlete_id, platform) DO UPDATE SET
				followers = EXCLUDED.followers,
				engagement_rate = EXCLUDED.engagement_rate,
				updated_at = NOW()`,
			c.ID, string(platform), followers, c.AvgEngagementRate)
		if err != nil {
			return fmt.Errorf("failed to upsert social stats: %w", err)
		}
	}

	if c.FMVLow > 0 || c.FMVHigh > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO fmv_estimates (athlete_id, fmv_low, fmv_high)
			VALUES ($1, $2, $3)
			ON CONFLICT (athlete_id) DO UPDATE SET
				fmv_low = EXCLUDED.fmv_low,
				fmv_high = EXCLUDED.fmv_high,
				updated_at = NOW()`,
			c.ID, c.FMVLow, c.FMVHigh)
		if err != nil {
			return fmt.Errorf("failed to upsert fmv estimate: %w", err)
		}
	}

	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZero(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func nonNilTerms(terms []string) []string {
	if terms == nil {
		return []string{}
	}
	return terms
}
