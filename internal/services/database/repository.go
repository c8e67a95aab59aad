package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/snapshot"
	"nil-match-engine/internal/services/store"
)

var _ store.Store = (*Repository)(nil)

// Repository implements store.Store on PostgreSQL.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const athleteSelect = `
	SELECT a.id, a.name, a.school_name, a.primary_sport, a.secondary_sports, a.school_level,
		a.state, a.city, a.gender, a.graduation_year, a.is_public, a.archetype,
		a.brand_affinity, a.causes, a.hobbies, a.lifestyle_interests, a.content_interests,
		f.athlete_id, f.fmv_low, f.fmv_high
	FROM athletes a
	LEFT JOIN fmv_estimates f ON f.athlete_id = a.id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildCandidateQuery builds the keyset candidate query with the hard
// filters pushed down. One extra row is requested so the caller can tell
// whether another page exists.
func buildCandidateQuery(filter models.CandidateFilter, cursor string, limit int) (string, []interface{}) {
	args := []interface{}{cursor}
	param := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var sb strings.Builder
	sb.WriteString(athleteSelect)
	sb.WriteString("\n\tWHERE a.is_public AND a.id > $1")

	if len(filter.Sports) > 0 {
		sports := make([]string, len(filter.Sports))
		for i, s := range filter.Sports {
			sports[i] = strings.ToLower(s)
		}
		p := param(sports)
		sb.WriteString("\n\tAND (lower(a.primary_sport) = ANY(" + p + ")" +
			" OR EXISTS (SELECT 1 FROM unnest(a.secondary_sports) s WHERE lower(s) = ANY(" + p + ")))")
	}
	if filter.MinFollowers > 0 {
		sb.WriteString("\n\tAND (SELECT COALESCE(SUM(GREATEST(s.followers, 0)), 0) FROM social_stats s" +
			" WHERE s.athlete_id = a.id) >= " + param(filter.MinFollowers))
	}
	if filter.MinEngagementRate > 0 {
		sb.WriteString("\n\tAND (SELECT AVG(s.engagement_rate) FROM social_stats s" +
			" WHERE s.athlete_id = a.id AND s.engagement_rate >= 0) >= " + param(filter.MinEngagementRate))
	}
	if len(filter.GraduationYears) > 0 {
		years := make([]int32, len(filter.GraduationYears))
		for i, y := range filter.GraduationYears {
			years[i] = int32(y)
		}
		sb.WriteString("\n\tAND a.graduation_year = ANY(" + param(years) + ")")
	}
	if q := models.NormalizeTerm(filter.Query); q != "" {
		p := param("%" + likeEscaper.Replace(q) + "%")
		sb.WriteString("\n\tAND (a.name ILIKE " + p + " OR a.school_name ILIKE " + p + ")")
	}

	sb.WriteString("\n\tORDER BY a.id")
	if limit > 0 {
		sb.WriteString("\n\tLIMIT " + param(limit+1))
	}
	return sb.String(), args
}

type athleteRecord struct {
	athlete snapshot.AthleteRow
	fmv     *snapshot.FMVRow
}

func scanAthletes(rows pgx.Rows) ([]athleteRecord, error) {
	defer rows.Close()

	var records []athleteRecord
	for rows.Next() {
		var rec athleteRecord
		var fmvAthlete *string
		var fmvLow, fmvHigh *int64
		a := &rec.athlete

		err := rows.Scan(
			&a.ID,
			&a.Name,
			&a.SchoolName,
			&a.PrimarySport,
			&a.SecondarySports,
			&a.SchoolLevel,
			&a.State,
			&a.City,
			&a.Gender,
			&a.GraduationYear,
			&a.IsPublic,
			&a.Archetype,
			&a.BrandAffinity,
			&a.Causes,
			&a.Hobbies,
			&a.LifestyleInterests,
			&a.ContentInterests,
			&fmvAthlete,
			&fmvLow,
			&fmvHigh,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan athlete: %w", err)
		}
		if fmvAthlete != nil {
			rec.fmv = &snapshot.FMVRow{AthleteID: *fmvAthlete, Low: fmvLow, High: fmvHigh}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating athletes: %w", err)
	}
	return records, nil
}

// assemble loads social stats for all records in one query and builds the
// candidate snapshots. Private profiles are dropped.
func (r *Repository) assemble(ctx context.Context, records []athleteRecord) ([]*models.CandidateProfile, error) {
	if len(records) == 0 {
		return []*models.CandidateProfile{}, nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.athlete.ID
	}
	stats, err := r.fetchSocialStats(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]*models.CandidateProfile, 0, len(records))
	for i := range records {
		rec := &records[i]
		if c, ok := snapshot.AssembleCandidate(&rec.athlete, stats[rec.athlete.ID], rec.fmv); ok {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

func (r *Repository) fetchSocialStats(ctx context.Context, athleteIDs []string) (map[string][]snapshot.SocialStatRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT athlete_id, platform, followers, engagement_rate
		FROM social_stats
		WHERE athlete_id = ANY($1)`, athleteIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query social stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string][]snapshot.SocialStatRow, len(athleteIDs))
	for rows.Next() {
		var s snapshot.SocialStatRow
		if err := rows.Scan(&s.AthleteID, &s.Platform, &s.Followers, &s.EngagementRate); err != nil {
			return nil, fmt.Errorf("failed to scan social stat: %w", err)
		}
		stats[s.AthleteID] = append(stats[s.AthleteID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating social stats: %w", err)
	}
	return stats, nil
}

// FetchCandidates returns one keyset page of public candidates passing filter.
func (r *Repository) FetchCandidates(ctx context.Context, filter models.CandidateFilter, cursor string, limit int) (*store.CandidatePage, error) {
	query, args := buildCandidateQuery(filter, cursor, limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	records, err := scanAthletes(rows)
	if err != nil {
		return nil, err
	}

	page := &store.CandidatePage{}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
		page.NextCursor = records[limit-1].athlete.ID
	}
	if page.Candidates, err = r.assemble(ctx, records); err != nil {
		return nil, err
	}
	return page, nil
}

// FetchCandidatesByIDs returns the public candidates among ids.
func (r *Repository) FetchCandidatesByIDs(ctx context.Context, ids []string) (map[string]*models.CandidateProfile, error) {
	out := make(map[string]*models.CandidateProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, athleteSelect+"\n\tWHERE a.id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates by id: %w", err)
	}
	records, err := scanAthletes(rows)
	if err != nil {
		return nil, err
	}
	candidates, err := r.assemble(ctx, records)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		out[c.ID] = c
	}
	return out, nil
}

// FetchCampaignTarget returns a campaign's targeting criteria.
func (r *Repository) FetchCampaignTarget(ctx context.Context, campaignID string) (*models.TargetCriteria, error) {
	query := `
		SELECT id, target_sports, target_school_levels, budget_per_athlete, total_budget,
			brand_values, target_causes, target_interests, content_categories,
			target_states, target_cities, target_gender, age_min, age_max,
			min_followers, min_engagement_rate
		FROM campaigns
		WHERE id = $1`

	var row snapshot.CampaignRow
	err := r.db.QueryRowContext(ctx, query, campaignID).Scan(
		&row.ID,
		&row.TargetSports,
		&row.TargetSchoolLevels,
		&row.BudgetPerAthlete,
		&row.TotalBudget,
		&row.BrandValues,
		&row.TargetCauses,
		&row.TargetInterests,
		&row.ContentCategories,
		&row.TargetStates,
		&row.TargetCities,
		&row.TargetGender,
		&row.AgeMin,
		&row.AgeMax,
		&row.MinFollowers,
		&row.MinEngagementRate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("campaign %q: %w", campaignID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return snapshot.AssembleCampaignTarget(&row), nil
}

func (r *Repository) agencyExists(ctx context.Context, agencyID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM agencies WHERE id = $1)", agencyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check agency: %w", err)
	}
	return exists, nil
}

// FetchBrandValues returns an agency's brand values ordered by priority.
func (r *Repository) FetchBrandValues(ctx context.Context, agencyID string) ([]models.BrandValue, error) {
	exists, err := r.agencyExists(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("agency %q: %w", agencyID, models.ErrNotFound)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT trait_id, priority, importance_weight
		FROM agency_brand_values
		WHERE agency_id = $1
		ORDER BY priority NULLS LAST, trait_id`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query brand values: %w", err)
	}
	defer rows.Close()

	var values []snapshot.BrandValueRow
	for rows.Next() {
		var v snapshot.BrandValueRow
		if err := rows.Scan(&v.TraitID, &v.Priority, &v.ImportanceWeight); err != nil {
			return nil, fmt.Errorf("failed to scan brand value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brand values: %w", err)
	}

	return snapshot.AssembleAgencyCriteria(agencyID, values, nil).BrandValues, nil
}

// FetchAgencyCriteria returns an agency's saved criteria, or zero criteria.
func (r *Repository) FetchAgencyCriteria(ctx context.Context, agencyID string) (*models.AgencyCriteria, error) {
	row := snapshot.AgencyCriteriaRow{AgencyID: agencyID}
	err := r.db.QueryRowContext(ctx, `
		SELECT sports, min_followers, max_followers, min_engagement_rate, preferred_archetype
		FROM agency_search_criteria
		WHERE agency_id = $1`, agencyID).Scan(
		&row.Sports,
		&row.MinFollowers,
		&row.MaxFollowers,
		&row.MinEngagementRate,
		&row.PreferredArchetype,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.AgencyCriteria{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency criteria: %w", err)
	}

	criteria := snapshot.AssembleAgencyCriteria(agencyID, nil, &row).Criteria
	return &criteria, nil
}

// FetchAthleteTraits returns trait scores for the given athletes.
func (r *Repository) FetchAthleteTraits(ctx context.Context, athleteIDs []string) (map[string][]models.AthleteTrait, error) {
	out := make(map[string][]models.AthleteTrait, len(athleteIDs))
	if len(athleteIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT athlete_id, trait_id, score
		FROM athlete_trait_scores
		WHERE athlete_id = ANY($1)
		ORDER BY athlete_id, trait_id`, athleteIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query athlete traits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var athleteID string
		var t models.AthleteTrait
		if err := rows.Scan(&athleteID, &t.TraitID, &t.Score); err != nil {
			return nil, fmt.Errorf("failed to scan athlete trait: %w", err)
		}
		out[athleteID] = append(out[athleteID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating athlete traits: %w", err)
	}
	return out, nil
}

// FetchInteractions returns an agency's interactions ordered by id.
func (r *Repository) FetchInteractions(ctx context.Context, agencyID string) ([]models.Interaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, agency_id, athlete_id, status, match_score, score_refreshed_at
		FROM agency_athlete_interactions
		WHERE agency_id = $1
		ORDER BY id`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	interactions := []models.Interaction{}
	for rows.Next() {
		var i models.Interaction
		var status string
		if err := rows.Scan(&i.ID, &i.AgencyID, &i.AthleteID, &status, &i.MatchScore, &i.ScoreRefreshedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		i.Status = models.InteractionStatus(status)
		interactions = append(interactions, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}
	return interactions, nil
}

// PersistInteractionScore writes the score fields of an interaction. The row
// is left untouched, refresh timestamp included, when nothing changed.
func (r *Repository) PersistInteractionScore(ctx context.Context, interactionID string, result *models.MatchResult) error {
	breakdown, err := json.Marshal(result.ScoreFields())
	if err != nil {
		return fmt.Errorf("failed to encode score breakdown: %w", err)
	}

	affected, err := r.db.ExecContext(ctx, `
		UPDATE agency_athlete_interactions
		SET match_score = $2,
			match_confidence = $3,
			match_breakdown = $4::jsonb,
			score_refreshed_at = NOW()
		WHERE id = $1
			AND (match_score IS DISTINCT FROM $2
				OR match_confidence IS DISTINCT FROM $3
				OR match_breakdown IS DISTINCT FROM $4::jsonb)`,
		interactionID,
		result.Total,
		string(result.Confidence),
		string(breakdown),
	)
	if err != nil {
		return fmt.Errorf("failed to persist interaction score: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM agency_athlete_interactions WHERE id = $1)", interactionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check interaction: %w", err)
	}
	if !exists {
		return fmt.Errorf("interaction %q: %w", interactionID, models.ErrNotFound)
	}
	return nil
}

// Ping verifies database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
