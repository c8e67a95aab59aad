// Package snapshot shapes raw store rows into the typed profiles the scorers consume
package snapshot

import (
	"strings"

	"nil-match-engine/internal/models"
)

// Defaults applied when optional columns are null.
const (
	DefaultPriority         = 3
	DefaultImportanceWeight = 1.0
	maxAge                  = 150
)

// AthleteRow is an athlete profile row. Pointer fields are nullable columns.
type AthleteRow struct {
	ID                 string
	Name               string
	SchoolName         *string
	PrimarySport       *string
	SecondarySports    []string
	SchoolLevel        *string
	State              *string
	City               *string
	Gender             *string
	GraduationYear     *int
	IsPublic           bool
	Archetype          *string
	BrandAffinity      []string
	Causes             []string
	Hobbies            []string
	LifestyleInterests []string
	ContentInterests   []string
}

// SocialStatRow is one platform's audience numbers for an athlete.
type SocialStatRow struct {
	AthleteID      string
	Platform       string
	Followers      *int64
	EngagementRate *float64
}

// FMVRow is an athlete's fair market value estimate.
type FMVRow struct {
	AthleteID string
	Low       *int64
	High      *int64
}

// CampaignRow is a campaign's targeting columns.
type CampaignRow struct {
	ID                 string
	TargetSports       []string
	TargetSchoolLevels []string
	BudgetPerAthlete   *int64
	TotalBudget        *int64
	BrandValues        []string
	TargetCauses       []string
	TargetInterests    []string
	ContentCategories  []string
	TargetStates       []string
	TargetCities       []string
	TargetGender       *string
	AgeMin             *int
	AgeMax             *int
	MinFollowers       *int64
	MinEngagementRate  *float64
}

// BrandValueRow is one agency brand value.
type BrandValueRow struct {
	TraitID          string
	Priority         *int
	ImportanceWeight *float64
}

// AgencyCriteriaRow is an agency's saved search criteria.
type AgencyCriteriaRow struct {
	AgencyID           string
	Sports             []string
	MinFollowers       *int64
	MaxFollowers       *int64
	MinEngagementRate  *float64
	PreferredArchetype *string
}

// AssembleCandidate merges an athlete row with its optional social stats and
// valuation. It returns false when the profile is missing or not public.
// Missing stats count as zero audience; a missing valuation becomes [0,0].
func AssembleCandidate(a *AthleteRow, stats []SocialStatRow, fmv *FMVRow) (*models.CandidateProfile, bool) {
	if a == nil || !a.IsPublic || strings.TrimSpace(a.ID) == "" {
		return nil, false
	}

	c := &models.CandidateProfile{
		ID:                 a.ID,
		Name:               a.Name,
		SchoolName:         valueOr(a.SchoolName, ""),
		PrimarySport:       valueOr(a.PrimarySport, ""),
		SecondarySports:    cleanTerms(a.SecondarySports),
		SchoolLevel:        models.NormalizeSchoolLevel(valueOr(a.SchoolLevel, "")),
		State:              strings.TrimSpace(valueOr(a.State, "")),
		City:               strings.TrimSpace(valueOr(a.City, "")),
		Gender:             strings.TrimSpace(valueOr(a.Gender, "")),
		GraduationYear:     valueOr(a.GraduationYear, 0),
		Followers:          make(map[models.Platform]int64, len(stats)),
		Archetype:          valueOr(a.Archetype, ""),
		BrandAffinity:      cleanTerms(a.BrandAffinity),
		Causes:             cleanTerms(a.Causes),
		Hobbies:            cleanTerms(a.Hobbies),
		LifestyleInterests: cleanTerms(a.LifestyleInterests),
		ContentInterests:   cleanTerms(a.ContentInterests),
	}

	var rateSum float64
	var rateCount int
	for _, s := range stats {
		if s.AthleteID != "" && s.AthleteID != a.ID {
			continue
		}
		platform := models.Platform(models.NormalizeTerm(s.Platform))
		if followers := valueOr(s.Followers, 0); followers > 0 {
			c.Followers[platform] += followers
		}
		if s.EngagementRate != nil && *s.EngagementRate >= 0 {
			rateSum += *s.EngagementRate
			rateCount++
		}
	}
	if rateCount > 0 {
		c.AvgEngagementRate = rateSum / float64(rateCount)
	}

	if fmv != nil {
		low := nonNegative(valueOr(fmv.Low, 0))
		high := nonNegative(valueOr(fmv.High, 0))
		if fmv.High == nil {
			high = low
		}
		if low > high {
			low, high = high, low
		}
		c.FMVLow, c.FMVHigh = low, high
	}

	return c, true
}

// AssembleCampaignTarget converts a campaign row into target criteria.
// Null columns become "no restriction".
func AssembleCampaignTarget(row *CampaignRow) *models.TargetCriteria {
	t := &models.TargetCriteria{
		CampaignID:         row.ID,
		TargetSports:       cleanTerms(row.TargetSports),
		TargetSchoolLevels: make([]models.SchoolLevel, 0, len(row.TargetSchoolLevels)),
		BudgetPerCandidate: nonNegative(valueOr(row.BudgetPerAthlete, 0)),
		TotalBudget:        nonNegative(valueOr(row.TotalBudget, 0)),
		BrandValues:        cleanTerms(row.BrandValues),
		TargetCauses:       cleanTerms(row.TargetCauses),
		TargetInterests:    cleanTerms(row.TargetInterests),
		ContentCategories:  cleanTerms(row.ContentCategories),
		TargetStates:       cleanTerms(row.TargetStates),
		TargetCities:       cleanTerms(row.TargetCities),
		TargetGender:       strings.TrimSpace(valueOr(row.TargetGender, models.GenderAny)),
		MinFollowers:       nonNegative(valueOr(row.MinFollowers, 0)),
		MinEngagementRate:  valueOr(row.MinEngagementRate, 0),
	}
	if t.MinEngagementRate < 0 {
		t.MinEngagementRate = 0
	}
	if t.TargetGender == "" {
		t.TargetGender = models.GenderAny
	}

	for _, level := range cleanTerms(row.TargetSchoolLevels) {
		t.TargetSchoolLevels = append(t.TargetSchoolLevels, models.NormalizeSchoolLevel(level))
	}

	if row.AgeMin != nil || row.AgeMax != nil {
		r := &models.AgeRange{Min: valueOr(row.AgeMin, 0), Max: valueOr(row.AgeMax, maxAge)}
		if r.Min > r.Max {
			r.Min, r.Max = r.Max, r.Min
		}
		t.TargetAgeRange = r
	}

	return t
}

// AssembleAgencyCriteria builds an agency target from its brand values and
// optional saved criteria. Brand values without a trait are dropped; null
// priority and weight take their defaults.
func AssembleAgencyCriteria(agencyID string, values []BrandValueRow, criteria *AgencyCriteriaRow) *models.AgencyTarget {
	a := &models.AgencyTarget{
		AgencyID:    agencyID,
		BrandValues: make([]models.BrandValue, 0, len(values)),
	}

	for _, v := range values {
		if strings.TrimSpace(v.TraitID) == "" {
			continue
		}
		bv := models.BrandValue{
			TraitID:          v.TraitID,
			Priority:         valueOr(v.Priority, DefaultPriority),
			ImportanceWeight: valueOr(v.ImportanceWeight, DefaultImportanceWeight),
		}
		if bv.Priority < 1 {
			bv.Priority = 1
		}
		if bv.Priority > 5 {
			bv.Priority = 5
		}
		if bv.ImportanceWeight < 0 {
			bv.ImportanceWeight = 0
		}
		a.BrandValues = append(a.BrandValues, bv)
	}

	if criteria != nil {
		a.Criteria = models.AgencyCriteria{
			Sports:             cleanTerms(criteria.Sports),
			MinFollowers:       nonNegative(valueOr(criteria.MinFollowers, 0)),
			MaxFollowers:       nonNegative(valueOr(criteria.MaxFollowers, 0)),
			MinEngagementRate:  valueOr(criteria.MinEngagementRate, 0),
			PreferredArchetype: strings.TrimSpace(valueOr(criteria.PreferredArchetype, "")),
		}
		if a.Criteria.MinEngagementRate < 0 {
			a.Criteria.MinEngagementRate = 0
		}
	}

	return a
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// cleanTerms trims terms and drops blanks. It always returns a non-nil slice.
func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
