// Package models defines the data structures for the NIL match engine.
package models

import (
	"strings"
)

// GenderAny is the target gender value meaning "no restriction".
const GenderAny = "any"

// AgeRange is an inclusive age window.
type AgeRange struct {
	Min int `json:"min" mapstructure:"min"`
	Max int `json:"max" mapstructure:"max"`
}

// Contains reports whether age falls inside the range.
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// TargetCriteria describes what a campaign is looking for.
// Empty or zero fields mean "no restriction".
type TargetCriteria struct {
	CampaignID         string        `json:"campaign_id"`
	TargetSports       []string      `json:"target_sports"`
	TargetSchoolLevels []SchoolLevel `json:"target_school_levels"`
	BudgetPerCandidate int64         `json:"budget_per_candidate"`
	TotalBudget        int64         `json:"total_budget,omitempty"`
	BrandValues        []string      `json:"brand_values"`
	TargetCauses       []string      `json:"target_causes"`
	TargetInterests    []string      `json:"target_interests"`
	ContentCategories  []string      `json:"content_categories"`
	TargetStates       []string      `json:"target_states"`
	TargetCities       []string      `json:"target_cities,omitempty"`
	TargetGender       string        `json:"target_gender,omitempty"`
	TargetAgeRange     *AgeRange     `json:"target_age_range,omitempty"`
	MinFollowers       int64         `json:"min_followers"`
	MinEngagementRate  float64       `json:"min_engagement_rate"`
}

// EffectiveBudget returns the per-candidate budget. When only a campaign total
// is known it is split by divisor; this split is a placeholder heuristic.
func (t *TargetCriteria) EffectiveBudget(divisor int64) int64 {
	if t.BudgetPerCandidate > 0 {
		return t.BudgetPerCandidate
	}
	if t.TotalBudget > 0 && divisor > 0 {
		return t.TotalBudget / divisor
	}
	return 0
}

// GenderUnrestricted reports whether the target accepts any gender.
func (t *TargetCriteria) GenderUnrestricted() bool {
	g := strings.TrimSpace(t.TargetGender)
	return g == "" || strings.EqualFold(g, GenderAny)
}

// ValidateTarget checks a campaign target for impossible values.
func ValidateTarget(t *TargetCriteria) error {
	if t.BudgetPerCandidate < 0 || t.TotalBudget < 0 || t.MinFollowers < 0 || t.MinEngagementRate < 0 {
		return ErrInvalidTarget
	}
	if t.TargetAgeRange != nil && t.TargetAgeRange.Min > t.TargetAgeRange.Max {
		return ErrInvalidTarget
	}
	return nil
}

// BrandValue is one trait an agency prioritizes. Priority 1 is highest.
type BrandValue struct {
	TraitID          string  `json:"trait_id"`
	Priority         int     `json:"priority"`
	ImportanceWeight float64 `json:"importance_weight"`
}

// ValidateBrandValue checks priority and weight bounds.
func ValidateBrandValue(v *BrandValue) error {
	if v.Priority < 1 || v.Priority > 5 {
		return ErrInvalidPriority
	}
	if v.ImportanceWeight < 0 {
		return ErrInvalidPriority
	}
	return nil
}

// AthleteTrait is an athlete's 0-100 score for a single trait.
type AthleteTrait struct {
	TraitID string  `json:"trait_id"`
	Score   float64 `json:"score"`
}

// AgencyCriteria holds an agency's explicit search criteria.
// Zero values mean the criterion is not set.
type AgencyCriteria struct {
	Sports             []string `json:"sports"`
	MinFollowers       int64    `json:"min_followers"`
	MaxFollowers       int64    `json:"max_followers"`
	MinEngagementRate  float64  `json:"min_engagement_rate"`
	PreferredArchetype string   `json:"preferred_archetype,omitempty"`
}

// AgencyTarget is everything agency-mode scoring needs about an agency.
type AgencyTarget struct {
	AgencyID    string         `json:"agency_id"`
	BrandValues []BrandValue   `json:"brand_values"`
	Criteria    AgencyCriteria `json:"criteria"`
}
