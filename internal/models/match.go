// Package models defines the data structures for the NIL match engine.
package models

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Confidence is the coarse trust tier of a match score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FactorName identifies a scoring factor.
type FactorName string

const (
	FactorBrandValues    FactorName = "brand_values"
	FactorInterests      FactorName = "interests"
	FactorCampaignFit    FactorName = "campaign_fit"
	FactorBudget         FactorName = "budget"
	FactorGeography      FactorName = "geography"
	FactorDemographics   FactorName = "demographics"
	FactorEngagement     FactorName = "engagement"
	FactorTraitAlignment FactorName = "trait_alignment"
	FactorCriteriaMatch  FactorName = "criteria_match"
)

// MatchMode selects campaign or agency scoring.
type MatchMode string

const (
	ModeCampaign MatchMode = "campaign"
	ModeAgency   MatchMode = "agency"
)

// IsValid checks if the mode is known.
func (m MatchMode) IsValid() bool {
	return m == ModeCampaign || m == ModeAgency
}

// FactorBreakdown is the explanation payload attached to a factor score.
type FactorBreakdown interface {
	Kind() FactorName
}

// FactorScore is one factor's contribution to a match.
// Points keeps full precision; Score is the rounded value that is reported.
type FactorScore struct {
	Name      FactorName      `json:"-"`
	Points    float64         `json:"-"`
	MaxPoints float64         `json:"-"`
	Score     int             `json:"score"`
	Max       int             `json:"max"`
	Breakdown FactorBreakdown `json:"breakdown"`
}

// Factors is an ordered list of factor scores. It marshals as a JSON object
// keyed by factor name, preserving evaluation order.
type Factors []FactorScore

// Get returns the factor with the given name.
func (f Factors) Get(name FactorName) (FactorScore, bool) {
	for _, fs := range f {
		if fs.Name == name {
			return fs, true
		}
	}
	return FactorScore{}, false
}

// MarshalJSON encodes the factors as an ordered object.
func (f Factors) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fs := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(fs.Name))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(fs)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MatchResult is the derived compatibility between one athlete and one target.
// It is recomputed on every request and never mutated after construction.
type MatchResult struct {
	Total            int        `json:"total"`
	Confidence       Confidence `json:"confidence"`
	Factors          Factors    `json:"factors"`
	RecommendedOffer int64      `json:"recommended_offer"`
	Strengths        []string   `json:"strengths"`
	Concerns         []string   `json:"concerns"`
}

// ScoreFields is the subset of a MatchResult persisted by the refresh job.
type ScoreFields struct {
	Total      int        `json:"total"`
	Confidence Confidence `json:"confidence"`
	Factors    Factors    `json:"factors"`
}

// ScoreFields extracts the persisted score cache from the result.
func (m *MatchResult) ScoreFields() ScoreFields {
	return ScoreFields{
		Total:      m.Total,
		Confidence: m.Confidence,
		Factors:    m.Factors,
	}
}

// BrandValuesBreakdown explains the brand values factor.
type BrandValuesBreakdown struct {
	MatchedValues  []string `json:"matched_values"`
	RequiredValues int      `json:"required_values"`
	ValuesPoints   float64  `json:"values_points"`
	MatchedCauses  []string `json:"matched_causes"`
	RequiredCauses int      `json:"required_causes"`
	CausesPoints   float64  `json:"causes_points"`
}

func (BrandValuesBreakdown) Kind() FactorName { return FactorBrandValues }

// InterestsBreakdown explains the interests factor.
type InterestsBreakdown struct {
	MatchedInterests  []string `json:"matched_interests"`
	RequiredInterests int      `json:"required_interests"`
	InterestPoints    float64  `json:"interest_points"`
	MatchedContent    []string `json:"matched_content"`
	RequiredContent   int      `json:"required_content"`
	ContentPoints     float64  `json:"content_points"`
}

func (InterestsBreakdown) Kind() FactorName { return FactorInterests }

// SportMatch describes how the athlete's sport lined up with the target.
type SportMatch string

const (
	SportMatchPrimary   SportMatch = "primary"
	SportMatchSecondary SportMatch = "secondary"
	SportMatchNone      SportMatch = "none"
	SportMatchOpen      SportMatch = "unrestricted"
)

// CampaignFitBreakdown explains the campaign fit factor.
type CampaignFitBreakdown struct {
	SportMatch        SportMatch `json:"sport_match"`
	MatchedSport      string     `json:"matched_sport,omitempty"`
	SportPoints       float64    `json:"sport_points"`
	SchoolLevelMatch  bool       `json:"school_level_match"`
	SchoolLevelPoints float64    `json:"school_level_points"`
}

func (CampaignFitBreakdown) Kind() FactorName { return FactorCampaignFit }

// BudgetBand labels which budget rule applied.
type BudgetBand string

const (
	BudgetBandInRange  BudgetBand = "in_range"
	BudgetBandNear     BudgetBand = "near"
	BudgetBandModerate BudgetBand = "moderate"
	BudgetBandOver     BudgetBand = "over"
	BudgetBandUnder    BudgetBand = "under"
	BudgetBandOpen     BudgetBand = "unrestricted"
)

// BudgetBreakdown explains the budget factor.
type BudgetBreakdown struct {
	Budget  int64      `json:"budget"`
	FMVLow  int64      `json:"fmv_low"`
	FMVMid  float64    `json:"fmv_mid"`
	FMVHigh int64      `json:"fmv_high"`
	Ratio   float64    `json:"ratio"`
	Band    BudgetBand `json:"band"`
}

func (BudgetBreakdown) Kind() FactorName { return FactorBudget }

// GeographyBreakdown explains the geography factor.
type GeographyBreakdown struct {
	StateMatch  bool    `json:"state_match"`
	StatePoints float64 `json:"state_points"`
	CityMatch   bool    `json:"city_match"`
	CityPoints  float64 `json:"city_points"`
}

func (GeographyBreakdown) Kind() FactorName { return FactorGeography }

// DemographicsBreakdown explains the demographics factor. Age is derived
// from graduation year and is an approximation.
type DemographicsBreakdown struct {
	GenderMatch  bool    `json:"gender_match"`
	GenderPoints float64 `json:"gender_points"`
	EstimatedAge int     `json:"estimated_age,omitempty"`
	AgeMatch     bool    `json:"age_match"`
	AgePoints    float64 `json:"age_points"`
}

func (DemographicsBreakdown) Kind() FactorName { return FactorDemographics }

// EngagementBreakdown explains the engagement factor.
type EngagementBreakdown struct {
	Followers        int64   `json:"followers"`
	FollowerRatio    float64 `json:"follower_ratio"`
	FollowerPoints   float64 `json:"follower_points"`
	EngagementRate   float64 `json:"engagement_rate"`
	EngagementRatio  float64 `json:"engagement_ratio"`
	EngagementPoints float64 `json:"engagement_points"`
}

func (EngagementBreakdown) Kind() FactorName { return FactorEngagement }

// TraitContribution is one brand value's part of the trait alignment.
type TraitContribution struct {
	TraitID        string  `json:"trait_id"`
	AthleteScore   float64 `json:"athlete_score"`
	CombinedWeight float64 `json:"combined_weight"`
	Weighted       float64 `json:"weighted"`
}

// TraitAlignmentBreakdown explains agency trait alignment.
type TraitAlignmentBreakdown struct {
	Alignment     float64             `json:"alignment"`
	Contributions []TraitContribution `json:"contributions"`
	Neutral       bool                `json:"neutral"`
}

func (TraitAlignmentBreakdown) Kind() FactorName { return FactorTraitAlignment }

// CriterionCheck records one agency criterion test.
type CriterionCheck struct {
	Criterion string `json:"criterion"`
	Passed    bool   `json:"passed"`
}

// CriteriaMatchBreakdown explains agency criteria matching.
type CriteriaMatchBreakdown struct {
	Ratio   float64          `json:"ratio"`
	Checks  []CriterionCheck `json:"checks"`
	Neutral bool             `json:"neutral"`
}

func (CriteriaMatchBreakdown) Kind() FactorName { return FactorCriteriaMatch }
