// Package scoring implements the weighted athlete match scorers
package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when a weights table fails validation
var ErrInvalidWeights = errors.New("invalid weights table")

// BandStep awards Points when a ratio is at least MinRatio.
type BandStep struct {
	MinRatio float64 `json:"min_ratio" mapstructure:"min_ratio"`
	Points   float64 `json:"points" mapstructure:"points"`
}

// BrandValuesWeights splits the brand values factor.
type BrandValuesWeights struct {
	Values float64 `json:"values" mapstructure:"values"`
	Causes float64 `json:"causes" mapstructure:"causes"`
}

// InterestsWeights splits the interests factor.
type InterestsWeights struct {
	Lifestyle float64 `json:"lifestyle" mapstructure:"lifestyle"`
	Content   float64 `json:"content" mapstructure:"content"`
}

// CampaignFitWeights splits the campaign fit factor.
type CampaignFitWeights struct {
	PrimarySport   float64 `json:"primary_sport" mapstructure:"primary_sport"`
	SecondarySport float64 `json:"secondary_sport" mapstructure:"secondary_sport"`
	SchoolLevel    float64 `json:"school_level" mapstructure:"school_level"`
}

// BudgetWeights holds the budget bands. InRange is the factor maximum.
type BudgetWeights struct {
	InRange      float64 `json:"in_range" mapstructure:"in_range"`
	Near         float64 `json:"near" mapstructure:"near"`
	Moderate     float64 `json:"moderate" mapstructure:"moderate"`
	Over         float64 `json:"over" mapstructure:"over"`
	Under        float64 `json:"under" mapstructure:"under"`
	NearLow      float64 `json:"near_low" mapstructure:"near_low"`
	NearHigh     float64 `json:"near_high" mapstructure:"near_high"`
	ModerateLow  float64 `json:"moderate_low" mapstructure:"moderate_low"`
	ModerateHigh float64 `json:"moderate_high" mapstructure:"moderate_high"`
}

// GeographyWeights splits the geography factor.
type GeographyWeights struct {
	State float64 `json:"state" mapstructure:"state"`
	City  float64 `json:"city" mapstructure:"city"`
}

// DemographicsWeights splits the demographics factor.
type DemographicsWeights struct {
	Gender float64 `json:"gender" mapstructure:"gender"`
	Age    float64 `json:"age" mapstructure:"age"`
}

// EngagementWeights holds follower and engagement-rate bands, highest ratio first.
type EngagementWeights struct {
	Followers     float64    `json:"followers" mapstructure:"followers"`
	FollowerBands []BandStep `json:"follower_bands" mapstructure:"follower_bands"`
	Rate          float64    `json:"rate" mapstructure:"rate"`
	RateBands     []BandStep `json:"rate_bands" mapstructure:"rate_bands"`
}

// AgencyWeights blends the two agency factors. Neutral is the value used
// when an agency has declared nothing for a factor.
type AgencyWeights struct {
	Trait    float64 `json:"trait" mapstructure:"trait"`
	Criteria float64 `json:"criteria" mapstructure:"criteria"`
	Neutral  float64 `json:"neutral" mapstructure:"neutral"`
}

// Weights is the full scoring weights table.
type Weights struct {
	BrandValues  BrandValuesWeights  `json:"brand_values" mapstructure:"brand_values"`
	Interests    InterestsWeights    `json:"interests" mapstructure:"interests"`
	CampaignFit  CampaignFitWeights  `json:"campaign_fit" mapstructure:"campaign_fit"`
	Budget       BudgetWeights       `json:"budget" mapstructure:"budget"`
	Geography    GeographyWeights    `json:"geography" mapstructure:"geography"`
	Demographics DemographicsWeights `json:"demographics" mapstructure:"demographics"`
	Engagement   EngagementWeights   `json:"engagement" mapstructure:"engagement"`
	Agency       AgencyWeights       `json:"agency" mapstructure:"agency"`
}

// DefaultWeights returns the standard weights table.
func DefaultWeights() Weights {
	return Weights{
		BrandValues: BrandValuesWeights{Values: 12, Causes: 8},
		Interests:   InterestsWeights{Lifestyle: 7, Content: 8},
		CampaignFit: CampaignFitWeights{PrimarySport: 12, SecondarySport: 8, SchoolLevel: 8},
		Budget: BudgetWeights{
			InRange:      15,
			Near:         12,
			Moderate:     8,
			Over:         10,
			Under:        3,
			NearLow:      0.8,
			NearHigh:     1.2,
			ModerateLow:  0.6,
			ModerateHigh: 1.4,
		},
		Geography:    GeographyWeights{State: 7, City: 3},
		Demographics: DemographicsWeights{Gender: 5, Age: 5},
		Engagement: EngagementWeights{
			Followers: 6,
			FollowerBands: []BandStep{
				{MinRatio: 2.0, Points: 6},
				{MinRatio: 1.5, Points: 5},
				{MinRatio: 1.2, Points: 4},
				{MinRatio: 1.0, Points: 3},
				{MinRatio: 0.8, Points: 2},
			},
			Rate: 4,
			RateBands: []BandStep{
				{MinRatio: 1.5, Points: 4},
				{MinRatio: 1.2, Points: 3},
				{MinRatio: 1.0, Points: 2},
				{MinRatio: 0.8, Points: 1},
			},
		},
		Agency: AgencyWeights{Trait: 0.6, Criteria: 0.4, Neutral: 0.5},
	}
}

// Factor maxima derived from the table.
func (w Weights) maxBrandValues() float64 { return w.BrandValues.Values + w.BrandValues.Causes }
func (w Weights) maxInterests() float64 { return w.Interests.Lifestyle + w.Interests.Content }
func (w Weights) maxCampaignFit() float64 { return w.CampaignFit.PrimarySport + w.CampaignFit.SchoolLevel }
func (w Weights) maxBudget() float64 { return w.Budget.InRange }
func (w Weights) maxGeography() float64 { return w.Geography.State + w.Geography.City }
func (w Weights) maxDemographics() float64 { return w.Demographics.Gender + w.Demographics.Age }
func (w Weights) maxEngagement() float64 { return w.Engagement.Followers + w.Engagement.Rate }

// CampaignTotal returns the sum of the campaign factor maxima.
func (w Weights) CampaignTotal() float64 {
	return w.maxBrandValues() + w.maxInterests() + w.maxCampaignFit() + w.maxBudget() +
		w.maxGeography() + w.maxDemographics() + w.maxEngagement()
}

// Validate checks that the table is internally consistent: no negative
// entries, campaign maxima summing to 100 and agency weights summing to 1.
func (w Weights) Validate() error {
	values := map[string]float64{
		"brand_values.values":          w.BrandValues.Values,
		"brand_values.causes":          w.BrandValues.Causes,
		"interests.lifestyle":          w.Interests.Lifestyle,
		"interests.content":            w.Interests.Content,
		"campaign_fit.primary_sport":   w.CampaignFit.PrimarySport,
		"campaign_fit.secondary_sport": w.CampaignFit.SecondarySport,
		"campaign_fit.school_level":    w.CampaignFit.SchoolLevel,
		"budget.in_range":              w.Budget.InRange,
		"budget.near":                  w.Budget.Near,
		"budget.moderate":              w.Budget.Moderate,
		"budget.over":                  w.Budget.Over,
		"budget.under":                 w.Budget.Under,
		"geography.state":              w.Geography.State,
		"geography.city":               w.Geography.City,
		"demographics.gender":          w.Demographics.Gender,
		"demographics.age":             w.Demographics.Age,
		"engagement.followers":         w.Engagement.Followers,
		"engagement.rate":              w.Engagement.Rate,
		"agency.trait":                 w.Agency.Trait,
		"agency.criteria":              w.Agency.Criteria,
	}
	for name, v := range values {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s is negative", ErrInvalidWeights, name)
		}
	}

	if w.CampaignFit.SecondarySport > w.CampaignFit.PrimarySport {
		return fmt.Errorf("%w: secondary sport exceeds primary sport", ErrInvalidWeights)
	}
	for _, v := range []float64{w.Budget.Near, w.Budget.Moderate, w.Budget.Over, w.Budget.Under} {
		if v > w.Budget.InRange {
			return fmt.Errorf("%w: budget band exceeds in-range points", ErrInvalidWeights)
		}
	}
	if !(w.Budget.ModerateLow <= w.Budget.NearLow && w.Budget.NearLow <= 1 &&
		1 <= w.Budget.NearHigh && w.Budget.NearHigh <= w.Budget.ModerateHigh) {
		return fmt.Errorf("%w: budget ratio bounds must nest around 1", ErrInvalidWeights)
	}
	if err := validateBands("engagement.follower_bands", w.Engagement.FollowerBands, w.Engagement.Followers); err != nil {
		return err
	}
	if err := validateBands("engagement.rate_bands", w.Engagement.RateBands, w.Engagement.Rate); err != nil {
		return err
	}

	if total := w.CampaignTotal(); math.Abs(total-100) > 1e-9 {
		return fmt.Errorf("%w: campaign factor maxima sum to %.2f, want 100", ErrInvalidWeights, total)
	}
	if sum := w.Agency.Trait + w.Agency.Criteria; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: agency weights sum to %.2f, want 1", ErrInvalidWeights, sum)
	}
	if w.Agency.Neutral < 0 || w.Agency.Neutral > 1 {
		return fmt.Errorf("%w: agency neutral must be within [0,1]", ErrInvalidWeights)
	}
	return nil
}

func validateBands(name string, bands []BandStep, maxPoints float64) error {
	for i, b := range bands {
		if b.Points < 0 || b.Points > maxPoints || b.MinRatio < 0 {
			return fmt.Errorf("%w: %s[%d] out of bounds", ErrInvalidWeights, name, i)
		}
		if i > 0 && b.MinRatio >= bands[i-1].MinRatio {
			return fmt.Errorf("%w: %s must be ordered by descending ratio", ErrInvalidWeights, name)
		}
	}
	return nil
}
