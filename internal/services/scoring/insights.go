package scoring

import (
	"nil-match-engine/internal/models"
)

// insightRule turns a factor's score share into a strength or a concern.
// A share at or above StrengthAt is a strength; below ConcernBelow a concern.
type insightRule struct {
	StrengthAt   float64
	ConcernBelow float64
	Strength     string
	Concern      string
}

var insightRules = map[models.FactorName]insightRule{
	models.FactorBrandValues: {
		StrengthAt:   0.8,
		ConcernBelow: 0.5,
		Strength:     "Strong brand alignment",
		Concern:      "Limited brand values alignment",
	},
	models.FactorInterests: {
		StrengthAt:   0.8,
		ConcernBelow: 0.4,
		Strength:     "Shared interests with the campaign audience",
		Concern:      "Few overlapping interests or content categories",
	},
	models.FactorCampaignFit: {
		StrengthAt:   0.8,
		ConcernBelow: 0.4,
		Strength:     "Sport and school level fit the campaign",
		Concern:      "Sport or school level outside campaign targets",
	},
	models.FactorBudget: {
		StrengthAt:   0.8,
		ConcernBelow: 0.4,
		Strength:     "Budget aligns with fair market value",
		Concern:      "Budget is well below fair market value",
	},
	models.FactorGeography: {
		StrengthAt:   1.0,
		ConcernBelow: 0.7,
		Strength:     "Located in a target market",
		Concern:      "Outside the target geography",
	},
	models.FactorDemographics: {
		StrengthAt:   1.0,
		ConcernBelow: 0.5,
		Strength:     "Matches the target demographic",
		Concern:      "Outside the target demographic",
	},
	models.FactorEngagement: {
		StrengthAt:   0.8,
		ConcernBelow: 0.4,
		Strength:     "Audience reach and engagement exceed requirements",
		Concern:      "Audience reach or engagement below requirements",
	},
	models.FactorTraitAlignment: {
		StrengthAt:   0.8,
		ConcernBelow: 0.5,
		Strength:     "Traits align with agency brand values",
		Concern:      "Weak alignment with agency brand values",
	},
	models.FactorCriteriaMatch: {
		StrengthAt:   0.8,
		ConcernBelow: 0.5,
		Strength:     "Meets the agency search criteria",
		Concern:      "Misses several agency search criteria",
	},
}

// GenerateInsights lists strengths and concerns in factor order. A factor
// contributes to at most one list.
func GenerateInsights(factors models.Factors) (strengths, concerns []string) {
	strengths = []string{}
	concerns = []string{}
	for _, f := range factors {
		rule, ok := insightRules[f.Name]
		if !ok {
			continue
		}
		maxPoints := f.MaxPoints
		if maxPoints <= 0 {
			maxPoints = float64(f.Max)
		}
		if maxPoints <= 0 {
			continue
		}
		share := f.Points / maxPoints
		switch {
		case share >= rule.StrengthAt:
			strengths = append(strengths, rule.Strength)
		case share < rule.ConcernBelow:
			concerns = append(concerns, rule.Concern)
		}
	}
	return strengths, concerns
}
