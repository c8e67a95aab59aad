package scoring

import (
	"math"

	"nil-match-engine/internal/models"
)

// Confidence thresholds on the 0-100 total.
const (
	HighConfidenceMin   = 80
	MediumConfidenceMin = 60
)

// AggregateCampaign sums the factor points and rounds into [0,100].
func AggregateCampaign(factors models.Factors) int {
	var sum float64
	for _, f := range factors {
		sum += f.Points
	}
	return int(clamp(math.Round(sum), 0, 100))
}

// AggregateAgency blends trait alignment and criteria match, both in [0,1],
// into a 0-100 total.
func AggregateAgency(trait, criteria float64, w AgencyWeights) int {
	blended := clamp(trait, 0, 1)*w.Trait + clamp(criteria, 0, 1)*w.Criteria
	return int(clamp(math.Round(100*blended), 0, 100))
}

// ConfidenceFor maps a total onto a confidence tier.
func ConfidenceFor(total int) models.Confidence {
	switch {
	case total >= HighConfidenceMin:
		return models.ConfidenceHigh
	case total >= MediumConfidenceMin:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
