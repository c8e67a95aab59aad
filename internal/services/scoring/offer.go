package scoring

import (
	"math"
)

// Offer tiers on the match percentage.
const (
	offerPremiumMin  = 85
	offerStandardMin = 70

	offerPremiumPush  = 0.5
	offerDiscountPull = 0.3
	offerFloorShare   = 0.9
)

// RecommendOffer derives a compensation figure from the fair market value
// band and the match percentage, clamped to the budget ceiling and then to a
// floor of 90% of fmv_low. A ceiling of zero or less means no ceiling.
func RecommendOffer(fmvLow, fmvHigh int64, matchPct int, budgetCeiling int64) int64 {
	low := float64(fmvLow)
	high := float64(fmvHigh)
	mid := (low + high) / 2

	var offer float64
	switch {
	case matchPct >= offerPremiumMin:
		offer = mid + (high-mid)*offerPremiumPush
	case matchPct >= offerStandardMin:
		offer = mid
	default:
		offer = mid - (mid-low)*offerDiscountPull
	}

	if budgetCeiling > 0 {
		offer = math.Min(offer, float64(budgetCeiling))
	}
	offer = math.Max(offer, low*offerFloorShare)

	return int64(math.Round(offer))
}
