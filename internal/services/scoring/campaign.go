package scoring

import (
	"strings"

	"nil-match-engine/internal/models"
)

// ScoreBrandValues scores shared brand values and causes.
func ScoreBrandValues(c *models.CandidateProfile, t *models.TargetCriteria, w BrandValuesWeights) models.FactorScore {
	values := normalizedSet(t.BrandValues)
	causes := normalizedSet(t.TargetCauses)
	bd := models.BrandValuesBreakdown{
		MatchedValues:  []string{},
		RequiredValues: len(values),
		MatchedCauses:  []string{},
		RequiredCauses: len(causes),
	}

	bd.ValuesPoints = neutralIfEmpty(values, w.Values*halfCredit, func(req []string) float64 {
		bd.MatchedValues = matchExact(c.BrandAffinity, req)
		return shareOf(w.Values, len(bd.MatchedValues), len(req))
	})
	bd.CausesPoints = neutralIfEmpty(causes, w.Causes*halfCredit, func(req []string) float64 {
		bd.MatchedCauses = matchExact(c.Causes, req)
		return shareOf(w.Causes, len(bd.MatchedCauses), len(req))
	})

	points := bd.ValuesPoints + bd.CausesPoints
	bd.ValuesPoints = round2(bd.ValuesPoints)
	bd.CausesPoints = round2(bd.CausesPoints)
	return factor(models.FactorBrandValues, points, w.Values+w.Causes, bd)
}

// ScoreInterests scores lifestyle/hobby overlap (substring either way) and
// content category overlap (exact).
func ScoreInterests(c *models.CandidateProfile, t *models.TargetCriteria, w InterestsWeights) models.FactorScore {
	interests := normalizedSet(t.TargetInterests)
	content := normalizedSet(t.ContentCategories)
	bd := models.InterestsBreakdown{
		MatchedInterests:  []string{},
		RequiredInterests: len(interests),
		MatchedContent:    []string{},
		RequiredContent:   len(content),
	}

	bd.InterestPoints = neutralIfEmpty(interests, w.Lifestyle*halfCredit, func(req []string) float64 {
		have := make([]string, 0, len(c.Hobbies)+len(c.LifestyleInterests))
		have = append(have, c.Hobbies...)
		have = append(have, c.LifestyleInterests...)
		bd.MatchedInterests = matchSubstring(have, req)
		return shareOf(w.Lifestyle, len(bd.MatchedInterests), len(req))
	})
	bd.ContentPoints = neutralIfEmpty(content, w.Content*halfCredit, func(req []string) float64 {
		bd.MatchedContent = matchExact(c.ContentInterests, req)
		return shareOf(w.Content, len(bd.MatchedContent), len(req))
	})

	points := bd.InterestPoints + bd.ContentPoints
	bd.InterestPoints = round2(bd.InterestPoints)
	bd.ContentPoints = round2(bd.ContentPoints)
	return factor(models.FactorInterests, points, w.Lifestyle+w.Content, bd)
}

// ScoreCampaignFit scores sport and school level fit. An empty sport or
// level list earns half of that sub-budget.
func ScoreCampaignFit(c *models.CandidateProfile, t *models.TargetCriteria, w CampaignFitWeights) models.FactorScore {
	bd := models.CampaignFitBreakdown{SportMatch: models.SportMatchOpen}

	bd.SportPoints = neutralIfEmpty(normalizedSet(t.TargetSports), w.PrimarySport*halfCredit, func(req []string) float64 {
		if m := matchExact([]string{c.PrimarySport}, req); len(m) > 0 {
			bd.SportMatch = models.SportMatchPrimary
			bd.MatchedSport = m[0]
			return w.PrimarySport
		}
		if m := matchExact(c.SecondarySports, req); len(m) > 0 {
			bd.SportMatch = models.SportMatchSecondary
			bd.MatchedSport = m[0]
			return w.SecondarySport
		}
		bd.SportMatch = models.SportMatchNone
		return 0
	})

	bd.SchoolLevelPoints = neutralIfEmpty(t.TargetSchoolLevels, w.SchoolLevel*halfCredit, func(req []models.SchoolLevel) float64 {
		level := models.NormalizeSchoolLevel(string(c.SchoolLevel))
		for _, l := range req {
			if models.NormalizeSchoolLevel(string(l)) == level {
				bd.SchoolLevelMatch = true
				return w.SchoolLevel
			}
		}
		return 0
	})

	return factor(models.FactorCampaignFit, bd.SportPoints+bd.SchoolLevelPoints, w.PrimarySport+w.SchoolLevel, bd)
}

// ScoreBudget scores how the per-candidate budget compares with the
// athlete's fair market value. A budget inside [fmv_low, fmv_high] earns the
// full factor. An unset budget earns half. A missing valuation (mid of zero)
// is treated as over budget.
func ScoreBudget(c *models.CandidateProfile, budget int64, w BudgetWeights) models.FactorScore {
	mid := c.FMVMid()
	bd := models.BudgetBreakdown{
		Budget:  budget,
		FMVLow:  c.FMVLow,
		FMVMid:  mid,
		FMVHigh: c.FMVHigh,
	}

	var points float64
	switch {
	case budget >= c.FMVLow && budget <= c.FMVHigh:
		bd.Band = models.BudgetBandInRange
		points = w.InRange
	case budget <= 0:
		bd.Band = models.BudgetBandOpen
		points = w.InRange * halfCredit
	case mid <= 0:
		bd.Band = models.BudgetBandOver
		points = w.Over
	default:
		ratio := float64(budget) / mid
		bd.Ratio = round2(ratio)
		switch {
		case ratio >= w.NearLow && ratio <= w.NearHigh:
			bd.Band = models.BudgetBandNear
			points = w.Near
		case ratio >= w.ModerateLow && ratio <= w.ModerateHigh:
			bd.Band = models.BudgetBandModerate
			points = w.Moderate
		case ratio > w.ModerateHigh:
			bd.Band = models.BudgetBandOver
			points = w.Over
		default:
			bd.Band = models.BudgetBandUnder
			points = w.Under
		}
	}

	return factor(models.FactorBudget, points, w.InRange, bd)
}

// ScoreGeography scores state and city. Unspecified geography earns full credit.
func ScoreGeography(c *models.CandidateProfile, t *models.TargetCriteria, w GeographyWeights) models.FactorScore {
	bd := models.GeographyBreakdown{StateMatch: true, CityMatch: true}

	bd.StatePoints = neutralIfEmpty(normalizedSet(t.TargetStates), w.State, func(req []string) float64 {
		bd.StateMatch = len(matchExact([]string{c.State}, req)) > 0
		if bd.StateMatch {
			return w.State
		}
		return 0
	})
	bd.CityPoints = neutralIfEmpty(normalizedSet(t.TargetCities), w.City, func(req []string) float64 {
		bd.CityMatch = len(matchExact([]string{c.City}, req)) > 0
		if bd.CityMatch {
			return w.City
		}
		return 0
	})

	return factor(models.FactorGeography, bd.StatePoints+bd.CityPoints, w.State+w.City, bd)
}

// ScoreDemographics scores gender and approximate age. Age is estimated as
// currentYear - (graduation_year - 18); an athlete with no graduation year
// fails any declared age range.
func ScoreDemographics(c *models.CandidateProfile, t *models.TargetCriteria, w DemographicsWeights, currentYear int) models.FactorScore {
	bd := models.DemographicsBreakdown{}

	if t.GenderUnrestricted() || strings.EqualFold(strings.TrimSpace(c.Gender), strings.TrimSpace(t.TargetGender)) {
		bd.GenderMatch = true
		bd.GenderPoints = w.Gender
	}

	if c.GraduationYear > 0 {
		bd.EstimatedAge = EstimateAge(c.GraduationYear, currentYear)
	}
	switch {
	case t.TargetAgeRange == nil:
		bd.AgeMatch = true
		bd.AgePoints = w.Age
	case c.GraduationYear > 0 && t.TargetAgeRange.Contains(bd.EstimatedAge):
		bd.AgeMatch = true
		bd.AgePoints = w.Age
	}

	return factor(models.FactorDemographics, bd.GenderPoints+bd.AgePoints, w.Gender+w.Age, bd)
}

// EstimateAge approximates an athlete's age from their graduation year.
func EstimateAge(graduationYear, currentYear int) int {
	return currentYear - (graduationYear - 18)
}

// ScoreEngagement scores reach and engagement rate against the target minimums.
// A zero minimum earns the full sub-budget.
func ScoreEngagement(c *models.CandidateProfile, t *models.TargetCriteria, w EngagementWeights) models.FactorScore {
	followers := c.TotalFollowers()
	bd := models.EngagementBreakdown{
		Followers:      followers,
		EngagementRate: c.AvgEngagementRate,
	}

	if t.MinFollowers <= 0 {
		bd.FollowerPoints = w.Followers
	} else {
		ratio := float64(followers) / float64(t.MinFollowers)
		bd.FollowerRatio = round2(ratio)
		bd.FollowerPoints = bandPoints(ratio, w.FollowerBands)
	}

	if t.MinEngagementRate <= 0 {
		bd.EngagementPoints = w.Rate
	} else {
		ratio := c.AvgEngagementRate / t.MinEngagementRate
		bd.EngagementRatio = round2(ratio)
		bd.EngagementPoints = bandPoints(ratio, w.RateBands)
	}

	return factor(models.FactorEngagement, bd.FollowerPoints+bd.EngagementPoints, w.Followers+w.Rate, bd)
}
