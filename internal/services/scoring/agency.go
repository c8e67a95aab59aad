package scoring

import (
	"strings"

	"nil-match-engine/internal/models"
)

// Agency criteria names reported in breakdowns.
const (
	criterionSport         = "sport"
	criterionMinFollowers  = "min_followers"
	criterionMaxFollowers  = "max_followers"
	criterionMinEngagement = "min_engagement_rate"
	criterionArchetype     = "preferred_archetype"
)

// priorityWeight maps priority 1..5 onto 1.0..0.2.
func priorityWeight(priority int) float64 {
	if priority < 1 {
		priority = 1
	}
	if priority > 5 {
		priority = 5
	}
	return float64(6-priority) / 5
}

// ScoreTraitAlignment returns the weighted average of the athlete's trait
// scores over the agency's brand values, in [0,1]. No brand values, or
// brand values whose weights sum to zero, yield neutral.
func ScoreTraitAlignment(values []models.BrandValue, traits []models.AthleteTrait, neutral float64) (float64, models.TraitAlignmentBreakdown) {
	bd := models.TraitAlignmentBreakdown{Contributions: []models.TraitContribution{}}
	if len(values) == 0 {
		bd.Neutral = true
		bd.Alignment = neutral
		return neutral, bd
	}

	scores := make(map[string]float64, len(traits))
	for _, t := range traits {
		scores[t.TraitID] = t.Score
	}

	var weighted, totalWeight float64
	for _, v := range values {
		weight := priorityWeight(v.Priority) * v.ImportanceWeight
		score := clamp(scores[v.TraitID], 0, 100)
		contribution := score / 100 * weight
		weighted += contribution
		totalWeight += weight
		bd.Contributions = append(bd.Contributions, models.TraitContribution{
			TraitID:        v.TraitID,
			AthleteScore:   score,
			CombinedWeight: round2(weight),
			Weighted:       round2(contribution),
		})
	}

	if totalWeight <= 0 {
		bd.Neutral = true
		bd.Alignment = neutral
		return neutral, bd
	}

	alignment := clamp(weighted/totalWeight, 0, 1)
	bd.Alignment = round2(alignment)
	return alignment, bd
}

// ScoreCriteriaMatch returns the share of declared agency criteria the
// athlete passes, in [0,1]. No declared criteria yield neutral.
func ScoreCriteriaMatch(c *models.CandidateProfile, criteria *models.AgencyCriteria, neutral float64) (float64, models.CriteriaMatchBreakdown) {
	bd := models.CriteriaMatchBreakdown{Checks: []models.CriterionCheck{}}
	followers := c.TotalFollowers()

	check := func(name string, passed bool) {
		bd.Checks = append(bd.Checks, models.CriterionCheck{Criterion: name, Passed: passed})
	}

	if sports := normalizedSet(criteria.Sports); len(sports) > 0 {
		passed := false
		for _, s := range sports {
			if c.PlaysSport(s) {
				passed = true
				break
			}
		}
		check(criterionSport, passed)
	}
	if criteria.MinFollowers > 0 {
		check(criterionMinFollowers, followers >= criteria.MinFollowers)
	}
	if criteria.MaxFollowers > 0 {
		check(criterionMaxFollowers, followers <= criteria.MaxFollowers)
	}
	if criteria.MinEngagementRate > 0 {
		check(criterionMinEngagement, c.AvgEngagementRate >= criteria.MinEngagementRate)
	}
	if archetype := strings.TrimSpace(criteria.PreferredArchetype); archetype != "" {
		check(criterionArchetype, strings.EqualFold(strings.TrimSpace(c.Archetype), archetype))
	}

	if len(bd.Checks) == 0 {
		bd.Neutral = true
		bd.Ratio = neutral
		return neutral, bd
	}

	passed := 0
	for _, ch := range bd.Checks {
		if ch.Passed {
			passed++
		}
	}
	ratio := float64(passed) / float64(len(bd.Checks))
	bd.Ratio = round2(ratio)
	return ratio, bd
}
