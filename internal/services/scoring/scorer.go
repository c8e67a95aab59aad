package scoring

import (
	"time"

	"nil-match-engine/internal/models"
)

// DefaultBudgetDivisor splits a campaign total budget into a per-athlete
// budget when none is set. It is a placeholder heuristic.
const DefaultBudgetDivisor = 5

// Scorer computes match results from snapshots. It holds no mutable state
// and is safe for concurrent use.
type Scorer struct {
	weights       Weights
	budgetDivisor int64
	now           func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithBudgetDivisor sets the total-budget divisor.
func WithBudgetDivisor(divisor int64) Option {
	return func(s *Scorer) {
		if divisor > 0 {
			s.budgetDivisor = divisor
		}
	}
}

// WithClock sets the clock used for age estimation.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScorer creates a scorer with the given weights table.
func NewScorer(weights Weights, opts ...Option) *Scorer {
	s := &Scorer{
		weights:       weights,
		budgetDivisor: DefaultBudgetDivisor,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns the scorer's weights table.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// ScoreCampaign scores a candidate against a campaign target.
func (s *Scorer) ScoreCampaign(c *models.CandidateProfile, t *models.TargetCriteria) *models.MatchResult {
	w := s.weights
	budget := t.EffectiveBudget(s.budgetDivisor)

	factors := models.Factors{
		ScoreBrandValues(c, t, w.BrandValues),
		ScoreInterests(c, t, w.Interests),
		ScoreCampaignFit(c, t, w.CampaignFit),
		ScoreBudget(c, budget, w.Budget),
		ScoreGeography(c, t, w.Geography),
		ScoreDemographics(c, t, w.Demographics, s.now().Year()),
		ScoreEngagement(c, t, w.Engagement),
	}

	total := AggregateCampaign(factors)
	return s.result(c, total, factors, budget)
}

// ScoreAgency scores a candidate against an agency's brand values and criteria.
func (s *Scorer) ScoreAgency(c *models.CandidateProfile, a *models.AgencyTarget, traits []models.AthleteTrait) *models.MatchResult {
	w := s.weights.Agency

	trait, traitBD := ScoreTraitAlignment(a.BrandValues, traits, w.Neutral)
	criteria, criteriaBD := ScoreCriteriaMatch(c, &a.Criteria, w.Neutral)

	factors := models.Factors{
		factor(models.FactorTraitAlignment, trait*w.Trait*100, w.Trait*100, traitBD),
		factor(models.FactorCriteriaMatch, criteria*w.Criteria*100, w.Criteria*100, criteriaBD),
	}

	total := AggregateAgency(trait, criteria, w)
	return s.result(c, total, factors, 0)
}

func (s *Scorer) result(c *models.CandidateProfile, total int, factors models.Factors, budgetCeiling int64) *models.MatchResult {
	strengths, concerns := GenerateInsights(factors)
	return &models.MatchResult{
		Total:            total,
		Confidence:       ConfidenceFor(total),
		Factors:          factors,
		RecommendedOffer: RecommendOffer(c.FMVLow, c.FMVHigh, total, budgetCeiling),
		Strengths:        strengths,
		Concerns:         concerns,
	}
}
