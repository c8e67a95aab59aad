package scoring

import (
	"math"
	"strings"

	"nil-match-engine/internal/models"
)

// halfCredit is the share of a sub-budget awarded when a list
// requirement is empty.
const halfCredit = 0.5

// neutralIfEmpty returns neutral when the target declares no requirement,
// otherwise the result of scoreFn over the requirement.
func neutralIfEmpty[T any](requirement []T, neutral float64, scoreFn func([]T) float64) float64 {
	if len(requirement) == 0 {
		return neutral
	}
	return scoreFn(requirement)
}

// normalizedSet lowercases, trims and dedupes terms, dropping blanks.
// Order of first appearance is kept.
func normalizedSet(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		n := models.NormalizeTerm(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// matchExact returns the required terms present in have, case-insensitively.
func matchExact(have, required []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range normalizedSet(have) {
		set[h] = struct{}{}
	}
	matched := []string{}
	for _, r := range required {
		if _, ok := set[r]; ok {
			matched = append(matched, r)
		}
	}
	return matched
}

// matchSubstring returns the required terms that contain, or are contained
// in, one of the terms in have.
func matchSubstring(have, required []string) []string {
	haveSet := normalizedSet(have)
	matched := []string{}
	for _, r := range required {
		for _, h := range haveSet {
			if strings.Contains(h, r) || strings.Contains(r, h) {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}

// shareOf returns points scaled by matched/required, capped at points.
func shareOf(points float64, matched, required int) float64 {
	if required == 0 {
		return points * halfCredit
	}
	ratio := float64(matched) / float64(required)
	if ratio > 1 {
		ratio = 1
	}
	return points * ratio
}

// bandPoints returns the points of the first band whose floor ratio is met.
func bandPoints(ratio float64, bands []BandStep) float64 {
	for _, b := range bands {
		if ratio >= b.MinRatio {
			return b.Points
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// factor builds a bounded FactorScore.
func factor(name models.FactorName, points, maxPoints float64, breakdown models.FactorBreakdown) models.FactorScore {
	points = clamp(points, 0, maxPoints)
	return models.FactorScore{
		Name:      name,
		Points:    points,
		MaxPoints: maxPoints,
		Score:     int(math.Round(points)),
		Max:       int(math.Round(maxPoints)),
		Breakdown: breakdown,
	}
}

// round2 rounds to two decimals for breakdown display.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
