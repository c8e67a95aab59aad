// Package models defines the data structures for the NIL match engine.
package models

import (
	"errors"
	"strings"
)

// Common errors
var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyCandidateID = errors.New("candidate id cannot be empty")
	ErrInvalidFMVRange  = errors.New("fmv_low must be between 0 and fmv_high")
	ErrNegativeCount    = errors.New("follower counts and engagement rate cannot be negative")
	ErrInvalidTarget    = errors.New("invalid target criteria")
	ErrInvalidPriority  = errors.New("brand value priority must be between 1 and 5 with a non-negative weight")
	ErrInvalidMode      = errors.New("mode must be campaign or agency")
	ErrInvalidSortKey   = errors.New("sort key must be match_score, followers, engagement or fmv")
	ErrInvalidSortOrder = errors.New("sort order must be asc or desc")
	ErrInvalidPage      = errors.New("page must be >= 1 and limit between 1 and 100")
	ErrEmptyTargetID    = errors.New("target id cannot be empty")
)

// IsValidationError reports whether err is one of the input validation sentinels.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyCandidateID, ErrInvalidFMVRange, ErrNegativeCount, ErrInvalidTarget,
		ErrInvalidPriority, ErrInvalidMode, ErrInvalidSortKey, ErrInvalidSortOrder,
		ErrInvalidPage, ErrEmptyTargetID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NormalizeTerm lowercases and trims a free-text term for comparisons.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// NormalizeSchoolLevel maps common spellings onto a SchoolLevel.
func NormalizeSchoolLevel(level string) SchoolLevel {
	normalized := NormalizeTerm(level)
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	levelMap := map[string]SchoolLevel{
		"high_school":    SchoolLevelHighSchool,
		"highschool":     SchoolLevelHighSchool,
		"hs":             SchoolLevelHighSchool,
		"d1":             SchoolLevelD1,
		"ncaa_d1":        SchoolLevelD1,
		"division_1":     SchoolLevelD1,
		"division_i":     SchoolLevelD1,
		"d2":             SchoolLevelD2,
		"ncaa_d2":        SchoolLevelD2,
		"division_2":     SchoolLevelD2,
		"division_ii":    SchoolLevelD2,
		"d3":             SchoolLevelD3,
		"ncaa_d3":        SchoolLevelD3,
		"division_3":     SchoolLevelD3,
		"division_iii":   SchoolLevelD3,
		"naia":           SchoolLevelNAIA,
		"juco":           SchoolLevelJUCO,
		"junior_college": SchoolLevelJUCO,
	}

	if mapped, ok := levelMap[normalized]; ok {
		return mapped
	}
	return SchoolLevel(normalized)
}
