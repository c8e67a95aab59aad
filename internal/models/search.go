// Package models defines the data structures for the NIL match engine.
package models

import (
	"math"
	"strings"
)

// Paging limits for search.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// SortKey selects the ranking key of a search.
type SortKey string

const (
	SortByMatchScore SortKey = "match_score"
	SortByFollowers  SortKey = "followers"
	SortByEngagement SortKey = "engagement"
	SortByFMV        SortKey = "fmv"
)

// SortOrder is the direction of a search sort.
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// CandidateFilter holds the hard filters of a search. Filters never
// affect scores, they only shrink the candidate set.
type CandidateFilter struct {
	Sports            []string `json:"sports,omitempty"`
	MinFollowers      int64    `json:"min_followers,omitempty"`
	MinEngagementRate float64  `json:"min_engagement_rate,omitempty"`
	GraduationYears   []int    `json:"graduation_years,omitempty"`
	Query             string   `json:"query,omitempty"`
}

// Matches reports whether the candidate passes every filter.
func (f *CandidateFilter) Matches(c *CandidateProfile) bool {
	if len(f.Sports) > 0 {
		found := false
		for _, s := range f.Sports {
			if c.PlaysSport(s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinFollowers > 0 && c.TotalFollowers() < f.MinFollowers {
		return false
	}
	if f.MinEngagementRate > 0 && c.AvgEngagementRate < f.MinEngagementRate {
		return false
	}
	if len(f.GraduationYears) > 0 {
		found := false
		for _, y := range f.GraduationYears {
			if c.GraduationYear == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q := NormalizeTerm(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(strings.ToLower(c.SchoolName), q) {
			return false
		}
	}
	return true
}

// SortSpec is the requested ordering.
type SortSpec struct {
	Key   SortKey   `json:"key"`
	Order SortOrder `json:"order"`
}

// PageRequest is a 1-based page with a page size.
type PageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset returns the index of the first result on the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// SearchRequest is the input of a ranked candidate search.
type SearchRequest struct {
	Mode     MatchMode       `json:"mode"`
	TargetID string          `json:"target_id"`
	Filters  CandidateFilter `json:"filters"`
	Sort     SortSpec        `json:"sort"`
	Page     PageRequest     `json:"page"`
}

// ApplyDefaults fills in unset mode, sort and paging fields.
func (r *SearchRequest) ApplyDefaults() {
	if r.Mode == "" {
		r.Mode = ModeCampaign
	}
	if r.Sort.Key == "" {
		r.Sort.Key = SortByMatchScore
	}
	if r.Sort.Order == "" {
		r.Sort.Order = SortDesc
	}
	if r.Page.Page == 0 {
		r.Page.Page = 1
	}
	if r.Page.Limit == 0 {
		r.Page.Limit = DefaultPageLimit
	}
}

// ValidateSearchRequest validates a search request after defaults are applied.
func ValidateSearchRequest(r *SearchRequest) error {
	if !r.Mode.IsValid() {
		return ErrInvalidMode
	}
	if strings.TrimSpace(r.TargetID) == "" {
		return ErrEmptyTargetID
	}
	switch r.Sort.Key {
	case SortByMatchScore, SortByFollowers, SortByEngagement, SortByFMV:
	default:
		return ErrInvalidSortKey
	}
	if r.Sort.Order != SortAsc && r.Sort.Order != SortDesc {
		return ErrInvalidSortOrder
	}
	if r.Page.Page < 1 || r.Page.Limit < 1 || r.Page.Limit > MaxPageLimit {
		return ErrInvalidPage
	}
	// Page*Limit must not overflow.
	if r.Page.Page > math.MaxInt/r.Page.Limit {
		return ErrInvalidPage
	}
	if r.Filters.MinFollowers < 0 || r.Filters.MinEngagementRate < 0 {
		return ErrNegativeCount
	}
	return nil
}

// RankedCandidate is one entry of a search result page.
type RankedCandidate struct {
	CandidateID string       `json:"candidate_id"`
	MatchResult *MatchResult `json:"match_result"`
}

// SearchResponse is a page of ranked candidates.
type SearchResponse struct {
	Results []RankedCandidate `json:"results"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	HasMore bool              `json:"has_more"`
	Partial bool              `json:"partial"`
}
