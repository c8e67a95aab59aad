// Package models defines the data structures for the NIL match engine.
package models

import (
	"strings"
)

// SchoolLevel represents the competitive level an athlete plays at.
type SchoolLevel string

const (
	SchoolLevelHighSchool SchoolLevel = "high_school"
	SchoolLevelD1         SchoolLevel = "d1"
	SchoolLevelD2         SchoolLevel = "d2"
	SchoolLevelD3         SchoolLevel = "d3"
	SchoolLevelNAIA       SchoolLevel = "naia"
	SchoolLevelJUCO       SchoolLevel = "juco"
)

// Platform identifies a social network for follower counts.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
)

// CandidateProfile is the scoring snapshot of an athlete.
// Monetary fields are in minor units (cents).
type CandidateProfile struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	SchoolName         string             `json:"school_name"`
	PrimarySport       string             `json:"primary_sport"`
	SecondarySports    []string           `json:"secondary_sports"`
	SchoolLevel        SchoolLevel        `json:"school_level"`
	State              string             `json:"state"`
	City               string             `json:"city"`
	Gender             string             `json:"gender"`
	GraduationYear     int                `json:"graduation_year"`
	Followers          map[Platform]int64 `json:"followers"`
	AvgEngagementRate  float64            `json:"avg_engagement_rate"`
	FMVLow             int64              `json:"fmv_low"`
	FMVHigh            int64              `json:"fmv_high"`
	BrandAffinity      []string           `json:"brand_affinity"`
	Causes             []string           `json:"causes"`
	Hobbies            []string           `json:"hobbies"`
	LifestyleInterests []string           `json:"lifestyle_interests"`
	ContentInterests   []string           `json:"content_interests"`
	Archetype          string             `json:"archetype,omitempty"`
}

// TotalFollowers sums follower counts across all platforms.
func (c *CandidateProfile) TotalFollowers() int64 {
	var total int64
	for _, n := range c.Followers {
		total += n
	}
	return total
}

// FMVMid returns the midpoint of the fair-market-value band.
func (c *CandidateProfile) FMVMid() float64 {
	return float64(c.FMVLow+c.FMVHigh) / 2
}

// PlaysSport reports whether the athlete's primary or a secondary sport equals sport.
func (c *CandidateProfile) PlaysSport(sport string) bool {
	if strings.EqualFold(c.PrimarySport, sport) {
		return true
	}
	for _, s := range c.SecondarySports {
		if strings.EqualFold(s, sport) {
			return true
		}
	}
	return false
}

// ValidateCandidate checks the invariants of a candidate snapshot.
func ValidateCandidate(c *CandidateProfile) error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyCandidateID
	}
	if c.FMVLow < 0 || c.FMVHigh < 0 || c.FMVLow > c.FMVHigh {
		return ErrInvalidFMVRange
	}
	if c.AvgEngagementRate < 0 {
		return ErrNegativeCount
	}
	for _, n := range c.Followers {
		if n < 0 {
			return ErrNegativeCount
		}
	}
	return nil
}
