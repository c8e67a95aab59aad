// Package models defines the data structures for the NIL match engine.
package models

import (
	"time"
)

// InteractionStatus represents where an agency/athlete relationship stands.
// The engine never changes it.
type InteractionStatus string

const (
	InteractionSuggested InteractionStatus = "suggested"
	InteractionViewed    InteractionStatus = "viewed"
	InteractionSaved     InteractionStatus = "saved"
	InteractionContacted InteractionStatus = "contacted"
)

// Interaction is a stored agency/athlete pairing carrying a cached match score.
type Interaction struct {
	ID               string            `json:"id" db:"id"`
	AgencyID         string            `json:"agency_id" db:"agency_id"`
	AthleteID        string            `json:"athlete_id" db:"athlete_id"`
	Status           InteractionStatus `json:"status" db:"status"`
	MatchScore       *int              `json:"match_score,omitempty" db:"match_score"`
	ScoreRefreshedAt *time.Time        `json:"score_refreshed_at,omitempty" db:"score_refreshed_at"`
}

// RefreshReport summarizes one run of the score refresh job.
type RefreshReport struct {
	RunID        string    `json:"run_id"`
	AgencyID     string    `json:"agency_id"`
	UpdatedCount int       `json:"updated_count"`
	FailedCount  int       `json:"failed_count"`
	SkippedCount int       `json:"skipped_count"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
}
