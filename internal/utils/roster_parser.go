package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nil-match-engine/internal/models"
)

// Roster parser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
)

// RequiredColumns defines the columns that must be present in a roster.
var RequiredColumns = []string{
	"athlete_id",
	"name",
	"primary_sport",
}

// ColumnAliases maps alternative column names to standard names.
var ColumnAliases = map[string]string{
	// athlete_id aliases
	"id":         "athlete_id",
	"athleteid":  "athlete_id",
	"athlete id": "athlete_id",

	// name aliases
	"full_name":    "name",
	"fullname":     "name",
	"athlete_name": "name",
	"athlete name": "name",

	// sport aliases
	"sport":         "primary_sport",
	"primarysport":  "primary_sport",
	"primary sport": "primary_sport",
	"other_sports":  "secondary_sports",
	"secondary":     "secondary_sports",

	// school aliases
	"school":   "school_name",
	"college":  "school_name",
	"level":    "school_level",
	"division": "school_level",

	// graduation aliases
	"grad_year":  "graduation_year",
	"gradyear":   "graduation_year",
	"class_year": "graduation_year",
	"class":      "graduation_year",

	// audience aliases
	"instagram":           "instagram_followers",
	"tiktok":              "tiktok_followers",
	"twitter":             "twitter_followers",
	"x_followers":         "twitter_followers",
	"youtube":             "youtube_followers",
	"youtube_subscribers": "youtube_followers",
	"engagement":          "engagement_rate",
	"avg_engagement_rate": "engagement_rate",

	// interest aliases
	"brands":    "brand_affinity",
	"interests": "lifestyle_interests",
	"lifestyle": "lifestyle_interests",
	"content":   "content_interests",
}

// followerColumns maps per-platform follower columns to their platform.
var followerColumns = map[string]models.Platform{
	"instagram_followers": models.PlatformInstagram,
	"tiktok_followers":    models.PlatformTikTok,
	"twitter_followers":   models.PlatformTwitter,
	"youtube_followers":   models.PlatformYouTube,
}

// RosterParser parses athlete roster CSV files. List columns such as
// causes or hobbies separate items with "|" or ";". Money columns are in
// cents.
type RosterParser struct {
	columnMapping map[string]int
}

// NewRosterParser creates a new roster parser instance.
func NewRosterParser() *RosterParser {
	return &RosterParser{columnMapping: make(map[string]int)}
}

// ParseAthletes parses CSV content into candidate profiles. Rows that fail
// to parse or validate are reported by line and skipped.
func (p *RosterParser) ParseAthletes(content string) ([]*models.CandidateProfile, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}
	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	var athletes []*models.CandidateProfile
	var parseErrors []error
	lineNum := 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		athlete, err := p.parseRow(record)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}
		if err := models.ValidateCandidate(athlete); err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		athletes = append(athletes, athlete)
	}

	if len(athletes) == 0 && len(parseErrors) > 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return athletes, parseErrors
}

// buildColumnMapping creates a mapping of standard column names to their indices.
func (p *RosterParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)

	for i, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(col))
		if alias, ok := ColumnAliases[normalized]; ok {
			normalized = alias
		}
		p.columnMapping[normalized] = i
	}

	var missing []string
	for _, required := range RequiredColumns {
		if _, ok := p.columnMapping[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// parseRow parses a single CSV row into a candidate profile.
func (p *RosterParser) parseRow(record []string) (*models.CandidateProfile, error) {
	value := func(column string) string {
		idx, ok := p.columnMapping[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	c := &models.CandidateProfile{
		ID:                 value("athlete_id"),
		Name:               value("name"),
		SchoolName:         value("school_name"),
		PrimarySport:       value("primary_sport"),
		SecondarySports:    splitList(value("secondary_sports")),
		SchoolLevel:        models.NormalizeSchoolLevel(value("school_level")),
		State:              value("state"),
		City:               value("city"),
		Gender:             value("gender"),
		Followers:          make(map[models.Platform]int64),
		Archetype:          value("archetype"),
		BrandAffinity:      splitList(value("brand_affinity")),
		Causes:             splitList(value("causes")),
		Hobbies:            splitList(value("hobbies")),
		LifestyleInterests: splitList(value("lifestyle_interests")),
		ContentInterests:   splitList(value("content_interests")),
	}
	if c.ID == "" {
		return nil, models.ErrEmptyCandidateID
	}

	var err error
	if c.GraduationYear, err = parseOptionalInt(value("graduation_year")); err != nil {
		return nil, fmt.Errorf("invalid graduation_year: %w", err)
	}

	for column, platform := range followerColumns {
		n, err := parseOptionalInt64(value(column))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", column, err)
		}
		if n != 0 {
			c.Followers[platform] = n
		}
	}

	if raw := value("engagement_rate"); raw != "" {
		rate, err := parseFloat(strings.TrimSuffix(raw, "%"))
		if err != nil {
			return nil, fmt.Errorf("invalid engagement_rate: %w", err)
		}
		c.AvgEngagementRate = rate
	}

	if c.FMVLow, err = parseOptionalInt64(value("fmv_low")); err != nil {
		return nil, fmt.Errorf("invalid fmv_low: %w", err)
	}
	if c.FMVHigh, err = parseOptionalInt64(value("fmv_high")); err != nil {
		return nil, fmt.Errorf("invalid fmv_high: %w", err)
	}
	if c.FMVHigh == 0 {
		c.FMVHigh = c.FMVLow
	}

	return c, nil
}

// splitList splits a "|" or ";" separated cell, dropping blanks.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseFloat parses a string to float64, handling common formats.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)

	return strconv.ParseFloat(s, 64)
}

// parseOptionalInt64 parses an integer cell. Blank cells are zero and
// float strings such as "1200.0" are truncated.
func parseOptionalInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func parseOptionalInt(s string) (int, error) {
	n, err := parseOptionalInt64(s)
	return int(n), err
}
