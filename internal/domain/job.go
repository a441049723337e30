package domain

import (
	"strings"
	"time"
)

// Job is a posting observed by a scrape cycle.
// Identity is the (title, location, url) triple, compared exactly as scraped.
type Job struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"type:text;not null;uniqueIndex:idx_jobs_identity,priority:1" json:"title"`
	EmploymentType *string   `gorm:"type:text" json:"type,omitempty"`
	Duration       *string   `gorm:"type:text" json:"duration,omitempty"`
	Pay            *string   `gorm:"type:text" json:"pay,omitempty"`
	Location       string    `gorm:"type:text;not null;uniqueIndex:idx_jobs_identity,priority:2" json:"location"`
	URL            string    `gorm:"type:text;not null;uniqueIndex:idx_jobs_identity,priority:3" json:"url"`
	FirstSeenAt    time.Time `gorm:"not null;index" json:"first_seen_at"`
}

// TableName returns the database table name for Job.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Job) TableName() string {
	return "jobs"
}

// Key returns the in-cycle dedup key of a stored job.
func (j Job) Key() string {
	return strings.Join([]string{uintToString(j.ID), j.Title, j.Location, j.URL}, "|")
}

// TypeValue returns the employment type or an empty string.
func (j Job) TypeValue() string { return deref(j.EmploymentType) }

// DurationValue returns the contract duration or an empty string.
func (j Job) DurationValue() string { return deref(j.Duration) }

// PayValue returns the pay text or an empty string.
func (j Job) PayValue() string { return deref(j.Pay) }

// RawJob is a posting as produced by a source, before identity normalization.
type RawJob struct {
	Title    string `json:"title"`
	Type     string `json:"type,omitempty"`
	Duration string `json:"duration,omitempty"`
	Pay      string `json:"pay,omitempty"`
	Location string `json:"location"`
	URL      string `json:"url,omitempty"`
}

// Normalize trims every field and substitutes fallbackURL for a missing URL.
// Parameters:
//   - fallbackURL: stable URL used when the source did not provide one.
// Returns:
//   - RawJob: normalized copy.
func (r RawJob) Normalize(fallbackURL string) RawJob {
	out := RawJob{
		Title:    strings.TrimSpace(r.Title),
		Type:     strings.TrimSpace(r.Type),
		Duration: strings.TrimSpace(r.Duration),
		Pay:      strings.TrimSpace(r.Pay),
		Location: strings.TrimSpace(r.Location),
		URL:      strings.TrimSpace(r.URL),
	}
	if out.URL == "" {
		out.URL = fallbackURL
	}
	return out
}

// Validate rejects jobs that cannot form an identity key.
func (r RawJob) Validate() error {
	if r.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if r.URL == "" {
		return &ValidationError{Field: "url", Reason: "must not be empty after normalization"}
	}
	return nil
}

// ToJob converts a normalized RawJob into a storable Job stamped with seenAt.
func (r RawJob) ToJob(seenAt time.Time) Job {
	return Job{
		Title:          r.Title,
		EmploymentType: optional(r.Type),
		Duration:       optional(r.Duration),
		Pay:            optional(r.Pay),
		Location:       r.Location,
		URL:            r.URL,
		FirstSeenAt:    seenAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
