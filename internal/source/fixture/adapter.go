// Package fixture provides canned postings for test mode and local runs.
package fixture

import (
	"context"

	"github.com/timmy/jobalerts/internal/domain"
)

var ukJobs = []domain.RawJob{
	{
		Title:    "Warehouse Operative",
		Type:     "Full Time",
		Duration: "Fixed-term",
		Pay:      "From GBP14.30",
		Location: "Coventry, United Kingdom",
		URL:      "https://example.com/job1",
	},
	{
		Title:    "Warehouse Operative",
		Type:     "Full Time",
		Duration: "Fixed-term",
		Pay:      "From GBP14.30",
		Location: "Swansea, Wales",
		URL:      "https://example.com/job2",
	},
	{
		Title:    "Warehouse Operative",
		Type:     "Full Time",
		Duration: "Fixed-term",
		Pay:      "From GBP15.00",
		Location: "London, United Kingdom",
		URL:      "https://example.com/job3",
	},
}

var usJobs = []domain.RawJob{
	{
		Title:    "Warehouse Associate",
		Type:     "Full Time",
		Duration: "Regular",
		Pay:      "From $19.50",
		Location: "Weston, WI",
		URL:      "https://example.com/us-job1",
	},
	{
		Title:    "Warehouse Associate",
		Type:     "Part Time",
		Duration: "Seasonal",
		Pay:      "From $18.75",
		Location: "Charlton, MA",
		URL:      "https://example.com/us-job2",
	},
}

// Adapter returns the same fixed postings on every fetch.
type Adapter struct {
	region string
	jobs   []domain.RawJob
}

// NewAdapter returns the fixture set for region ("uk" or "us").
// Unknown regions get the UK set.
func NewAdapter(region string) *Adapter {
	jobs := ukJobs
	if region == "us" {
		jobs = usJobs
	}
	return &Adapter{region: region, jobs: jobs}
}

// NewAdapterWithJobs returns an adapter serving jobs.
func NewAdapterWithJobs(name string, jobs []domain.RawJob) *Adapter {
	return &Adapter{region: name, jobs: jobs}
}

// Name implements source.Source.
func (a *Adapter) Name() string {
	return "fixture:" + a.region
}

// FetchJobs implements source.Source.
func (a *Adapter) FetchJobs(ctx context.Context) ([]domain.RawJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Source: a.Name(), Err: err}
	}
	out := make([]domain.RawJob, len(a.jobs))
	copy(out, a.jobs)
	return out, nil
}
