package source

import (
	"context"

	"github.com/timmy/jobalerts/internal/domain"
)

// Source produces the job postings currently listed by one site.
type Source interface {
	// Name returns a stable identifier used in logs and cache keys.
	// Parameters: none.
	// Returns:
	//   - string: source name.
	Name() string

	// FetchJobs returns every posting currently listed.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	// Returns:
	//   - []domain.RawJob: postings as scraped; URL may be empty.
	//   - error: *domain.FetchError if the site could not be read.
	FetchJobs(ctx context.Context) ([]domain.RawJob, error)
}

// DedupeByTitleLocation drops repeated (title, location) pairs, keeping the first.
func DedupeByTitleLocation(jobs []domain.RawJob) []domain.RawJob {
	type key struct{ title, location string }
	seen := make(map[key]struct{}, len(jobs))
	out := make([]domain.RawJob, 0, len(jobs))
	for _, j := range jobs {
		k := key{j.Title, j.Location}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, j)
	}
	return out
}
