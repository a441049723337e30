package source

import (
	"context"
	"errors"
	"strings"

	"github.com/timmy/jobalerts/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Multi fetches several sources concurrently and concatenates their results
// in source order. Any failing source fails the whole fetch.
type Multi struct {
	sources []Source
}

// NewMulti combines sources into one.
func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

// Name implements Source.
func (m *Multi) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, s := range m.sources {
		names = append(names, s.Name())
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// FetchJobs implements Source.
func (m *Multi) FetchJobs(ctx context.Context) ([]domain.RawJob, error) {
	results := make([][]domain.RawJob, len(m.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		g.Go(func() error {
			jobs, err := src.FetchJobs(gctx)
			if err != nil {
				return err
			}
			results[i] = jobs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var fe *domain.FetchError
		if asFetchError(err, &fe) {
			return nil, fe
		}
		return nil, &domain.FetchError{Source: m.Name(), Err: err}
	}

	var all []domain.RawJob
	for _, jobs := range results {
		all = append(all, jobs...)
	}
	return all, nil
}

func asFetchError(err error, target **domain.FetchError) bool {
	return errors.As(err, target)
}
