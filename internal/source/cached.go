package source

import (
	"context"

	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/logger"
	"golang.org/x/sync/singleflight"
)

// JobCache stores a source's last result for a short time.
type JobCache interface {
	Get(ctx context.Context, source, scope string) ([]domain.RawJob, bool)
	Set(ctx context.Context, source, scope string, jobs []domain.RawJob) error
}

// Cached serves a recent result from cache instead of hitting the site again.
// Concurrent misses for the same scope share one upstream fetch.
type Cached struct {
	src    Source
	cache  JobCache
	scope  string
	flight singleflight.Group
}

// NewCached wraps src; scope separates regions sharing one cache.
func NewCached(src Source, cache JobCache, scope string) *Cached {
	return &Cached{src: src, cache: cache, scope: scope}
}

// Name implements Source.
func (c *Cached) Name() string {
	return c.src.Name()
}

// FetchJobs implements Source.
func (c *Cached) FetchJobs(ctx context.Context) ([]domain.RawJob, error) {
	if jobs, ok := c.cache.Get(ctx, c.src.Name(), c.scope); ok {
		logger.CtxDebug(ctx, "Serving %d cached jobs for %s", len(jobs), c.src.Name())
		return jobs, nil
	}

	v, err, _ := c.flight.Do(c.scope, func() (interface{}, error) {
		jobs, err := c.src.FetchJobs(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, c.src.Name(), c.scope, jobs); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to cache fetched jobs")
		}
		return jobs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.RawJob), nil
}
