package service

import (
	"context"

	"github.com/timmy/jobalerts/internal/domain"
)

// JobCounter counts stored jobs.
type JobCounter interface {
	Count(ctx context.Context) (int64, error)
	CountLocations(ctx context.Context) (int64, error)
}

// SubscriptionCounter counts active subscriptions.
type SubscriptionCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// DeliveryCounter counts ledger rows by status.
type DeliveryCounter interface {
	CountByStatus(ctx context.Context) (map[domain.DeliveryStatus]int64, error)
}

// StatsService reports headline counters for the dashboard.
type StatsService struct {
	jobs       JobCounter
	subs       SubscriptionCounter
	deliveries DeliveryCounter
}

// NewStatsService creates a new stats service.
func NewStatsService(jobs JobCounter, subs SubscriptionCounter, deliveries DeliveryCounter) *StatsService {
	return &StatsService{jobs: jobs, subs: subs, deliveries: deliveries}
}

// Stats returns job, location and active subscription counts plus ledger
// totals by status.
func (s *StatsService) Stats(ctx context.Context) (*domain.Stats, error) {
	jobs, err := s.jobs.Count(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := s.jobs.CountLocations(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.subs.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	out := &domain.Stats{
		Jobs:                jobs,
		ActiveSubscriptions: active,
		Locations:           locations,
	}
	if s.deliveries != nil {
		byStatus, err := s.deliveries.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		out.Deliveries = byStatus
	}
	return out, nil
}
