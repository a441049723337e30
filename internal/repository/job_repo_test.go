package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/jobalerts/internal/domain"
)

func warehouseJob(location, url string) domain.RawJob {
	return domain.RawJob{
		Title:    "Warehouse Operative",
		Type:     "Full Time",
		Duration: "Fixed-term",
		Pay:      "From GBP14.30",
		Location: location,
		URL:      url,
	}
}

func TestInsertBatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	job := warehouseJob("Coventry, United Kingdom", "https://example.com/job1")

	first, err := repo.InsertBatch(ctx, []domain.RawJob{job})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.NotZero(t, first[0].ID)

	second, err := repo.InsertBatch(ctx, []domain.RawJob{job})
	require.NoError(t, err)
	assert.Empty(t, second)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInsertBatchIgnoresNonIdentityFields(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	a := warehouseJob("Swansea, Wales", "https://example.com/job2")
	b := a
	b.Pay = "From GBP15.00"

	inserted, err := repo.InsertBatch(ctx, []domain.RawJob{a, b})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, "From GBP14.30", inserted[0].PayValue())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInsertBatchIdentityIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	inserted, err := repo.InsertBatch(ctx, []domain.RawJob{
		warehouseJob("London, United Kingdom", "https://example.com/job3"),
		warehouseJob("london, united kingdom", "https://example.com/job3"),
		warehouseJob("London, United Kingdom", "https://example.com/job4"),
	})
	require.NoError(t, err)
	assert.Len(t, inserted, 3)
}

func TestInsertBatchKeepsFirstSeenAt(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return t0 }
	_, err := repo.InsertBatch(ctx, []domain.RawJob{warehouseJob("Leeds", "u1")})
	require.NoError(t, err)

	repo.now = func() time.Time { return t0.Add(time.Hour) }
	_, err = repo.InsertBatch(ctx, []domain.RawJob{warehouseJob("Leeds", "u1")})
	require.NoError(t, err)

	jobs, err := repo.ListAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].FirstSeenAt.Equal(t0), "first_seen_at changed to %v", jobs[0].FirstSeenAt)
}

func TestInsertBatchRejectsMissingIdentity(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))

	_, err := repo.InsertBatch(context.Background(), []domain.RawJob{{Title: "No URL", Location: "Leeds"}})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestListAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, loc := range []string{"Leeds", "Hull", "Bristol"} {
		at := base.Add(time.Duration(i) * time.Minute)
		repo.now = func() time.Time { return at }
		_, err := repo.InsertBatch(ctx, []domain.RawJob{warehouseJob(loc, "u-"+loc)})
		require.NoError(t, err)
	}

	jobs, err := repo.ListAll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Bristol", jobs[0].Location)
	assert.Equal(t, "Hull", jobs[1].Location)
}

func TestResetAndStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewJobRepository(db)

	inserted, err := repo.InsertBatch(ctx, []domain.RawJob{
		warehouseJob("Leeds", "u1"),
		warehouseJob("Leeds", "u2"),
		warehouseJob("Hull", "u3"),
	})
	require.NoError(t, err)

	locs, err := repo.CountLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), locs)

	ledger := NewDeliveryRepository(db)
	_, err = ledger.Reserve(ctx, 1, 1, []uint{inserted[0].ID})
	require.NoError(t, err)

	removed, err := repo.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	history, err := ledger.HistoryForOwner(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
