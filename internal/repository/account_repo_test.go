package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/jobalerts/internal/domain"
)

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts := NewAccountRepository(db)
	subs := NewSubscriptionRepository(db)

	acc, created, err := accounts.GetOrCreate(ctx, "  Alice@Example.com ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice@example.com", acc.Email)

	again, created, err := accounts.GetOrCreate(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, acc.ID, again.ID)

	older := &domain.Subscription{OwnerID: acc.ID, Email: acc.Email, PreferredLocation: "Leeds", JobType: "Any", Active: true}
	newer := &domain.Subscription{OwnerID: acc.ID, Email: acc.Email, PreferredLocation: "Hull", JobType: "Any", Active: true}
	require.NoError(t, subs.Create(ctx, older))
	require.NoError(t, subs.Create(ctx, newer))

	require.NoError(t, accounts.Deactivate(ctx, acc.ID))
	active, err := subs.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	reactivated, err := accounts.Reactivate(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, reactivated)
	assert.True(t, reactivated.NeedsPrefUpdate)

	active, err = subs.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1, "only one subscription comes back")
	assert.True(t, active[0].NeedsPrefUpdate)
}

func TestAccountDeleteData(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts := NewAccountRepository(db)
	subs := NewSubscriptionRepository(db)
	jobs := NewJobRepository(db)
	ledger := NewDeliveryRepository(db)

	acc, _, err := accounts.GetOrCreate(ctx, "bob@example.com")
	require.NoError(t, err)
	sub := &domain.Subscription{OwnerID: acc.ID, Email: acc.Email, PreferredLocation: "Any", JobType: "Any", Active: true}
	require.NoError(t, subs.Create(ctx, sub))
	ids := seedJobs(t, jobs, 1)
	_, err = ledger.Reserve(ctx, acc.ID, sub.ID, ids)
	require.NoError(t, err)

	require.NoError(t, accounts.DeleteData(ctx, acc.ID))

	_, err = accounts.GetByID(ctx, acc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = subs.GetByID(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	history, err := ledger.HistoryForOwner(ctx, acc.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, accounts.DeleteData(ctx, acc.ID), domain.ErrNotFound)
}

func TestAccountGetByIDForEmail(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountRepository(newTestDB(t))

	acc, _, err := accounts.GetOrCreate(ctx, "carol@example.com")
	require.NoError(t, err)

	got, err := accounts.GetByIDForEmail(ctx, acc.ID, " Carol@Example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	_, err = accounts.GetByIDForEmail(ctx, acc.ID, "mallory@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = accounts.GetByIDForEmail(ctx, acc.ID+1, "carol@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
