package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overrideFixture() (*memStore, *Service) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	store.addPermission("expedientes:read", false)
	store.addUser(1)
	return store, newTestService(store)
}

func TestAddOverrideValidation(t *testing.T) {
	_, svc := overrideFixture()
	ctx := context.Background()

	_, err := svc.AddOverride(ctx, 99, "consultas:read", EffectAllow, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.AddOverride(ctx, 1, "consultas:read", "MAYBE", nil)
	assert.ErrorIs(t, err, ErrInvalidEffect)

	_, err = svc.AddOverride(ctx, 1, "recetas:create", EffectAllow, nil)
	assert.ErrorIs(t, err, ErrUnknownPermissionCode)
}

func TestAddOverrideExpirationIsDateBased(t *testing.T) {
	_, svc := overrideFixture()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	yesterday := now.AddDate(0, 0, -1)
	_, err := svc.AddOverride(context.Background(), 1, "consultas:read", EffectDeny, &yesterday)
	assert.ErrorIs(t, err, ErrPastExpiration)

	// Same calendar day is allowed even when the instant already passed.
	earlierToday := now.Add(-6 * time.Hour)
	_, err = svc.AddOverride(context.Background(), 1, "consultas:read", EffectDeny, &earlierToday)
	assert.NoError(t, err)
}

func TestAddOverrideReplacesSameKey(t *testing.T) {
	store, svc := overrideFixture()
	ctx := context.Background()

	_, err := svc.AddOverride(ctx, 1, "consultas:read", EffectAllow, nil)
	require.NoError(t, err)
	_, err = svc.AddOverride(ctx, 1, "consultas:read", EffectDeny, nil)
	require.NoError(t, err)

	overrides, err := store.ListOverrides(ctx, 1)
	require.NoError(t, err)
	require.Len(t, overrides, 1, "same (user, code) key must replace, not accumulate")
	assert.Equal(t, EffectDeny, overrides[0].Effect)
}

func TestRemoveOverrideIdempotent(t *testing.T) {
	_, svc := overrideFixture()
	ctx := context.Background()

	_, err := svc.AddOverride(ctx, 1, "consultas:read", EffectDeny, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveOverride(ctx, 1, "consultas:read"))
	require.NoError(t, svc.RemoveOverride(ctx, 1, "consultas:read"))
}

func TestListOverridesSplitsActiveFromExpired(t *testing.T) {
	store, svc := overrideFixture()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, store.UpsertOverride(ctx, PermissionOverride{
		UserID: 1, PermissionCode: "consultas:read", Effect: EffectAllow, ExpiresAt: &past,
	}))
	require.NoError(t, store.UpsertOverride(ctx, PermissionOverride{
		UserID: 1, PermissionCode: "expedientes:read", Effect: EffectDeny, ExpiresAt: &future,
	}))

	active, err := svc.ListActiveOverrides(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "expedientes:read", active[0].PermissionCode)

	all, err := svc.ListAllOverrides(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "consultas:read", all[0].PermissionCode)
	assert.True(t, all[0].IsExpired)
	assert.False(t, all[1].IsExpired)
}
