package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func primaryRoleID(t *testing.T, store *memStore, userID int64) int64 {
	t.Helper()
	var primary int64
	count := 0
	for _, a := range store.assignments[userID] {
		if a.IsPrimary {
			primary = a.RoleID
			count++
		}
	}
	require.Equal(t, 1, count, "exactly one assignment must be primary")
	return primary
}

func TestAssignRolesPromotesFirstPrimary(t *testing.T) {
	store := newMemStore()
	lowID := store.addRole("TRIAJE", 100, false, false)
	highID := store.addRole("MEDICO", 500, false, true)
	store.addUser(1)
	svc := newTestService(store)

	_, err := svc.AssignRoles(context.Background(), 1, []int64{lowID, highID})
	require.NoError(t, err)

	// Highest priority wins the automatic promotion.
	assert.Equal(t, highID, primaryRoleID(t, store, 1))
}

func TestAssignRolesPriorityTieBreaksOnLowestID(t *testing.T) {
	store := newMemStore()
	a := store.addRole("TRIAJE", 100, false, false)
	b := store.addRole("FARMACIA", 100, false, false)
	store.addUser(1)
	svc := newTestService(store)

	_, err := svc.AssignRoles(context.Background(), 1, []int64{b, a})
	require.NoError(t, err)
	assert.Equal(t, a, primaryRoleID(t, store, 1))
}

func TestAssignRolesSkipsHeldRoles(t *testing.T) {
	store := newMemStore()
	id := store.addRole("MEDICO", 500, false, true)
	store.addUser(1)
	store.assign(1, id, true)
	svc := newTestService(store)

	assignments, err := svc.AssignRoles(context.Background(), 1, []int64{id})
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
	assert.Equal(t, id, primaryRoleID(t, store, 1))
}

func TestAssignRolesKeepsExistingPrimary(t *testing.T) {
	store := newMemStore()
	lowID := store.addRole("TRIAJE", 100, false, false)
	highID := store.addRole("MEDICO", 500, false, true)
	store.addUser(1)
	store.assign(1, lowID, true)
	svc := newTestService(store)

	// Adding a higher-priority role must not steal primary.
	_, err := svc.AssignRoles(context.Background(), 1, []int64{highID})
	require.NoError(t, err)
	assert.Equal(t, lowID, primaryRoleID(t, store, 1))
}

func TestAssignRolesUnknownInputs(t *testing.T) {
	store := newMemStore()
	id := store.addRole("TRIAJE", 100, false, false)
	store.addUser(1)
	svc := newTestService(store)

	_, err := svc.AssignRoles(context.Background(), 99, []int64{id})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.AssignRoles(context.Background(), 1, []int64{42})
	assert.ErrorIs(t, err, ErrRoleNotFound)
	assert.Empty(t, store.assignments[1], "store must be unchanged after a rejected assign")
}

func TestSetPrimaryRoleSwapsAtomically(t *testing.T) {
	store := newMemStore()
	a := store.addRole("TRIAJE", 100, false, false)
	b := store.addRole("MEDICO", 500, false, true)
	store.addUser(1)
	store.assign(1, a, true)
	store.assign(1, b, false)
	svc := newTestService(store)

	require.NoError(t, svc.SetPrimaryRole(context.Background(), 1, b))
	assert.Equal(t, b, primaryRoleID(t, store, 1))

	assert.ErrorIs(t, svc.SetPrimaryRole(context.Background(), 1, 42), ErrRoleNotAssigned)
	assert.Equal(t, b, primaryRoleID(t, store, 1), "failed swap must leave the primary untouched")
}

func TestRevokeRoleLastRoleGuard(t *testing.T) {
	store := newMemStore()
	id := store.addRole("MEDICO", 500, false, true)
	store.addUser(1)
	store.assign(1, id, true)
	svc := newTestService(store)

	err := svc.RevokeRole(context.Background(), 1, id)
	assert.ErrorIs(t, err, ErrLastRoleCannotBeRevoked)
	assert.Len(t, store.assignments[1], 1)
}

func TestRevokeRolePromotesReplacementPrimary(t *testing.T) {
	store := newMemStore()
	primary := store.addRole("MEDICO", 500, false, true)
	mid := store.addRole("ENFERMERA", 300, false, true)
	low := store.addRole("TRIAJE", 100, false, false)
	store.addUser(1)
	store.assign(1, primary, true)
	store.assign(1, mid, false)
	store.assign(1, low, false)
	svc := newTestService(store)

	require.NoError(t, svc.RevokeRole(context.Background(), 1, primary))
	assert.Equal(t, mid, primaryRoleID(t, store, 1))
}

func TestRevokeRoleNonPrimaryKeepsPrimary(t *testing.T) {
	store := newMemStore()
	primary := store.addRole("MEDICO", 500, false, true)
	other := store.addRole("TRIAJE", 100, false, false)
	store.addUser(1)
	store.assign(1, primary, true)
	store.assign(1, other, false)
	svc := newTestService(store)

	require.NoError(t, svc.RevokeRole(context.Background(), 1, other))
	assert.Equal(t, primary, primaryRoleID(t, store, 1))
}

func TestRevokeRoleNotAssigned(t *testing.T) {
	store := newMemStore()
	held := store.addRole("MEDICO", 500, false, true)
	unheld := store.addRole("TRIAJE", 100, false, false)
	store.addUser(1)
	store.assign(1, held, true)
	svc := newTestService(store)

	assert.ErrorIs(t, svc.RevokeRole(context.Background(), 1, unheld), ErrRoleNotAssigned)
}

func TestListUserRolesSortedByName(t *testing.T) {
	store := newMemStore()
	m := store.addRole("MEDICO", 500, false, true)
	e := store.addRole("ENFERMERA", 300, false, true)
	store.addUser(1)
	store.assign(1, m, true)
	store.assign(1, e, false)
	svc := newTestService(store)

	assigned, err := svc.ListUserRoles(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	assert.Equal(t, "ENFERMERA", assigned[0].Role.Name)
	assert.Equal(t, "MEDICO", assigned[1].Role.Name)
	assert.True(t, assigned[1].IsPrimary)
}
