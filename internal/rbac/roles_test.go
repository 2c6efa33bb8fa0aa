package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoleValidatesGrants(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	svc := newTestService(store)

	role, err := svc.CreateRole(context.Background(), CreateRoleInput{
		Name:        "TRIAJE",
		Permissions: []string{"consultas:read"},
	})
	require.NoError(t, err)
	assert.True(t, role.Grants("consultas:read"))
	assert.Equal(t, DefaultRolePriority, role.Priority)

	_, err = svc.CreateRole(context.Background(), CreateRoleInput{
		Name:        "FARMACIA",
		Permissions: []string{"recetas:create"},
	})
	assert.ErrorIs(t, err, ErrUnknownPermissionCode)
}

func TestCreateRoleRejectsEmptyAndDuplicateNames(t *testing.T) {
	store := newMemStore()
	store.addRole("MEDICO", 500, false, true)
	svc := newTestService(store)

	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "   "})
	assert.ErrorIs(t, err, ErrRoleNameRequired)

	_, err = svc.CreateRole(context.Background(), CreateRoleInput{Name: "MEDICO"})
	assert.ErrorIs(t, err, ErrDuplicateRoleName)
}

func TestUpdateRoleSystemGuard(t *testing.T) {
	store := newMemStore()
	systemID := store.addRole("MEDICO", 500, false, true)
	plainID := store.addRole("TRIAJE", 100, false, false)
	svc := newTestService(store)

	name := "OTRA"
	_, err := svc.UpdateRole(context.Background(), systemID, RolePatch{Name: &name})
	assert.ErrorIs(t, err, ErrSystemRoleImmutable)

	priority := 250
	role, err := svc.UpdateRole(context.Background(), plainID, RolePatch{Name: &name, Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, "OTRA", role.Name)
	assert.Equal(t, 250, role.Priority)
}

func TestUpdateRoleRejectsNameCollision(t *testing.T) {
	store := newMemStore()
	store.addRole("MEDICO", 500, false, false)
	id := store.addRole("TRIAJE", 100, false, false)
	svc := newTestService(store)

	name := "MEDICO"
	_, err := svc.UpdateRole(context.Background(), id, RolePatch{Name: &name})
	assert.ErrorIs(t, err, ErrDuplicateRoleName)
}

func TestDeleteRoleGuards(t *testing.T) {
	store := newMemStore()
	systemID := store.addRole("MEDICO", 500, false, true)
	heldID := store.addRole("TRIAJE", 100, false, false)
	freeID := store.addRole("FARMACIA", 100, false, false)
	store.addUser(4)
	store.assign(4, heldID, true)
	svc := newTestService(store)

	assert.ErrorIs(t, svc.DeleteRole(context.Background(), systemID), ErrSystemRoleImmutable)
	assert.ErrorIs(t, svc.DeleteRole(context.Background(), heldID), ErrRoleHasAssignedUsers)
	assert.NoError(t, svc.DeleteRole(context.Background(), freeID))
	assert.ErrorIs(t, svc.DeleteRole(context.Background(), freeID), ErrRoleNotFound)
}

func TestGrantPermissionIdempotent(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	id := store.addRole("TRIAJE", 100, false, false, "consultas:read")
	svc := newTestService(store)

	// Granting an already-granted code is a silent success.
	require.NoError(t, svc.GrantPermission(context.Background(), id, "consultas:read"))

	err := svc.GrantPermission(context.Background(), id, "recetas:create")
	assert.ErrorIs(t, err, ErrUnknownPermissionCode)
}

func TestRevokePermissionGuards(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	systemID := store.addRole("MEDICO", 500, false, true, "consultas:read")
	plainID := store.addRole("TRIAJE", 100, false, false, "consultas:read")
	svc := newTestService(store)

	assert.ErrorIs(t, svc.RevokePermission(context.Background(), systemID, "consultas:read"), ErrSystemRoleImmutable)

	require.NoError(t, svc.RevokePermission(context.Background(), plainID, "consultas:read"))
	role, err := store.GetRole(context.Background(), plainID)
	require.NoError(t, err)
	assert.False(t, role.Grants("consultas:read"))

	// Revoking an ungranted code is a no-op success.
	require.NoError(t, svc.RevokePermission(context.Background(), plainID, "consultas:read"))
}

func TestSystemRoleCanStillGainGrants(t *testing.T) {
	store := newMemStore()
	store.addPermission("recetas:create", false)
	id := store.addRole("ENFERMERA", 300, false, true)
	svc := newTestService(store)

	require.NoError(t, svc.GrantPermission(context.Background(), id, "recetas:create"))
	role, err := store.GetRole(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, role.Grants("recetas:create"))
}
