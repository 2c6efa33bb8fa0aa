package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePermissionDerivesResourceAndAction(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	perm, err := svc.CreatePermission(context.Background(), CreatePermissionInput{
		Code:        "consultas:read",
		Description: "Ver consultas",
		Category:    "clinical",
	})
	require.NoError(t, err)
	assert.Equal(t, "consultas", perm.Resource)
	assert.Equal(t, "read", perm.Action)

	stored, err := store.GetPermission(context.Background(), "consultas:read")
	require.NoError(t, err)
	assert.Equal(t, "clinical", stored.Category)
}

func TestCreatePermissionRejectsBadCode(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, code := range []string{"consultas", "consultas:", ":read", "Consultas:Read", "consultas:read:all", "consultas read"} {
		_, err := svc.CreatePermission(ctx, CreatePermissionInput{Code: code})
		assert.ErrorIs(t, err, ErrInvalidCodeFormat, "code %q", code)
	}
	assert.Empty(t, store.perms, "store must be unchanged after rejected input")
}

func TestCreatePermissionRejectsMismatchedParts(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.CreatePermission(context.Background(), CreatePermissionInput{
		Code:     "consultas:read",
		Resource: "expedientes",
	})
	assert.ErrorIs(t, err, ErrInvalidCodeFormat)

	_, err = svc.CreatePermission(context.Background(), CreatePermissionInput{
		Code:   "consultas:read",
		Action: "update",
	})
	assert.ErrorIs(t, err, ErrInvalidCodeFormat)
}

func TestCreatePermissionRejectsDuplicate(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	svc := newTestService(store)

	_, err := svc.CreatePermission(context.Background(), CreatePermissionInput{Code: "consultas:read"})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestUpdatePermissionMutableFields(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	svc := newTestService(store)

	desc := "Consultas del día"
	category := "clinical"
	perm, err := svc.UpdatePermission(context.Background(), "consultas:read", PermissionPatch{
		Description: &desc,
		Category:    &category,
	})
	require.NoError(t, err)
	assert.Equal(t, desc, perm.Description)
	assert.Equal(t, category, perm.Category)
	// Identity never changes.
	assert.Equal(t, "consultas", perm.Resource)
	assert.Equal(t, "read", perm.Action)
}

func TestUpdatePermissionRejectsIdentityChange(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	store.addPermission("usuarios:update", true)
	svc := newTestService(store)
	resource := "otros"

	_, err := svc.UpdatePermission(context.Background(), "consultas:read", PermissionPatch{Resource: &resource})
	assert.ErrorIs(t, err, ErrImmutableField)

	_, err = svc.UpdatePermission(context.Background(), "usuarios:update", PermissionPatch{Resource: &resource})
	assert.ErrorIs(t, err, ErrSystemPermissionImmutable)
}

func TestUpdatePermissionUnknownCode(t *testing.T) {
	svc := newTestService(newMemStore())
	desc := "x"
	_, err := svc.UpdatePermission(context.Background(), "consultas:read", PermissionPatch{Description: &desc})
	assert.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestDeletePermissionCascades(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	store.addPermission("citas:read", false)
	roleID := store.addRole("MEDICO", 500, false, false, "consultas:read", "citas:read")
	store.addUser(7)
	require.NoError(t, store.UpsertOverride(context.Background(), PermissionOverride{
		UserID: 7, PermissionCode: "consultas:read", Effect: EffectDeny,
	}))
	svc := newTestService(store)

	require.NoError(t, svc.DeletePermission(context.Background(), "consultas:read"))

	role, err := store.GetRole(context.Background(), roleID)
	require.NoError(t, err)
	assert.False(t, role.Grants("consultas:read"), "grant sets must shrink with the catalog")
	assert.True(t, role.Grants("citas:read"))

	overrides, err := store.ListOverrides(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, overrides, "overrides referencing the code must disappear")
}

func TestDeletePermissionGuards(t *testing.T) {
	store := newMemStore()
	store.addPermission("usuarios:update", true)
	svc := newTestService(store)

	err := svc.DeletePermission(context.Background(), "usuarios:update")
	assert.ErrorIs(t, err, ErrPermissionInUseBySystem)

	err = svc.DeletePermission(context.Background(), "consultas:read")
	assert.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestListPermissionsByCategory(t *testing.T) {
	store := newMemStore()
	store.addPermission("consultas:read", false)
	store.addPermission("citas:read", false)
	svc := newTestService(store)

	p := store.perms["citas:read"]
	p.Category = "reception"
	store.perms["citas:read"] = p

	perms, err := svc.ListPermissionsByCategory(context.Background(), "reception")
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "citas:read", perms[0].Code)
}
