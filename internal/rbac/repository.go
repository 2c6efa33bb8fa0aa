package rbac

import "context"

// PermissionRepository persists the permission catalog.
type PermissionRepository interface {
	GetPermission(ctx context.Context, code string) (Permission, error)
	// ListPermissions returns the catalog ordered by code.
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListPermissionsByCategory(ctx context.Context, category string) ([]Permission, error)
	CreatePermission(ctx context.Context, p Permission) error
	UpdatePermission(ctx context.Context, p Permission) error
	// DeletePermission removes the catalog entry and cascades removal from
	// every role's grant set and every user's overrides, atomically.
	DeletePermission(ctx context.Context, code string) error
}

// RoleRepository persists roles and their grant sets.
type RoleRepository interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	// ListRoles returns all roles ordered by name.
	ListRoles(ctx context.Context) ([]Role, error)
	// CreateRole inserts the role with its initial grant set and returns it
	// with the assigned ID.
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id int64) error
	// GrantPermission and RevokePermission are idempotent set operations.
	GrantPermission(ctx context.Context, roleID int64, code string) error
	RevokePermission(ctx context.Context, roleID int64, code string) error
	// ListAssignedUserIDs returns the IDs of users holding the role.
	ListAssignedUserIDs(ctx context.Context, roleID int64) ([]int64, error)
}

// AssignmentRepository persists user-role links. ReplaceAssignments swaps a
// user's whole assignment set in one atomic step so a concurrent read never
// observes zero or two primary roles.
type AssignmentRepository interface {
	ListAssignments(ctx context.Context, userID int64) ([]UserRoleAssignment, error)
	ReplaceAssignments(ctx context.Context, userID int64, assignments []UserRoleAssignment) error
}

// OverrideRepository persists per-user permission overrides keyed by
// (userID, permissionCode).
type OverrideRepository interface {
	// ListOverrides returns every override for the user, including expired
	// ones, ordered by permission code.
	ListOverrides(ctx context.Context, userID int64) ([]PermissionOverride, error)
	// UpsertOverride replaces any prior override for the same key.
	UpsertOverride(ctx context.Context, o PermissionOverride) error
	// DeleteOverride is idempotent: deleting a missing override succeeds.
	DeleteOverride(ctx context.Context, userID int64, code string) error
}

// UserDirectory answers whether a user exists. User accounts themselves are
// owned by the users package; the permission model only needs existence so
// Resolve can distinguish an unknown user from one with zero roles.
type UserDirectory interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}
