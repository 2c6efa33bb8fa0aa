package rbac

import "errors"

// Validation errors: bad input, rejected before any store mutation.
var (
	ErrInvalidCodeFormat = errors.New("rbac: permission code must match resource:action")
	ErrDuplicateCode     = errors.New("rbac: permission code already exists")
	ErrDuplicateRoleName = errors.New("rbac: role name already exists")
	ErrInvalidEffect     = errors.New("rbac: override effect must be ALLOW or DENY")
	ErrPastExpiration    = errors.New("rbac: override expiration date is in the past")
	ErrRoleNameRequired  = errors.New("rbac: role name required")
	ErrImmutableField    = errors.New("rbac: only description and category are mutable")
)

// Invariant violations: the operation would break a model invariant. The
// store is left unchanged.
var (
	ErrSystemPermissionImmutable = errors.New("rbac: system permission is immutable")
	ErrPermissionInUseBySystem   = errors.New("rbac: system permission cannot be deleted")
	ErrSystemRoleImmutable       = errors.New("rbac: system role is immutable")
	ErrRoleHasAssignedUsers      = errors.New("rbac: role still has assigned users")
	ErrRoleNotAssigned           = errors.New("rbac: user does not hold this role")
	ErrLastRoleCannotBeRevoked   = errors.New("rbac: cannot revoke the user's last role")
)

// Not-found errors: a stale or unknown reference, distinct from bad input.
var (
	ErrUserNotFound          = errors.New("rbac: user not found")
	ErrRoleNotFound          = errors.New("rbac: role not found")
	ErrPermissionNotFound    = errors.New("rbac: permission not found")
	ErrUnknownPermissionCode = errors.New("rbac: permission code not in catalog")
)

// IsValidation reports whether err is a recoverable input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidCodeFormat) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrDuplicateRoleName) ||
		errors.Is(err, ErrInvalidEffect) ||
		errors.Is(err, ErrPastExpiration) ||
		errors.Is(err, ErrRoleNameRequired) ||
		errors.Is(err, ErrImmutableField)
}

// IsInvariant reports whether err is a rejected invariant violation.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrSystemPermissionImmutable) ||
		errors.Is(err, ErrPermissionInUseBySystem) ||
		errors.Is(err, ErrSystemRoleImmutable) ||
		errors.Is(err, ErrRoleHasAssignedUsers) ||
		errors.Is(err, ErrRoleNotAssigned) ||
		errors.Is(err, ErrLastRoleCannotBeRevoked)
}

// IsNotFound reports whether err refers to a missing user, role, or
// permission code.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrRoleNotFound) ||
		errors.Is(err, ErrPermissionNotFound) ||
		errors.Is(err, ErrUnknownPermissionCode)
}
