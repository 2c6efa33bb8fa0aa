// Package rbac implements the permission model: the catalog of permission
// codes, roles and their grant sets, user-role assignments, per-user
// overrides, and the resolver that merges all of them into a user's
// effective permission set.
package rbac

import (
	"regexp"
	"sort"
	"time"
)

// Effect is the polarity of a permission override.
type Effect string

const (
	// EffectAllow grants the permission regardless of role membership.
	EffectAllow Effect = "ALLOW"
	// EffectDeny revokes the permission regardless of role membership.
	// DENY always wins over role grants and ALLOW overrides.
	EffectDeny Effect = "DENY"
)

// Valid reports whether e is one of the two known polarities.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

var codePattern = regexp.MustCompile(`^[a-z_]+:[a-z_]+$`)

// ValidCode reports whether code is a well-formed "resource:action" pair.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// SplitCode returns the resource and action halves of a valid code.
func SplitCode(code string) (resource, action string) {
	for i := 0; i < len(code); i++ {
		if code[i] == ':' {
			return code[:i], code[i+1:]
		}
	}
	return code, ""
}

// Permission is a catalog entry. Code is the natural key and never changes;
// only Description and Category are mutable after creation.
type Permission struct {
	Code        string
	Resource    string
	Action      string
	Description string
	Category    string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Role groups permission codes. System roles are seeded at provisioning time
// and cannot be renamed, deleted, or have their grant set shrunk. Priority
// only breaks ties for primary-role promotion and display ordering; it has
// no bearing on permission resolution.
type Role struct {
	ID          int64
	Name        string
	Priority    int
	IsAdmin     bool
	IsSystem    bool
	Permissions map[string]struct{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionCodes returns the grant set sorted by code.
func (r Role) PermissionCodes() []string {
	codes := make([]string, 0, len(r.Permissions))
	for code := range r.Permissions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Grants reports whether the role grants code.
func (r Role) Grants(code string) bool {
	_, ok := r.Permissions[code]
	return ok
}

// UserRoleAssignment links a user to a role. A user holds at least one
// assignment at all times, and exactly one carries IsPrimary while the user
// holds any role.
type UserRoleAssignment struct {
	UserID    int64
	RoleID    int64
	IsPrimary bool
	CreatedAt time.Time
}

// PermissionOverride is a per-user exception to a single permission code.
// The natural key is (UserID, PermissionCode); adding a new override for the
// same code replaces the prior one. A nil ExpiresAt never expires.
type PermissionOverride struct {
	UserID         int64
	PermissionCode string
	Effect         Effect
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// Active reports whether the override contributes to resolution at the
// given evaluation instant. Expired overrides are kept for history but are
// ignored by the resolver.
func (o PermissionOverride) Active(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// OverrideView is an override tagged with its expiration state at the time
// the listing was produced.
type OverrideView struct {
	PermissionOverride
	IsExpired bool
}

// AssignedRole pairs a role with the assignment metadata for one user.
type AssignedRole struct {
	Role      Role
	IsPrimary bool
}

// EffectivePermissionSet is the resolved view of what a user may exercise.
// It is derived on demand and never stored.
//
// NextExpiry is the earliest instant at which one of the active timed
// overrides lapses and the set stops being valid; zero when no active
// override carries an expiration. A memoized copy must not be served at or
// past NextExpiry.
type EffectivePermissionSet struct {
	UserID           int64
	Granted          map[string]struct{}
	DeniedByOverride map[string]struct{}
	NextExpiry       time.Time
}

// Has reports whether code is in the granted set.
func (s EffectivePermissionSet) Has(code string) bool {
	_, ok := s.Granted[code]
	return ok
}

// GrantedCodes returns the granted set sorted by code.
func (s EffectivePermissionSet) GrantedCodes() []string {
	return sortedCodes(s.Granted)
}

// DeniedCodes returns the codes whose denial suppressed an otherwise
// observable grant, sorted by code.
func (s EffectivePermissionSet) DeniedCodes() []string {
	return sortedCodes(s.DeniedByOverride)
}

func sortedCodes(set map[string]struct{}) []string {
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
