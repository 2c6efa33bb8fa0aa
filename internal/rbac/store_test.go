package rbac

import (
	"context"
	"sort"
	"time"

	"github.com/clinicore/clinicore/internal/audit"
)

// memStore backs the service tests with an in-memory implementation of
// every repository port plus the user directory.
type memStore struct {
	perms       map[string]Permission
	roles       map[int64]Role
	nextRoleID  int64
	assignments map[int64][]UserRoleAssignment
	overrides   map[int64]map[string]PermissionOverride
	users       map[int64]bool

	// Error injection
	replaceErr error
	upsertErr  error
	createErr  error
}

func newMemStore() *memStore {
	return &memStore{
		perms:       make(map[string]Permission),
		roles:       make(map[int64]Role),
		nextRoleID:  1,
		assignments: make(map[int64][]UserRoleAssignment),
		overrides:   make(map[int64]map[string]PermissionOverride),
		users:       make(map[int64]bool),
	}
}

func (m *memStore) GetPermission(_ context.Context, code string) (Permission, error) {
	p, ok := m.perms[code]
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return p, nil
}

func (m *memStore) ListPermissions(_ context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) ListPermissionsByCategory(_ context.Context, category string) ([]Permission, error) {
	out := make([]Permission, 0)
	for _, p := range m.perms {
		if p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) CreatePermission(_ context.Context, p Permission) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.perms[p.Code]; ok {
		return ErrDuplicateCode
	}
	m.perms[p.Code] = p
	return nil
}

func (m *memStore) UpdatePermission(_ context.Context, p Permission) error {
	if _, ok := m.perms[p.Code]; !ok {
		return ErrPermissionNotFound
	}
	m.perms[p.Code] = p
	return nil
}

func (m *memStore) DeletePermission(_ context.Context, code string) error {
	if _, ok := m.perms[code]; !ok {
		return ErrPermissionNotFound
	}
	delete(m.perms, code)
	for id, role := range m.roles {
		delete(role.Permissions, code)
		m.roles[id] = role
	}
	for userID := range m.overrides {
		delete(m.overrides[userID], code)
	}
	return nil
}

func (m *memStore) GetRole(_ context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return copyRole(role), nil
}

func (m *memStore) GetRoleByName(_ context.Context, name string) (Role, error) {
	for _, role := range m.roles {
		if role.Name == name {
			return copyRole(role), nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (m *memStore) ListRoles(_ context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, copyRole(role))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) CreateRole(_ context.Context, role Role) (Role, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return Role{}, ErrDuplicateRoleName
		}
	}
	role.ID = m.nextRoleID
	m.nextRoleID++
	if role.Permissions == nil {
		role.Permissions = make(map[string]struct{})
	}
	m.roles[role.ID] = copyRole(role)
	return role, nil
}

func (m *memStore) UpdateRole(_ context.Context, role Role) error {
	existing, ok := m.roles[role.ID]
	if !ok {
		return ErrRoleNotFound
	}
	existing.Name = role.Name
	existing.Priority = role.Priority
	existing.IsAdmin = role.IsAdmin
	existing.UpdatedAt = role.UpdatedAt
	m.roles[role.ID] = existing
	return nil
}

func (m *memStore) DeleteRole(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return ErrRoleNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memStore) GrantPermission(_ context.Context, roleID int64, code string) error {
	role, ok := m.roles[roleID]
	if !ok {
		return ErrRoleNotFound
	}
	role.Permissions[code] = struct{}{}
	m.roles[roleID] = role
	return nil
}

func (m *memStore) RevokePermission(_ context.Context, roleID int64, code string) error {
	role, ok := m.roles[roleID]
	if !ok {
		return ErrRoleNotFound
	}
	delete(role.Permissions, code)
	m.roles[roleID] = role
	return nil
}

func (m *memStore) ListAssignedUserIDs(_ context.Context, roleID int64) ([]int64, error) {
	var out []int64
	for userID, assignments := range m.assignments {
		for _, a := range assignments {
			if a.RoleID == roleID {
				out = append(out, userID)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memStore) ListAssignments(_ context.Context, userID int64) ([]UserRoleAssignment, error) {
	out := append([]UserRoleAssignment(nil), m.assignments[userID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (m *memStore) ReplaceAssignments(_ context.Context, userID int64, assignments []UserRoleAssignment) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if len(assignments) == 0 {
		delete(m.assignments, userID)
		return nil
	}
	m.assignments[userID] = append([]UserRoleAssignment(nil), assignments...)
	return nil
}

func (m *memStore) ListOverrides(_ context.Context, userID int64) ([]PermissionOverride, error) {
	out := make([]PermissionOverride, 0, len(m.overrides[userID]))
	for _, o := range m.overrides[userID] {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PermissionCode < out[j].PermissionCode })
	return out, nil
}

func (m *memStore) UpsertOverride(_ context.Context, o PermissionOverride) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.overrides[o.UserID] == nil {
		m.overrides[o.UserID] = make(map[string]PermissionOverride)
	}
	m.overrides[o.UserID][o.PermissionCode] = o
	return nil
}

func (m *memStore) DeleteOverride(_ context.Context, userID int64, code string) error {
	delete(m.overrides[userID], code)
	return nil
}

func (m *memStore) UserExists(_ context.Context, userID int64) (bool, error) {
	return m.users[userID], nil
}

func copyRole(role Role) Role {
	grants := make(map[string]struct{}, len(role.Permissions))
	for code := range role.Permissions {
		grants[code] = struct{}{}
	}
	role.Permissions = grants
	return role
}

// Seeding helpers.

func (m *memStore) addPermission(code string, system bool) {
	resource, action := SplitCode(code)
	m.perms[code] = Permission{
		Code:      code,
		Resource:  resource,
		Action:    action,
		IsSystem:  system,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (m *memStore) addRole(name string, priority int, admin, system bool, grants ...string) int64 {
	set := make(map[string]struct{}, len(grants))
	for _, code := range grants {
		set[code] = struct{}{}
	}
	id := m.nextRoleID
	m.nextRoleID++
	m.roles[id] = Role{
		ID:          id,
		Name:        name,
		Priority:    priority,
		IsAdmin:     admin,
		IsSystem:    system,
		Permissions: set,
	}
	return id
}

func (m *memStore) addUser(id int64) {
	m.users[id] = true
}

func (m *memStore) assign(userID, roleID int64, primary bool) {
	m.assignments[userID] = append(m.assignments[userID], UserRoleAssignment{
		UserID:    userID,
		RoleID:    roleID,
		IsPrimary: primary,
		CreatedAt: time.Now(),
	})
}

type memAudit struct {
	entries []audit.Entry
	err     error
}

func (m *memAudit) Record(_ context.Context, entry audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func newTestService(store *memStore) *Service {
	return NewService(ServiceParams{
		Permissions: store,
		Roles:       store,
		Assignments: store,
		Overrides:   store,
		Users:       store,
	})
}
