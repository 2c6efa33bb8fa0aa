package rbac

import (
	"context"
	"errors"
	"strings"
)

// DefaultRolePriority is used when a new role does not specify one.
const DefaultRolePriority = 100

// CreateRoleInput is the payload for creating a role.
type CreateRoleInput struct {
	Name        string
	Permissions []string
	Priority    *int
	IsAdmin     bool
	IsSystem    bool
}

// RolePatch carries the mutable role fields.
type RolePatch struct {
	Name     *string
	Priority *int
	IsAdmin  *bool
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.roles.ListRoles(ctx)
}

// GetRole fetches a role with its grant set.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.roles.GetRole(ctx, id)
}

// CreateRole inserts a new role. Every initial permission code must exist
// in the catalog, and the name must be unique.
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Role{}, ErrRoleNameRequired
	}
	if _, err := s.roles.GetRoleByName(ctx, name); err == nil {
		return Role{}, ErrDuplicateRoleName
	} else if !errors.Is(err, ErrRoleNotFound) {
		return Role{}, err
	}

	grants := make(map[string]struct{}, len(input.Permissions))
	for _, code := range input.Permissions {
		if _, err := s.perms.GetPermission(ctx, code); err != nil {
			if errors.Is(err, ErrPermissionNotFound) {
				return Role{}, ErrUnknownPermissionCode
			}
			return Role{}, err
		}
		grants[code] = struct{}{}
	}

	priority := DefaultRolePriority
	if input.Priority != nil {
		priority = *input.Priority
	}

	role := Role{
		Name:        name,
		Priority:    priority,
		IsAdmin:     input.IsAdmin,
		IsSystem:    input.IsSystem,
		Permissions: grants,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	created, err := s.roles.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}

	s.record(ctx, "role.create", "role", created.Name, map[string]any{"id": created.ID, "is_admin": created.IsAdmin})
	return created, nil
}

// UpdateRole mutates a non-system role.
func (s *Service) UpdateRole(ctx context.Context, id int64, patch RolePatch) (Role, error) {
	role, err := s.roles.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystem {
		return Role{}, ErrSystemRoleImmutable
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Role{}, ErrRoleNameRequired
		}
		if name != role.Name {
			if existing, err := s.roles.GetRoleByName(ctx, name); err == nil && existing.ID != id {
				return Role{}, ErrDuplicateRoleName
			} else if err != nil && !errors.Is(err, ErrRoleNotFound) {
				return Role{}, err
			}
			role.Name = name
		}
	}
	if patch.Priority != nil {
		role.Priority = *patch.Priority
	}
	adminChanged := false
	if patch.IsAdmin != nil && *patch.IsAdmin != role.IsAdmin {
		role.IsAdmin = *patch.IsAdmin
		adminChanged = true
	}
	role.UpdatedAt = s.now()

	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return Role{}, err
	}

	// Flipping IsAdmin changes resolution for every holder of the role.
	if adminChanged {
		s.invalidateAll(ctx)
	}
	s.record(ctx, "role.update", "role", role.Name, map[string]any{"id": role.ID})
	return role, nil
}

// DeleteRole removes a non-system role that no user is assigned to.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.roles.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRoleImmutable
	}
	userIDs, err := s.roles.ListAssignedUserIDs(ctx, id)
	if err != nil {
		return err
	}
	if len(userIDs) > 0 {
		return ErrRoleHasAssignedUsers
	}

	if err := s.roles.DeleteRole(ctx, id); err != nil {
		return err
	}

	s.record(ctx, "role.delete", "role", role.Name, map[string]any{"id": id})
	return nil
}

// GrantPermission adds a catalog code to a role's grant set. Granting an
// already-granted code is a no-op success.
func (s *Service) GrantPermission(ctx context.Context, roleID int64, code string) error {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if _, err := s.perms.GetPermission(ctx, code); err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			return ErrUnknownPermissionCode
		}
		return err
	}
	if role.Grants(code) {
		return nil
	}

	if err := s.roles.GrantPermission(ctx, roleID, code); err != nil {
		return err
	}

	s.invalidateAll(ctx)
	s.record(ctx, "role.grant", "role", role.Name, map[string]any{"id": roleID, "code": code})
	return nil
}

// RevokePermission removes a code from a non-system role's grant set.
// Revoking an ungranted code is a no-op success. System roles cannot have
// their membership shrunk.
func (s *Service) RevokePermission(ctx context.Context, roleID int64, code string) error {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRoleImmutable
	}
	if !role.Grants(code) {
		return nil
	}

	if err := s.roles.RevokePermission(ctx, roleID, code); err != nil {
		return err
	}

	s.invalidateAll(ctx)
	s.record(ctx, "role.revoke", "role", role.Name, map[string]any{"id": roleID, "code": code})
	return nil
}
