package rbac

import (
	"context"
	"strings"
)

// CreatePermissionInput is the payload for registering a catalog entry.
// Resource and Action may be left empty; they are derived from the code.
type CreatePermissionInput struct {
	Code        string
	Resource    string
	Action      string
	Description string
	Category    string
	IsSystem    bool
}

// PermissionPatch carries the fields a catalog update may touch. Resource
// and Action are accepted so the guard can reject the attempt explicitly:
// a permission's identity never changes after creation.
type PermissionPatch struct {
	Description *string
	Category    *string
	Resource    *string
	Action      *string
}

// ListPermissions returns the whole catalog ordered by code.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.perms.ListPermissions(ctx)
}

// ListPermissionsByCategory returns the catalog entries in one category,
// ordered by code.
func (s *Service) ListPermissionsByCategory(ctx context.Context, category string) ([]Permission, error) {
	return s.perms.ListPermissionsByCategory(ctx, strings.TrimSpace(category))
}

// GetPermission fetches one catalog entry by code.
func (s *Service) GetPermission(ctx context.Context, code string) (Permission, error) {
	return s.perms.GetPermission(ctx, code)
}

// CreatePermission registers a new catalog entry. The code must match
// resource:action and be unique catalog-wide.
func (s *Service) CreatePermission(ctx context.Context, input CreatePermissionInput) (Permission, error) {
	code := strings.TrimSpace(input.Code)
	if !ValidCode(code) {
		return Permission{}, ErrInvalidCodeFormat
	}
	resource, action := SplitCode(code)
	if input.Resource != "" && input.Resource != resource {
		return Permission{}, ErrInvalidCodeFormat
	}
	if input.Action != "" && input.Action != action {
		return Permission{}, ErrInvalidCodeFormat
	}

	perm := Permission{
		Code:        code,
		Resource:    resource,
		Action:      action,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		IsSystem:    input.IsSystem,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if err := s.perms.CreatePermission(ctx, perm); err != nil {
		return Permission{}, err
	}

	s.record(ctx, "permission.create", "permission", code, map[string]any{"category": perm.Category})
	return perm, nil
}

// UpdatePermission mutates a catalog entry. Only description and category
// are mutable; a patch touching resource or action is rejected, with the
// system-immutability error when the target is system-owned.
func (s *Service) UpdatePermission(ctx context.Context, code string, patch PermissionPatch) (Permission, error) {
	perm, err := s.perms.GetPermission(ctx, code)
	if err != nil {
		return Permission{}, err
	}

	if patch.Resource != nil || patch.Action != nil {
		if perm.IsSystem {
			return Permission{}, ErrSystemPermissionImmutable
		}
		return Permission{}, ErrImmutableField
	}

	if patch.Description != nil {
		perm.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		perm.Category = strings.TrimSpace(*patch.Category)
	}
	perm.UpdatedAt = s.now()

	if err := s.perms.UpdatePermission(ctx, perm); err != nil {
		return Permission{}, err
	}

	s.record(ctx, "permission.update", "permission", code, nil)
	return perm, nil
}

// DeletePermission removes a non-system catalog entry and cascades removal
// from every role's grant set and every user's overrides.
func (s *Service) DeletePermission(ctx context.Context, code string) error {
	perm, err := s.perms.GetPermission(ctx, code)
	if err != nil {
		return err
	}
	if perm.IsSystem {
		return ErrPermissionInUseBySystem
	}

	if err := s.perms.DeletePermission(ctx, code); err != nil {
		return err
	}

	// The cascade may have shrunk any role's grant set, so every cached
	// effective set is suspect.
	s.invalidateAll(ctx)
	s.record(ctx, "permission.delete", "permission", code, nil)
	return nil
}
