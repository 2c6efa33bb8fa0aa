package rbac

import (
	"context"
	"sort"
)

// ListUserRoles returns the user's roles with their assignment metadata,
// ordered by role name.
func (s *Service) ListUserRoles(ctx context.Context, userID int64) ([]AssignedRole, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	assigned := make([]AssignedRole, 0, len(assignments))
	for _, assignment := range assignments {
		role, err := s.roles.GetRole(ctx, assignment.RoleID)
		if err != nil {
			return nil, err
		}
		assigned = append(assigned, AssignedRole{Role: role, IsPrimary: assignment.IsPrimary})
	}
	sort.Slice(assigned, func(i, j int) bool { return assigned[i].Role.Name < assigned[j].Role.Name })
	return assigned, nil
}

// AssignRoles adds the given roles to a user. Roles already held are
// skipped, so duplicate requests are no-op successes. A user going from
// zero roles to some gets a primary promoted immediately so the
// one-primary invariant holds after every mutation.
func (s *Service) AssignRoles(ctx context.Context, userID int64, roleIDs []int64) ([]UserRoleAssignment, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	for _, roleID := range roleIDs {
		if _, err := s.roles.GetRole(ctx, roleID); err != nil {
			return nil, err
		}
	}

	current, err := s.assignments.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[int64]struct{}, len(current))
	for _, assignment := range current {
		held[assignment.RoleID] = struct{}{}
	}

	next := append([]UserRoleAssignment(nil), current...)
	added := false
	for _, roleID := range roleIDs {
		if _, ok := held[roleID]; ok {
			continue
		}
		held[roleID] = struct{}{}
		next = append(next, UserRoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: s.now()})
		added = true
	}
	if !added {
		return current, nil
	}

	if !hasPrimary(next) {
		if err := s.promotePrimary(ctx, next); err != nil {
			return nil, err
		}
	}
	if err := s.assignments.ReplaceAssignments(ctx, userID, next); err != nil {
		return nil, err
	}

	s.invalidateUser(ctx, userID)
	s.record(ctx, "user.assign_roles", "user", formatID(userID), map[string]any{"role_ids": roleIDs})
	return next, nil
}

// SetPrimaryRole marks roleID as the user's primary role. The old and new
// primary flags swap in one atomic step.
func (s *Service) SetPrimaryRole(ctx context.Context, userID, roleID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	current, err := s.assignments.ListAssignments(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	next := make([]UserRoleAssignment, len(current))
	for i, assignment := range current {
		assignment.IsPrimary = assignment.RoleID == roleID
		if assignment.IsPrimary {
			found = true
		}
		next[i] = assignment
	}
	if !found {
		return ErrRoleNotAssigned
	}

	if err := s.assignments.ReplaceAssignments(ctx, userID, next); err != nil {
		return err
	}

	s.invalidateUser(ctx, userID)
	s.record(ctx, "user.set_primary_role", "user", formatID(userID), map[string]any{"role_id": roleID})
	return nil
}

// RevokeRole removes a role from a user. The last remaining role cannot be
// revoked. If the revoked role was primary, one remaining assignment is
// promoted deterministically: highest role priority, ties broken by lowest
// role ID.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	current, err := s.assignments.ListAssignments(ctx, userID)
	if err != nil {
		return err
	}

	var revoked *UserRoleAssignment
	next := make([]UserRoleAssignment, 0, len(current))
	for _, assignment := range current {
		if assignment.RoleID == roleID {
			a := assignment
			revoked = &a
			continue
		}
		next = append(next, assignment)
	}
	if revoked == nil {
		return ErrRoleNotAssigned
	}
	if len(next) == 0 {
		return ErrLastRoleCannotBeRevoked
	}

	if revoked.IsPrimary {
		if err := s.promotePrimary(ctx, next); err != nil {
			return err
		}
	}
	if err := s.assignments.ReplaceAssignments(ctx, userID, next); err != nil {
		return err
	}

	s.invalidateUser(ctx, userID)
	s.record(ctx, "user.revoke_role", "user", formatID(userID), map[string]any{"role_id": roleID})
	return nil
}

// promotePrimary flags exactly one assignment as primary: the role with the
// highest priority, ties broken by lowest role ID.
func (s *Service) promotePrimary(ctx context.Context, assignments []UserRoleAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	best := -1
	var bestPriority int
	for i := range assignments {
		assignments[i].IsPrimary = false
		role, err := s.roles.GetRole(ctx, assignments[i].RoleID)
		if err != nil {
			return err
		}
		switch {
		case best == -1:
			best, bestPriority = i, role.Priority
		case role.Priority > bestPriority:
			best, bestPriority = i, role.Priority
		case role.Priority == bestPriority && assignments[i].RoleID < assignments[best].RoleID:
			best = i
		}
	}
	assignments[best].IsPrimary = true
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

func hasPrimary(assignments []UserRoleAssignment) bool {
	for _, assignment := range assignments {
		if assignment.IsPrimary {
			return true
		}
	}
	return false
}
