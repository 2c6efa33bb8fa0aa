package rbac

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinicore/clinicore/internal/audit"
	"github.com/clinicore/clinicore/internal/shared"
)

// AuditPort records permission-model mutations.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service is the lifecycle guard for the permission model. Every mutation
// goes through it so invariants are enforced in one place, and every
// consumer — HTTP handlers, middleware, jobs — reads effective permissions
// through Resolve rather than re-deriving them.
type Service struct {
	perms       PermissionRepository
	roles       RoleRepository
	assignments AssignmentRepository
	overrides   OverrideRepository
	users       UserDirectory
	cache       *Cache
	audit       AuditPort
	logger      *slog.Logger

	now func() time.Time
}

// ServiceParams groups dependencies for constructing a Service. Cache and
// Audit are optional; Logger defaults to slog.Default.
type ServiceParams struct {
	Permissions PermissionRepository
	Roles       RoleRepository
	Assignments AssignmentRepository
	Overrides   OverrideRepository
	Users       UserDirectory
	Cache       *Cache
	Audit       AuditPort
	Logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		perms:       p.Permissions,
		roles:       p.Roles,
		assignments: p.Assignments,
		overrides:   p.Overrides,
		users:       p.Users,
		cache:       p.Cache,
		audit:       p.Audit,
		logger:      logger,
		now:         time.Now,
	}
}

// Resolve computes the effective permission set for userID. Results are
// served from the cache when one is configured; concurrent resolutions for
// the same user are collapsed into a single computation.
func (s *Service) Resolve(ctx context.Context, userID int64) (EffectivePermissionSet, error) {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return EffectivePermissionSet{}, err
	}
	if !exists {
		return EffectivePermissionSet{}, ErrUserNotFound
	}
	if s.cache == nil {
		return s.resolveUncached(ctx, userID)
	}
	return s.cache.FetchEffective(ctx, userID, s.now(), func(ctx context.Context) (EffectivePermissionSet, error) {
		return s.resolveUncached(ctx, userID)
	})
}

func (s *Service) resolveUncached(ctx context.Context, userID int64) (EffectivePermissionSet, error) {
	assignments, err := s.assignments.ListAssignments(ctx, userID)
	if err != nil {
		return EffectivePermissionSet{}, err
	}

	roles := make([]Role, 0, len(assignments))
	admin := false
	for _, assignment := range assignments {
		role, err := s.roles.GetRole(ctx, assignment.RoleID)
		if err != nil {
			return EffectivePermissionSet{}, err
		}
		roles = append(roles, role)
		if role.IsAdmin {
			admin = true
		}
	}

	overrides, err := s.overrides.ListOverrides(ctx, userID)
	if err != nil {
		return EffectivePermissionSet{}, err
	}

	// The full catalog is only needed for the admin wildcard.
	var catalogCodes []string
	if admin {
		perms, err := s.perms.ListPermissions(ctx)
		if err != nil {
			return EffectivePermissionSet{}, err
		}
		catalogCodes = make([]string, 0, len(perms))
		for _, p := range perms {
			catalogCodes = append(catalogCodes, p.Code)
		}
	}

	return ComputeEffective(userID, roles, overrides, catalogCodes, s.now()), nil
}

// record writes an audit entry for a completed mutation. Audit failures are
// logged, never propagated: the mutation has already committed.
func (s *Service) record(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed",
			slog.String("action", action),
			slog.String("entity", entity),
			slog.Any("error", err))
	}
}

func (s *Service) invalidateUser(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate user", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) invalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpVersion(ctx); err != nil {
		s.logger.Warn("cache bump version", slog.Any("error", err))
	}
}
