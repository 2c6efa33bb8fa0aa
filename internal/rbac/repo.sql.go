package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the whole
// permission model. It implements PermissionRepository, RoleRepository,
// AssignmentRepository, and OverrideRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// GetPermission fetches one catalog entry by code.
func (r *Repository) GetPermission(ctx context.Context, code string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx,
		`SELECT code, resource, action, description, category, is_system, created_at, updated_at
		 FROM permissions WHERE code = $1`, code).
		Scan(&p.Code, &p.Resource, &p.Action, &p.Description, &p.Category, &p.IsSystem, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrPermissionNotFound
	}
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

// ListPermissions returns the catalog ordered by code.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.listPermissions(ctx,
		`SELECT code, resource, action, description, category, is_system, created_at, updated_at
		 FROM permissions ORDER BY code`)
}

// ListPermissionsByCategory returns one category's entries ordered by code.
func (r *Repository) ListPermissionsByCategory(ctx context.Context, category string) ([]Permission, error) {
	return r.listPermissions(ctx,
		`SELECT code, resource, action, description, category, is_system, created_at, updated_at
		 FROM permissions WHERE category = $1 ORDER BY code`, category)
}

func (r *Repository) listPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Code, &p.Resource, &p.Action, &p.Description, &p.Category, &p.IsSystem, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreatePermission inserts a catalog entry.
func (r *Repository) CreatePermission(ctx context.Context, p Permission) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permissions (code, resource, action, description, category, is_system, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.Code, p.Resource, p.Action, p.Description, p.Category, p.IsSystem, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

// UpdatePermission stores the mutable catalog fields.
func (r *Repository) UpdatePermission(ctx context.Context, p Permission) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE permissions SET description = $2, category = $3, updated_at = $4 WHERE code = $1`,
		p.Code, p.Description, p.Category, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// DeletePermission removes a catalog entry. Foreign keys cascade the
// removal into role grant sets and user overrides within the same
// statement, so the whole cascade is atomic.
func (r *Repository) DeletePermission(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// GetRole fetches a role with its grant set.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return r.getRole(ctx, `SELECT id, name, priority, is_admin, is_system, created_at, updated_at FROM roles WHERE id = $1`, id)
}

// GetRoleByName fetches a role by its unique name.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return r.getRole(ctx, `SELECT id, name, priority, is_admin, is_system, created_at, updated_at FROM roles WHERE name = $1`, name)
}

func (r *Repository) getRole(ctx context.Context, query string, arg any) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&role.ID, &role.Name, &role.Priority, &role.IsAdmin, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrRoleNotFound
	}
	if err != nil {
		return Role{}, err
	}
	role.Permissions, err = r.roleGrants(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

func (r *Repository) roleGrants(ctx context.Context, roleID int64) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_code FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		grants[code] = struct{}{}
	}
	return grants, rows.Err()
}

// ListRoles returns all roles with their grant sets, ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, priority, is_admin, is_system, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Priority, &role.IsAdmin, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions, err = r.roleGrants(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return roles, nil
}

// CreateRole inserts the role and its initial grant set in one transaction.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, priority, is_admin, is_system, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			role.Name, role.Priority, role.IsAdmin, role.IsSystem, role.CreatedAt, role.UpdatedAt).
			Scan(&role.ID)
		if err != nil {
			return err
		}
		for code := range role.Permissions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission_code) VALUES ($1, $2)`,
				role.ID, code); err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return Role{}, ErrDuplicateRoleName
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRole stores the mutable role fields.
func (r *Repository) UpdateRole(ctx context.Context, role Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $2, priority = $3, is_admin = $4, updated_at = $5 WHERE id = $1`,
		role.ID, role.Name, role.Priority, role.IsAdmin, role.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateRoleName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// DeleteRole removes a role. Grant rows cascade via foreign key.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// GrantPermission adds a code to a role's grant set; re-granting is a
// no-op by conflict clause.
func (r *Repository) GrantPermission(ctx context.Context, roleID int64, code string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_code) VALUES ($1, $2)
		 ON CONFLICT (role_id, permission_code) DO NOTHING`, roleID, code)
	return err
}

// RevokePermission removes a code from a role's grant set; revoking an
// ungranted code affects zero rows and succeeds.
func (r *Repository) RevokePermission(ctx context.Context, roleID int64, code string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_code = $2`, roleID, code)
	return err
}

// ListAssignedUserIDs returns the users holding a role, ordered by ID.
func (r *Repository) ListAssignedUserIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM user_role_assignments WHERE role_id = $1 ORDER BY user_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
