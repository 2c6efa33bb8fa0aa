package rbac

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicore/clinicore/internal/platform/db"
)

// ListAssignments returns a user's role assignments ordered by role ID.
func (r *Repository) ListAssignments(ctx context.Context, userID int64) ([]UserRoleAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, role_id, is_primary, created_at
		 FROM user_role_assignments WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []UserRoleAssignment
	for rows.Next() {
		var a UserRoleAssignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.IsPrimary, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ReplaceAssignments swaps the user's whole assignment set in one
// transaction. A concurrent resolve sees either the old set or the new one,
// never a state with zero or two primary roles.
func (r *Repository) ReplaceAssignments(ctx context.Context, userID int64, assignments []UserRoleAssignment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, a := range assignments {
			createdAt := a.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_role_assignments (user_id, role_id, is_primary, created_at)
				 VALUES ($1, $2, $3, $4)`,
				userID, a.RoleID, a.IsPrimary, createdAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListOverrides returns every override for the user, expired included,
// ordered by permission code.
func (r *Repository) ListOverrides(ctx context.Context, userID int64) ([]PermissionOverride, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, permission_code, effect, expires_at, created_at
		 FROM permission_overrides WHERE user_id = $1 ORDER BY permission_code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []PermissionOverride
	for rows.Next() {
		var o PermissionOverride
		if err := rows.Scan(&o.UserID, &o.PermissionCode, &o.Effect, &o.ExpiresAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// UpsertOverride replaces any prior override for the same (user, code) key.
func (r *Repository) UpsertOverride(ctx context.Context, o PermissionOverride) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permission_overrides (user_id, permission_code, effect, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, permission_code)
		 DO UPDATE SET effect = EXCLUDED.effect, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		o.UserID, o.PermissionCode, o.Effect, o.ExpiresAt, o.CreatedAt)
	return err
}

// DeleteOverride removes the override for (user, code); deleting a missing
// override affects zero rows and succeeds.
func (r *Repository) DeleteOverride(ctx context.Context, userID int64, code string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM permission_overrides WHERE user_id = $1 AND permission_code = $2`, userID, code)
	return err
}
