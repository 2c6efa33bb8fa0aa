package rbac

import "time"

// ComputeEffective merges role grants with active overrides into the
// effective permission set for one user. It is a pure function over its
// inputs: given the same roles and overrides it always produces the same
// sets, independent of iteration order.
//
// The merge rules are:
//
//	R = union of grant sets over every assigned role (no role precedence)
//	A = codes with an active ALLOW override
//	D = codes with an active DENY override
//	granted = (R ∪ A) \ D
//
// DENY always wins, including the defensive case where the same code
// carries both an ALLOW and a DENY. If any assigned role has IsAdmin set,
// R is replaced by the whole catalog (catalogCodes) — DENY overrides still
// apply to admins.
//
// DeniedByOverride is the subset of denials that suppressed an otherwise
// observable grant, D ∩ (R ∪ A); it exists for audit display only.
//
// A user with zero roles resolves to A \ D: the minimum-one-role rule is a
// write-time constraint, not a read-time assumption.
//
// The returned set's NextExpiry is the earliest ExpiresAt among the active
// timed overrides, so memoizing callers know when the result goes stale.
func ComputeEffective(userID int64, roles []Role, overrides []PermissionOverride, catalogCodes []string, now time.Time) EffectivePermissionSet {
	admin := false
	for _, role := range roles {
		if role.IsAdmin {
			admin = true
			break
		}
	}

	base := make(map[string]struct{})
	if admin {
		for _, code := range catalogCodes {
			base[code] = struct{}{}
		}
	} else {
		for _, role := range roles {
			for code := range role.Permissions {
				base[code] = struct{}{}
			}
		}
	}

	deny := make(map[string]struct{})
	var nextExpiry time.Time
	for _, o := range overrides {
		if !o.Active(now) {
			continue
		}
		if o.ExpiresAt != nil && (nextExpiry.IsZero() || o.ExpiresAt.Before(nextExpiry)) {
			nextExpiry = *o.ExpiresAt
		}
		switch o.Effect {
		case EffectAllow:
			base[o.PermissionCode] = struct{}{}
		case EffectDeny:
			deny[o.PermissionCode] = struct{}{}
		}
	}

	granted := make(map[string]struct{}, len(base))
	deniedByOverride := make(map[string]struct{})
	for code := range base {
		if _, denied := deny[code]; denied {
			deniedByOverride[code] = struct{}{}
			continue
		}
		granted[code] = struct{}{}
	}

	return EffectivePermissionSet{
		UserID:           userID,
		Granted:          granted,
		DeniedByOverride: deniedByOverride,
		NextExpiry:       nextExpiry,
	}
}
