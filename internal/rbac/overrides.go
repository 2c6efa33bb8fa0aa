package rbac

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// AddOverride creates or replaces the user's override for one permission
// code. Adding an override for a code that already has one silently
// replaces it — the (userID, code) key is unique, so this is a defined
// replace, not a conflict. The expiration check compares dates only:
// an override expiring later today is accepted.
func (s *Service) AddOverride(ctx context.Context, userID int64, code string, effect Effect, expiresAt *time.Time) (PermissionOverride, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return PermissionOverride{}, err
	}
	if !effect.Valid() {
		return PermissionOverride{}, ErrInvalidEffect
	}
	if _, err := s.perms.GetPermission(ctx, code); err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			return PermissionOverride{}, ErrUnknownPermissionCode
		}
		return PermissionOverride{}, err
	}
	if expiresAt != nil && beforeToday(*expiresAt, s.now()) {
		return PermissionOverride{}, ErrPastExpiration
	}

	override := PermissionOverride{
		UserID:         userID,
		PermissionCode: code,
		Effect:         effect,
		ExpiresAt:      expiresAt,
		CreatedAt:      s.now(),
	}
	if err := s.overrides.UpsertOverride(ctx, override); err != nil {
		return PermissionOverride{}, err
	}

	s.invalidateUser(ctx, userID)
	s.record(ctx, "override.add", "user", formatID(userID), map[string]any{"code": code, "effect": string(effect)})
	return override, nil
}

// RemoveOverride deletes the user's override for a code. Removing a
// non-existent override succeeds silently.
func (s *Service) RemoveOverride(ctx context.Context, userID int64, code string) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.overrides.DeleteOverride(ctx, userID, code); err != nil {
		return err
	}

	s.invalidateUser(ctx, userID)
	s.record(ctx, "override.remove", "user", formatID(userID), map[string]any{"code": code})
	return nil
}

// ListActiveOverrides returns the overrides that currently contribute to
// resolution, ordered by permission code.
func (s *Service) ListActiveOverrides(ctx context.Context, userID int64) ([]PermissionOverride, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	all, err := s.overrides.ListOverrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]PermissionOverride, 0, len(all))
	for _, o := range all {
		if o.Active(now) {
			active = append(active, o)
		}
	}
	return active, nil
}

// ListAllOverrides returns every override including expired ones, each
// tagged with its expiration state, ordered by permission code.
func (s *Service) ListAllOverrides(ctx context.Context, userID int64) ([]OverrideView, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	all, err := s.overrides.ListOverrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]OverrideView, 0, len(all))
	for _, o := range all {
		views = append(views, OverrideView{PermissionOverride: o, IsExpired: !o.Active(now)})
	}
	return views, nil
}

// beforeToday reports whether t falls on a calendar day strictly before
// now's. Matching the admin UI, a same-day expiration is allowed even when
// the instant has already passed.
func beforeToday(t, now time.Time) bool {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ty != ny {
		return ty < ny
	}
	if tm != nm {
		return tm < nm
	}
	return td < nd
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
