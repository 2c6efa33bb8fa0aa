package rbac

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/shared"
)

// MountUserAccessRoutes registers the per-user role and permission
// endpoints; the router mounts them under /users/{userID}.
func (h *Handler) MountUserAccessRoutes(r chi.Router) {
	h.guarded(r, shared.PermUsuariosRead).Get("/roles", h.listUserRoles)
	h.guarded(r, shared.PermUsuariosUpdate).Post("/roles", h.assignRoles)
	h.guarded(r, shared.PermUsuariosUpdate).Put("/roles/primary", h.setPrimaryRole)
	h.guarded(r, shared.PermUsuariosUpdate).Delete("/roles/{roleID}", h.revokeRole)
	h.guarded(r, shared.PermUsuariosRead).Get("/permissions", h.effectivePermissions)
	h.guarded(r, shared.PermUsuariosRead).Get("/permissions/overrides", h.listOverrides)
	h.guarded(r, shared.PermUsuariosUpdate).Post("/permissions/override", h.addOverride)
	h.guarded(r, shared.PermUsuariosUpdate).Delete("/permissions/override/{code}", h.removeOverride)
}

type assignedRoleResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	IsAdmin   bool   `json:"isAdmin"`
	IsSystem  bool   `json:"isSystem"`
	IsPrimary bool   `json:"isPrimary"`
}

type overrideResponse struct {
	PermissionCode string     `json:"permissionCode"`
	Effect         Effect     `json:"effect"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (h *Handler) listUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	assigned, err := h.service.ListUserRoles(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]assignedRoleResponse, 0, len(assigned))
	for _, a := range assigned {
		out = append(out, assignedRoleResponse{
			ID:        a.Role.ID,
			Name:      a.Role.Name,
			Priority:  a.Role.Priority,
			IsAdmin:   a.Role.IsAdmin,
			IsSystem:  a.Role.IsSystem,
			IsPrimary: a.IsPrimary,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

type assignRolesRequest struct {
	RoleIDs []int64 `json:"roleIds" validate:"required,min=1"`
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	var req assignRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if _, err := h.service.AssignRoles(r.Context(), userID, req.RoleIDs); err != nil {
		h.respondError(w, err)
		return
	}
	assigned, err := h.service.ListUserRoles(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]assignedRoleResponse, 0, len(assigned))
	for _, a := range assigned {
		out = append(out, assignedRoleResponse{
			ID:        a.Role.ID,
			Name:      a.Role.Name,
			Priority:  a.Role.Priority,
			IsAdmin:   a.Role.IsAdmin,
			IsSystem:  a.Role.IsSystem,
			IsPrimary: a.IsPrimary,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

type setPrimaryRequest struct {
	RoleID int64 `json:"roleId" validate:"required"`
}

func (h *Handler) setPrimaryRole(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	var req setPrimaryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetPrimaryRole(r.Context(), userID, req.RoleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	roleID, err := parseID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "role id must be an integer")
		return
	}
	if err := h.service.RevokeRole(r.Context(), userID, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// effectivePermissions returns the resolved set plus the raw active
// overrides, letting a consumer reconstruct granted/deniedByOverride.
func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	effective, err := h.service.Resolve(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	active, err := h.service.ListActiveOverrides(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	overrides := make([]overrideResponse, 0, len(active))
	for _, o := range active {
		overrides = append(overrides, overrideResponse{
			PermissionCode: o.PermissionCode,
			Effect:         o.Effect,
			ExpiresAt:      o.ExpiresAt,
			CreatedAt:      o.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissions":      effective.GrantedCodes(),
		"deniedByOverride": effective.DeniedCodes(),
		"overrides":        overrides,
	})
}

type overrideHistoryResponse struct {
	overrideResponse
	IsExpired bool `json:"isExpired"`
}

func (h *Handler) listOverrides(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	views, err := h.service.ListAllOverrides(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]overrideHistoryResponse, 0, len(views))
	for _, v := range views {
		out = append(out, overrideHistoryResponse{
			overrideResponse: overrideResponse{
				PermissionCode: v.PermissionCode,
				Effect:         v.Effect,
				ExpiresAt:      v.ExpiresAt,
				CreatedAt:      v.CreatedAt,
			},
			IsExpired: v.IsExpired,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": out})
}

type addOverrideRequest struct {
	PermissionCode string     `json:"permissionCode" validate:"required"`
	Effect         string     `json:"effect" validate:"required"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

func (h *Handler) addOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	var req addOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	override, err := h.service.AddOverride(r.Context(), userID, req.PermissionCode, Effect(req.Effect), req.ExpiresAt)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, overrideResponse{
		PermissionCode: override.PermissionCode,
		Effect:         override.Effect,
		ExpiresAt:      override.ExpiresAt,
		CreatedAt:      override.CreatedAt,
	})
}

func (h *Handler) removeOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "user id must be an integer")
		return
	}
	if err := h.service.RemoveOverride(r.Context(), userID, chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
