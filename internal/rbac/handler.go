package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/shared"
)

// Handler exposes the permission model over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance. A zero-value guard leaves the routes
// unprotected, which the handler tests rely on.
func NewHandler(logger *slog.Logger, service *Service, guard Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

func (h *Handler) guarded(r chi.Router, codes ...string) chi.Router {
	if h.guard.Service == nil {
		return r
	}
	return r.With(h.guard.RequireAny(codes...))
}

// MountPermissionRoutes registers the catalog endpoints.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	h.guarded(r, shared.PermPermisosRead).Get("/", h.listPermissions)
	h.guarded(r, shared.PermPermisosCreate).Post("/", h.createPermission)
	h.guarded(r, shared.PermPermisosUpdate).Patch("/{code}", h.updatePermission)
	h.guarded(r, shared.PermPermisosDelete).Delete("/{code}", h.deletePermission)
}

// MountRoleRoutes registers the role endpoints.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	h.guarded(r, shared.PermRolesRead).Get("/", h.listRoles)
	h.guarded(r, shared.PermRolesCreate).Post("/", h.createRole)
	h.guarded(r, shared.PermRolesRead).Get("/{roleID}", h.getRole)
	h.guarded(r, shared.PermRolesUpdate).Patch("/{roleID}", h.updateRole)
	h.guarded(r, shared.PermRolesDelete).Delete("/{roleID}", h.deleteRole)
	h.guarded(r, shared.PermRolesUpdate).Post("/{roleID}/permissions", h.grantPermission)
	h.guarded(r, shared.PermRolesUpdate).Delete("/{roleID}/permissions/{code}", h.revokePermission)
}

type permissionResponse struct {
	Code        string    `json:"code"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	IsSystem    bool      `json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type roleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Priority    int       `json:"priority"`
	IsAdmin     bool      `json:"isAdmin"`
	IsSystem    bool      `json:"isSystem"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toPermissionResponse(p Permission) permissionResponse {
	return permissionResponse{
		Code:        p.Code,
		Resource:    p.Resource,
		Action:      p.Action,
		Description: p.Description,
		Category:    p.Category,
		IsSystem:    p.IsSystem,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Priority:    role.Priority,
		IsAdmin:     role.IsAdmin,
		IsSystem:    role.IsSystem,
		Permissions: role.PermissionCodes(),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	var (
		perms []Permission
		err   error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		perms, err = h.service.ListPermissionsByCategory(r.Context(), category)
	} else {
		perms, err = h.service.ListPermissions(r.Context())
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

type createPermissionRequest struct {
	Code        string `json:"code" validate:"required"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), CreatePermissionInput{
		Code:        req.Code,
		Resource:    req.Resource,
		Action:      req.Action,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

type updatePermissionRequest struct {
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Resource    *string `json:"resource"`
	Action      *string `json:"action"`
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), chi.URLParam(r, "code"), PermissionPatch{
		Description: req.Description,
		Category:    req.Category,
		Resource:    req.Resource,
		Action:      req.Action,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePermission(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "role id must be an integer")
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type createRoleRequest struct {
	Name        string   `json:"name" validate:"required"`
	Permissions []string `json:"permissions"`
	Priority    *int     `json:"priority"`
	IsAdmin     bool     `json:"isAdmin"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateRoleInput{
		Name:        req.Name,
		Permissions: req.Permissions,
		Priority:    req.Priority,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

type updateRoleRequest struct {
	Name     *string `json:"name"`
	Priority *int    `json:"priority"`
	IsAdmin  *bool   `json:"isAdmin"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "role id must be an integer")
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, RolePatch{
		Name:     req.Name,
		Priority: req.Priority,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "role id must be an integer")
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantPermissionRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "role id must be an integer")
		return
	}
	var req grantPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantPermission(r.Context(), id, req.Code); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "role id must be an integer")
		return
	}
	if err := h.service.RevokePermission(r.Context(), id, chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case IsInvariant(err):
		httpx.Problem(w, http.StatusConflict, "Invariant Violation", err.Error())
	case IsNotFound(err):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("rbac handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}
