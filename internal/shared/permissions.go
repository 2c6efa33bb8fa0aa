package shared

// Permission codes guarding the administration endpoints themselves.
const (
	PermUsuariosRead   = "usuarios:read"
	PermUsuariosUpdate = "usuarios:update"

	PermRolesRead   = "roles:read"
	PermRolesCreate = "roles:create"
	PermRolesUpdate = "roles:update"
	PermRolesDelete = "roles:delete"

	PermPermisosRead   = "permisos:read"
	PermPermisosCreate = "permisos:create"
	PermPermisosUpdate = "permisos:update"
	PermPermisosDelete = "permisos:delete"

	PermAuditoriaRead = "auditoria:read"
)

// AdminScopes lists every permission related to access administration.
func AdminScopes() []string {
	return []string{
		PermUsuariosRead,
		PermUsuariosUpdate,
		PermRolesRead,
		PermRolesCreate,
		PermRolesUpdate,
		PermRolesDelete,
		PermPermisosRead,
		PermPermisosCreate,
		PermPermisosUpdate,
		PermPermisosDelete,
		PermAuditoriaRead,
	}
}
