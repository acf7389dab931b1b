package model

// Permission keys the backend understands. The catalog itself is
// backend-owned; these constants name the capabilities the console gates on.
const (
	PermAddRoles    = "add_roles"
	PermEditRoles   = "edit_roles"
	PermDeleteRoles = "delete_roles"
	PermAddUsers    = "add_users"
	PermEditUsers   = "edit_users"
	PermDeleteUsers = "delete_users"
)

// AdminRoleName is the protected built-in role: only its own members may
// edit it and nobody may delete it.
const AdminRoleName = "admin"

// Permission is one switch on a role.
type Permission struct {
	Key         string `json:"permission"`
	Description string `json:"description"`
	Allowed     bool   `json:"allowed"`
}

// PermissionInfo describes an assignable permission from the catalog.
type PermissionInfo struct {
	Key         string `json:"permission"`
	Description string `json:"description"`
}

// Role as served by the role directory endpoints.
type Role struct {
	ID          int          `json:"id"`
	Name        string       `json:"rolename"`
	Permissions []Permission `json:"permissions"`
}

// RoleInput is the create/update payload for a role.
type RoleInput struct {
	Name        string       `json:"rolename"`
	Permissions []Permission `json:"permissions"`
}

// CurrentRole is the role embedded in a profile. The backend names the role
// field "name" here and "rolename" in the role directory.
type CurrentRole struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// PermissionUpdate toggles a single permission on a user's role.
type PermissionUpdate struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}
