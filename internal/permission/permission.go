// Package permission holds the client-side capability checks. Every rule
// lives here rather than at the call sites, and every check fails closed: a
// key absent from the role's permission list is a denial.
package permission

import "go-access-console/internal/model"

// Allowed reports whether the permission list carries the key with a true
// switch.
func Allowed(perms []model.Permission, key string) bool {
	for _, perm := range perms {
		if perm.Key == key {
			return perm.Allowed
		}
	}

	return false
}

// Can checks one capability of the acting user.
func Can(actor model.Profile, key string) bool {
	return Allowed(actor.CurrentRole.Permissions, key)
}

// CanEditUser allows editing one's own profile regardless of role; editing
// anyone else requires edit_users.
func CanEditUser(actor model.Profile, targetID int) bool {
	if actor.ID == targetID {
		return true
	}

	return Can(actor, model.PermEditUsers)
}

// CanTogglePermission gates the per-user permission switches. A user may
// never toggle their own permissions, whatever their role grants.
func CanTogglePermission(actor model.Profile, targetID int) bool {
	if actor.ID == targetID {
		return false
	}

	return Can(actor, model.PermEditRoles)
}

// CanManageRole gates role mutations. The admin role is only manageable by
// its own members.
func CanManageRole(actor model.Profile, roleName string, key string) bool {
	if roleName == model.AdminRoleName && actor.CurrentRole.Name != model.AdminRoleName {
		return false
	}

	return Can(actor, key)
}
