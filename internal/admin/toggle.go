package admin

import (
	"context"

	"go-access-console/internal/model"
	"go-access-console/internal/permission"
)

// permissionFlip is the reversible mutation behind the optimistic toggle: it
// sets one permission switch on every cached user sharing the role, and its
// inverse undoes exactly that.
type permissionFlip struct {
	roleName string
	key      string
	allowed  bool
}

func (f permissionFlip) apply(users []model.User) {
	for i := range users {
		if users[i].Role.Name != f.roleName {
			continue
		}
		perms := users[i].Role.Permissions
		for j := range perms {
			if perms[j].Key == f.key {
				perms[j].Allowed = f.allowed
			}
		}
	}
}

func (f permissionFlip) inverse() permissionFlip {
	f.allowed = !f.allowed
	return f
}

// TogglePermission flips one permission on the role of the given user,
// optimistically, in the caller's cached user list. The flip is applied to
// every user sharing that role before the request goes out; if the backend
// rejects it the exact inverse restores the previous state. A locally denied
// toggle mutates nothing and performs no request.
func (d *Directory) TogglePermission(ctx context.Context, users []model.User, userID int, key string) error {
	actor, err := d.actor()
	if err != nil {
		return err
	}

	if !permission.CanTogglePermission(actor, userID) {
		return model.ErrForbidden
	}

	var target *model.User
	for i := range users {
		if users[i].ID == userID {
			target = &users[i]
			break
		}
	}
	if target == nil {
		return model.ErrUserNotFound
	}

	current, found := false, false
	for _, perm := range target.Role.Permissions {
		if perm.Key == key {
			current, found = perm.Allowed, true
			break
		}
	}
	if !found {
		return model.ErrPermissionNotFound
	}

	flip := permissionFlip{roleName: target.Role.Name, key: key, allowed: !current}
	flip.apply(users)

	if err := d.api.UpdateUserPermission(ctx, userID, key, flip.allowed); err != nil {
		flip.inverse().apply(users)
		d.logger.Warn("permission toggle rolled back", "user_id", userID, "permission", key, "error", err)
		return err
	}

	return nil
}
