// Package admin exposes the operator-facing directory operations. Every
// mutation is gated locally first: a denied action returns ErrForbidden
// without touching the network, the backend check stays authoritative for
// whatever does go out.
package admin

import (
	"context"
	"log/slog"

	"go-access-console/internal/api"
	"go-access-console/internal/auth"
	"go-access-console/internal/model"
	"go-access-console/internal/permission"
)

type Directory struct {
	api    *api.Client
	auth   *auth.State
	logger *slog.Logger
}

func NewDirectory(client *api.Client, authState *auth.State, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}

	return &Directory{api: client, auth: authState, logger: logger}
}

func (d *Directory) actor() (model.Profile, error) {
	actor, ok := d.auth.CurrentUser()
	if !ok {
		return model.Profile{}, model.ErrNotAuthenticated
	}

	return actor, nil
}

func (d *Directory) Roles(ctx context.Context) ([]model.Role, error) {
	return d.api.Roles(ctx)
}

func (d *Directory) AvailablePermissions(ctx context.Context) ([]model.PermissionInfo, error) {
	return d.api.AvailablePermissions(ctx)
}

func (d *Directory) CreateRole(ctx context.Context, input model.RoleInput) (model.Role, error) {
	actor, err := d.actor()
	if err != nil {
		return model.Role{}, err
	}

	if !permission.Can(actor, model.PermAddRoles) {
		return model.Role{}, model.ErrForbidden
	}

	return d.api.CreateRole(ctx, input)
}

func (d *Directory) UpdateRole(ctx context.Context, role model.Role) (model.Role, error) {
	actor, err := d.actor()
	if err != nil {
		return model.Role{}, err
	}

	if !permission.CanManageRole(actor, role.Name, model.PermEditRoles) {
		return model.Role{}, model.ErrForbidden
	}

	return d.api.UpdateRole(ctx, role.ID, model.RoleInput{Name: role.Name, Permissions: role.Permissions})
}

// DeleteRole removes a role by name. The admin role is never deletable, by
// anyone.
func (d *Directory) DeleteRole(ctx context.Context, name string) error {
	actor, err := d.actor()
	if err != nil {
		return err
	}

	if name == model.AdminRoleName {
		return model.ErrForbidden
	}

	if !permission.CanManageRole(actor, name, model.PermDeleteRoles) {
		return model.ErrForbidden
	}

	return d.api.DeleteRole(ctx, name)
}

func (d *Directory) Users(ctx context.Context) ([]model.User, error) {
	return d.api.Users(ctx)
}

func (d *Directory) CreateUser(ctx context.Context, input model.NewUser) (model.User, error) {
	actor, err := d.actor()
	if err != nil {
		return model.User{}, err
	}

	if !permission.Can(actor, model.PermAddUsers) {
		return model.User{}, model.ErrForbidden
	}

	return d.api.CreateUser(ctx, input)
}

func (d *Directory) UpdateUser(ctx context.Context, user model.User) (model.User, error) {
	actor, err := d.actor()
	if err != nil {
		return model.User{}, err
	}

	if !permission.CanEditUser(actor, user.ID) {
		return model.User{}, model.ErrForbidden
	}

	return d.api.UpdateUser(ctx, user.ID, user)
}

func (d *Directory) DeleteUser(ctx context.Context, id int) error {
	actor, err := d.actor()
	if err != nil {
		return err
	}

	if actor.ID == id {
		// Deleting yourself from your own console session is never useful.
		return model.ErrForbidden
	}

	if !permission.Can(actor, model.PermDeleteUsers) {
		return model.ErrForbidden
	}

	return d.api.DeleteUser(ctx, id)
}

func (d *Directory) Packages(ctx context.Context) ([]model.Package, error) {
	return d.api.Packages(ctx)
}

func (d *Directory) Statistics(ctx context.Context) (model.Statistics, error) {
	return d.api.Statistics(ctx)
}
