package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go-access-console/internal/model"
)

// Login exchanges credentials for a profile and tokens. Errors pass through
// untouched so the caller can show the backend's own message.
func (c *Client) Login(ctx context.Context, username string, password string) (model.AuthPayload, error) {
	var payload model.AuthPayload
	err := c.do(ctx, http.MethodPost, "/api/auth/login/", nil,
		model.Credentials{Username: username, Password: password}, &payload)
	return payload, err
}

func (c *Client) Register(ctx context.Context, reg model.Registration) (model.AuthPayload, error) {
	var payload model.AuthPayload
	err := c.do(ctx, http.MethodPost, "/api/auth/register/", nil, reg, &payload)
	return payload, err
}

// CurrentUser resolves the profile behind the active token.
func (c *Client) CurrentUser(ctx context.Context) (model.Profile, error) {
	var envelope struct {
		User model.Profile `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/user/", nil, nil, &envelope)
	return envelope.User, err
}

// RegistrationRoles lists the roles offered on the register form. The
// endpoint path carries the backend's historical spelling.
func (c *Client) RegistrationRoles(ctx context.Context, excludeAdmin bool) ([]model.Role, error) {
	query := url.Values{"exclude_admin": {strconv.FormatBool(excludeAdmin)}}

	var roles []model.Role
	err := c.do(ctx, http.MethodGet, "/api/auth/get-registarion-roles/", query, nil, &roles)
	return roles, err
}

func (c *Client) Roles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := c.do(ctx, http.MethodGet, "/api/roles/", nil, nil, &roles)
	return roles, err
}

func (c *Client) CreateRole(ctx context.Context, input model.RoleInput) (model.Role, error) {
	var role model.Role
	err := c.do(ctx, http.MethodPost, "/api/roles/", nil, input, &role)
	return role, err
}

func (c *Client) UpdateRole(ctx context.Context, id int, input model.RoleInput) (model.Role, error) {
	var role model.Role
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/roles/%d/", id), nil, input, &role)
	return role, err
}

// DeleteRole removes a role by name.
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/roles/"+url.PathEscape(name)+"/", nil, nil, nil)
}

// AvailablePermissions lists the assignable permission catalog.
func (c *Client) AvailablePermissions(ctx context.Context) ([]model.PermissionInfo, error) {
	var envelope struct {
		Permissions []model.PermissionInfo `json:"permissions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/avail-permissions/", nil, nil, &envelope)
	return envelope.Permissions, err
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := c.do(ctx, http.MethodGet, "/api/users/", nil, nil, &users)
	return users, err
}

func (c *Client) CreateUser(ctx context.Context, input model.NewUser) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPost, "/api/users/", nil, input, &user)
	return user, err
}

func (c *Client) UpdateUser(ctx context.Context, id int, user model.User) (model.User, error) {
	var updated model.User
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/users/%d/", id), nil, user, &updated)
	return updated, err
}

func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/users/%d/", id), nil, nil, nil)
}

// UpdateUserPermission toggles one permission on the role of the given user.
func (c *Client) UpdateUserPermission(ctx context.Context, userID int, key string, allowed bool) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/users/%d/permissions/", userID), nil,
		model.PermissionUpdate{Permission: key, Allowed: allowed}, nil)
}

func (c *Client) Packages(ctx context.Context) ([]model.Package, error) {
	var packages []model.Package
	err := c.do(ctx, http.MethodGet, "/api/softs/", nil, nil, &packages)
	return packages, err
}

// ExcludedUsers fetches the users without access to the package. The
// usernames already granted are passed along so the complement is computed
// against the caller's view of the access list.
func (c *Client) ExcludedUsers(ctx context.Context, packageID int, excludeLogins []string) ([]model.UserRef, error) {
	query := url.Values{}
	for _, login := range excludeLogins {
		query.Add("exclude_logins", login)
	}

	var users []model.UserRef
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/softs/%d/excluded-users/", packageID), query, nil, &users)
	return users, err
}

// GrantAccess replaces the package's access list with the posted membership.
// An empty users_with_access revokes everyone; the backend treats the payload
// as the complete desired state.
func (c *Client) GrantAccess(ctx context.Context, pkg model.Package) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/softs/%d/grant-access/", pkg.ID), nil, pkg, nil)
}

func (c *Client) Statistics(ctx context.Context) (model.Statistics, error) {
	var stats model.Statistics
	err := c.do(ctx, http.MethodGet, "/api/statistics/", nil, nil, &stats)
	return stats, err
}
