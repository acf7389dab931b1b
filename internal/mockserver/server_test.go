package mockserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"go-access-console/internal/api"
	"go-access-console/internal/config"
	"go-access-console/internal/model"
	"go-access-console/pkg/apierror"
)

type tokenHolder struct{ token string }

func (h *tokenHolder) Token() string { return h.token }

type double struct {
	server *Server
	srv    *httptest.Server
	client *api.Client
	tokens *tokenHolder
}

func newDouble(t *testing.T) *double {
	t.Helper()

	cfg := &config.ServerConfig{
		JWTSecret:     "test-secret",
		JWTAccessTTL:  time.Hour,
		JWTRefreshTTL: 24 * time.Hour,
	}
	server, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	tokens := &tokenHolder{}
	client, err := api.New(srv.URL, api.Options{Tokens: tokens, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	return &double{server: server, srv: srv, client: client, tokens: tokens}
}

func (d *double) loginAdmin(t *testing.T) model.Profile {
	t.Helper()

	payload, err := d.client.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	d.tokens.token = payload.AccessToken

	return payload.User
}

func TestLoginRoundTrip(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	user := d.loginAdmin(t)

	require.Equal(t, "admin", user.Username)
	require.Equal(t, model.AdminRoleName, user.CurrentRole.Name)
	require.NotEmpty(t, d.tokens.token)

	profile, err := d.client.CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, user.ID, profile.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	d := newDouble(t)

	_, err := d.client.Login(context.Background(), "admin", "wrong")
	require.ErrorIs(t, err, model.ErrUnauthorized)
	require.Contains(t, err.Error(), "Account not found or credentials invalid.")
}

func TestRegistrationFlow(t *testing.T) {
	t.Parallel()

	d := newDouble(t)

	roles, err := d.client.RegistrationRoles(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, roles, 1, "admin role must be hidden from registration")
	require.Equal(t, "user", roles[0].Name)

	payload, err := d.client.Register(context.Background(), model.Registration{
		Username: "alice",
		Password: "secret1",
		Role:     "user",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", payload.User.Username)
	require.NotEmpty(t, payload.AccessToken)
}

func TestRegisterValidationErrors(t *testing.T) {
	t.Parallel()

	d := newDouble(t)

	_, err := d.client.Register(context.Background(), model.Registration{
		Username: "admin", // taken
		Password: "x",     // too short
		Role:     "nope",  // unknown
	})

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.HasFields())
	require.Contains(t, apiErr.Fields, "username")
	require.Contains(t, apiErr.Fields, "password")
	require.Contains(t, apiErr.Fields, "role")
}

func TestAdminRoleRegistrationDenied(t *testing.T) {
	t.Parallel()

	d := newDouble(t)

	_, err := d.client.Register(context.Background(), model.Registration{
		Username: "mallory",
		Password: "secret1",
		Role:     model.AdminRoleName,
	})

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Contains(t, apiErr.Fields, "role")
}

func TestRoleLifecycle(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	d.loginAdmin(t)
	ctx := context.Background()

	created, err := d.client.CreateRole(ctx, model.RoleInput{
		Name: "support",
		Permissions: []model.Permission{
			{Key: model.PermEditUsers, Allowed: true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "support", created.Name)
	require.Len(t, created.Permissions, len(permissionCatalog), "full catalog rendered on every role")

	_, err = d.client.CreateRole(ctx, model.RoleInput{Name: "support"})
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Contains(t, apiErr.Fields, "rolename")

	created.Permissions[0].Allowed = false
	updated, err := d.client.UpdateRole(ctx, created.ID, model.RoleInput{Name: created.Name, Permissions: created.Permissions})
	require.NoError(t, err)
	require.Equal(t, created.Name, updated.Name)

	require.NoError(t, d.client.DeleteRole(ctx, "support"))

	err = d.client.DeleteRole(ctx, model.AdminRoleName)
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestPermissionToggleAffectsWholeRole(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	d.loginAdmin(t)
	ctx := context.Background()

	_, err := d.client.Register(ctx, model.Registration{Username: "bob", Password: "secret1", Role: "user"})
	require.NoError(t, err)
	_, err = d.client.Register(ctx, model.Registration{Username: "carol", Password: "secret1", Role: "user"})
	require.NoError(t, err)

	users, err := d.client.Users(ctx)
	require.NoError(t, err)

	var bob model.User
	for _, user := range users {
		if user.Username == "bob" {
			bob = user
		}
	}
	require.NotZero(t, bob.ID)

	require.NoError(t, d.client.UpdateUserPermission(ctx, bob.ID, model.PermAddUsers, true))

	users, err = d.client.Users(ctx)
	require.NoError(t, err)
	for _, user := range users {
		if user.Role.Name != "user" {
			continue
		}
		for _, perm := range user.Role.Permissions {
			if perm.Key == model.PermAddUsers {
				require.True(t, perm.Allowed, "toggle must reach every member of the role (%s)", user.Username)
			}
		}
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	t.Parallel()

	d := newDouble(t)

	_, err := d.client.Users(context.Background())
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestNonAdminForbiddenFromMutations(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	ctx := context.Background()

	payload, err := d.client.Register(ctx, model.Registration{Username: "eve", Password: "secret1", Role: "user"})
	require.NoError(t, err)
	d.tokens.token = payload.AccessToken

	_, err = d.client.CreateRole(ctx, model.RoleInput{Name: "sneaky"})
	require.ErrorIs(t, err, model.ErrForbidden)

	err = d.client.DeleteUser(ctx, 1)
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestAccessReconciliationEndpoints(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	admin := d.loginAdmin(t)
	ctx := context.Background()

	payload, err := d.client.Register(ctx, model.Registration{Username: "frank", Password: "secret1", Role: "user"})
	require.NoError(t, err)

	d.server.store.mu.Lock()
	pkg := d.server.store.addPackageLocked("analyzer")
	pkgID := pkg.ID
	d.server.store.mu.Unlock()

	// complement of an empty access list is everyone
	excluded, err := d.client.ExcludedUsers(ctx, pkgID, nil)
	require.NoError(t, err)
	require.Len(t, excluded, 2)

	// exclude_logins narrows the complement
	excluded, err = d.client.ExcludedUsers(ctx, pkgID, []string{"frank"})
	require.NoError(t, err)
	require.Len(t, excluded, 1)
	require.Equal(t, "admin", excluded[0].Username)

	require.NoError(t, d.client.GrantAccess(ctx, model.Package{
		ID:   pkgID,
		Name: "analyzer",
		UsersWithAccess: []model.UserRef{
			{ID: payload.User.ID, Username: "frank", Role: "user"},
		},
	}))

	packages, err := d.client.Packages(ctx)
	require.NoError(t, err)
	require.Len(t, packages, 1)
	require.Len(t, packages[0].UsersWithAccess, 1)
	require.Equal(t, "frank", packages[0].UsersWithAccess[0].Username)

	err = d.client.GrantAccess(ctx, model.Package{
		ID:              pkgID,
		Name:            "analyzer",
		UsersWithAccess: []model.UserRef{{ID: 999, Username: "ghost"}},
	})
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Contains(t, apiErr.Detail, "not found")

	// empty membership revokes everyone
	require.NoError(t, d.client.GrantAccess(ctx, model.Package{ID: pkgID, Name: "analyzer", UsersWithAccess: []model.UserRef{}}))
	packages, err = d.client.Packages(ctx)
	require.NoError(t, err)
	require.Empty(t, packages[0].UsersWithAccess)

	stats, err := d.client.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.UsersCount)
	require.Equal(t, 1, stats.PackagesCount)
	require.NotZero(t, admin.ID)
}

func dialCommands(t *testing.T, d *double) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(d.srv.URL, "http") + "/ws/commands/"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func collectUntilFinished(t *testing.T, conn *websocket.Conn) (string, int) {
	t.Helper()

	var output strings.Builder
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for {
		var msg wsResponse
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case "stdout":
			output.WriteString(msg.Message)
		case "finished":
			return output.String(), msg.ReturnCode
		}
	}
}

func TestCommandStreaming(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	conn := dialCommands(t, d)

	require.NoError(t, conn.WriteJSON(wsRequest{Action: "start_command", Command: "add_softs 3"}))

	output, code := collectUntilFinished(t, conn)
	require.Equal(t, 0, code)
	require.Contains(t, output, "Created 3 packages.")

	d.server.store.mu.Lock()
	count := len(d.server.store.packages)
	d.server.store.mu.Unlock()
	require.Equal(t, 3, count)
}

func TestCommandBusyNotice(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	conn := dialCommands(t, d)

	require.NoError(t, conn.WriteJSON(wsRequest{Action: "start_command", Command: "add_softs 200"}))
	require.NoError(t, conn.WriteJSON(wsRequest{Action: "start_command", Command: "migrate"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	sawBusy := false
	for !sawBusy {
		var msg wsResponse
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "stdout" && msg.Message == busyNotice {
			sawBusy = true
		}
	}

	require.NoError(t, conn.WriteJSON(wsRequest{Action: "cancel_command"}))
	output, code := collectUntilFinished(t, conn)
	require.Equal(t, cancelledCode, code)
	require.Contains(t, output, "=== Command cancelled by user ===")
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	d := newDouble(t)
	conn := dialCommands(t, d)

	require.NoError(t, conn.WriteJSON(wsRequest{Action: "start_command", Command: "frobnicate"}))

	output, code := collectUntilFinished(t, conn)
	require.Equal(t, 1, code)
	require.Contains(t, output, "Unknown command: frobnicate")
}
