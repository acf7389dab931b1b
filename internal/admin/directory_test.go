package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"go-access-console/internal/api"
	"go-access-console/internal/auth"
	"go-access-console/internal/model"
	"go-access-console/internal/session"
)

type fixture struct {
	dir *Directory
	mux *http.ServeMux

	// mutating requests seen by the backend, login excluded
	requests atomic.Int32
}

func newFixture(t *testing.T, actor model.Profile) *fixture {
	t.Helper()

	f := &fixture{mux: http.NewServeMux()}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	f.mux.HandleFunc("POST /api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(model.AuthPayload{User: actor, AccessToken: token}))
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login/" {
			f.requests.Add(1)
		}
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	sess := session.New(session.NewFileStore(filepath.Join(t.TempDir(), "token")), slog.New(slog.DiscardHandler))
	client, err := api.New(srv.URL, api.Options{Tokens: sess})
	require.NoError(t, err)

	state := auth.New(sess, client, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, state.Login(context.Background(), actor.Username, "pw"))

	f.dir = NewDirectory(client, state, slog.New(slog.DiscardHandler))
	return f
}

func actorWith(id int, roleName string, keys ...string) model.Profile {
	perms := make([]model.Permission, 0, len(keys))
	for _, key := range keys {
		perms = append(perms, model.Permission{Key: key, Allowed: true})
	}

	return model.Profile{
		ID:          id,
		Username:    "actor",
		CurrentRole: model.CurrentRole{Name: roleName, Permissions: perms},
	}
}

func supportUsers() []model.User {
	supportRole := func() model.Role {
		return model.Role{
			ID:   2,
			Name: "support",
			Permissions: []model.Permission{
				{Key: model.PermAddUsers, Allowed: false},
				{Key: model.PermEditUsers, Allowed: true},
			},
		}
	}

	return []model.User{
		{ID: 10, Username: "carol", Role: supportRole()},
		{ID: 11, Username: "dave", Role: supportRole()},
		{ID: 12, Username: "erin", Role: model.Role{ID: 3, Name: "viewer", Permissions: []model.Permission{
			{Key: model.PermAddUsers, Allowed: false},
		}}},
	}
}

func cloneUsers(users []model.User) []model.User {
	out := make([]model.User, len(users))
	for i, user := range users {
		out[i] = user
		out[i].Role.Permissions = append([]model.Permission(nil), user.Role.Permissions...)
	}
	return out
}

func TestDeniedToggleIsLocalOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(1, "viewer")) // no edit_roles
	users := supportUsers()
	original := cloneUsers(users)

	err := f.dir.TogglePermission(context.Background(), users, 10, model.PermAddUsers)
	require.ErrorIs(t, err, model.ErrForbidden)
	require.Equal(t, original, users, "denied toggle must not mutate the cache")
	require.Equal(t, int32(0), f.requests.Load(), "denied toggle must not reach the network")
}

func TestSelfToggleAlwaysDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(10, model.AdminRoleName, model.PermEditRoles))
	users := supportUsers()

	err := f.dir.TogglePermission(context.Background(), users, 10, model.PermAddUsers)
	require.ErrorIs(t, err, model.ErrForbidden)
	require.Equal(t, int32(0), f.requests.Load())
}

func TestToggleAppliesToEveryRoleSharer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(1, model.AdminRoleName, model.PermEditRoles))

	var got model.PermissionUpdate
	f.mux.HandleFunc("PUT /api/users/10/permissions/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"detail": "Permission updated."}`))
	})

	users := supportUsers()
	require.NoError(t, f.dir.TogglePermission(context.Background(), users, 10, model.PermAddUsers))

	require.Equal(t, model.PermissionUpdate{Permission: model.PermAddUsers, Allowed: true}, got)
	require.True(t, users[0].Role.Permissions[0].Allowed, "target flipped")
	require.True(t, users[1].Role.Permissions[0].Allowed, "role sharer flipped too")
	require.False(t, users[2].Role.Permissions[0].Allowed, "other roles untouched")
	require.Equal(t, int32(1), f.requests.Load())
}

func TestToggleRollsBackOnBackendFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(1, model.AdminRoleName, model.PermEditRoles))
	f.mux.HandleFunc("PUT /api/users/10/permissions/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "Database unavailable."}`))
	})

	users := supportUsers()
	original := cloneUsers(users)

	err := f.dir.TogglePermission(context.Background(), users, 10, model.PermAddUsers)
	require.Error(t, err)
	require.Equal(t, original, users, "failed toggle must restore the exact previous state")
}

func TestToggleUnknownPermission(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(1, model.AdminRoleName, model.PermEditRoles))
	users := supportUsers()

	err := f.dir.TogglePermission(context.Background(), users, 10, "launch_rockets")
	require.ErrorIs(t, err, model.ErrPermissionNotFound)
	require.Equal(t, int32(0), f.requests.Load())
}

func TestAdminRoleNeverDeletable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(1, model.AdminRoleName, model.PermDeleteRoles))

	err := f.dir.DeleteRole(context.Background(), model.AdminRoleName)
	require.ErrorIs(t, err, model.ErrForbidden)
	require.Equal(t, int32(0), f.requests.Load())
}

func TestRoleMutationsGatedLocally(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(1, "viewer")) // no role permissions at all

	_, err := f.dir.CreateRole(context.Background(), model.RoleInput{Name: "support"})
	require.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.dir.UpdateRole(context.Background(), model.Role{ID: 2, Name: "support"})
	require.ErrorIs(t, err, model.ErrForbidden)

	err = f.dir.DeleteRole(context.Background(), "support")
	require.ErrorIs(t, err, model.ErrForbidden)

	require.Equal(t, int32(0), f.requests.Load())
}

func TestSelfProfileEditAllowedWithoutPermission(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(10, "viewer"))
	f.mux.HandleFunc("PUT /api/users/10/", func(w http.ResponseWriter, r *http.Request) {
		var user model.User
		require.NoError(t, json.NewDecoder(r.Body).Decode(&user))
		require.NoError(t, json.NewEncoder(w).Encode(user))
	})

	updated, err := f.dir.UpdateUser(context.Background(), model.User{ID: 10, Username: "carol", FirstName: "Carol"})
	require.NoError(t, err)
	require.Equal(t, "Carol", updated.FirstName)

	_, err = f.dir.UpdateUser(context.Background(), model.User{ID: 11, Username: "dave"})
	require.ErrorIs(t, err, model.ErrForbidden, "editing others still needs edit_users")
}

func TestDeleteUserGates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, actorWith(1, model.AdminRoleName, model.PermDeleteUsers))
	f.mux.HandleFunc("DELETE /api/users/10/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.dir.DeleteUser(context.Background(), 10))

	err := f.dir.DeleteUser(context.Background(), 1)
	require.ErrorIs(t, err, model.ErrForbidden, "deleting yourself is denied")
}
