package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"go-access-console/internal/model"
	"go-access-console/pkg/apierror"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, Options{Tokens: staticToken(token)})
	require.NoError(t, err)

	return client
}

func TestBearerTokenAttached(t *testing.T) {
	t.Parallel()

	var gotAuth string
	client := newTestClient(t, "tok-123", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]model.Role{})
	})

	_, err := client.Roles(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-123", gotAuth)
}

func TestNoHeaderWithoutToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(model.AuthPayload{})
	})

	_, err := client.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "expired", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Token expired."}`))
	})

	_, err := client.CurrentUser(context.Background())
	require.ErrorIs(t, err, model.ErrUnauthorized)
	require.Contains(t, err.Error(), "Token expired.")
}

func TestFieldErrorsDecoded(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"username": ["A user with this login already exists."]}`))
	})

	_, err := client.Register(context.Background(), model.Registration{Username: "taken"})

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.HasFields())
	require.Equal(t, []string{"A user with this login already exists."}, apiErr.Fields["username"])
}

func TestDetailErrorPassesThrough(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Account not found or credentials invalid."}`))
	})

	_, err := client.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Account not found or credentials invalid.")
}

func TestExcludedUsersQuery(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotLogins []string
	client := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLogins = r.URL.Query()["exclude_logins"]
		_ = json.NewEncoder(w).Encode([]model.UserRef{})
	})

	_, err := client.ExcludedUsers(context.Background(), 7, []string{"alice", "bob"})
	require.NoError(t, err)
	require.Equal(t, "/api/softs/7/excluded-users/", gotPath)
	require.Equal(t, []string{"alice", "bob"}, gotLogins)
}

func TestGrantAccessPostsFullPackage(t *testing.T) {
	t.Parallel()

	var got model.Package
	client := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/softs/3/grant-access/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"detail": "Access updated."}`))
	})

	pkg := model.Package{
		ID:   3,
		Name: "analyzer",
		UsersWithAccess: []model.UserRef{
			{ID: 1, Username: "alice", Role: "admin"},
		},
	}
	require.NoError(t, client.GrantAccess(context.Background(), pkg))
	require.Equal(t, pkg, got)
}

func TestGrantAccessEmptyMembershipStillSent(t *testing.T) {
	t.Parallel()

	var body map[string]json.RawMessage
	client := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"detail": "Access updated."}`))
	})

	require.NoError(t, client.GrantAccess(context.Background(), model.Package{ID: 3, Name: "analyzer", UsersWithAccess: []model.UserRef{}}))
	require.JSONEq(t, `[]`, string(body["users_with_access"]))
}

func TestDeleteRoleEscapesName(t *testing.T) {
	t.Parallel()

	var gotPath string
	client := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteRole(context.Background(), "ops team"))
	require.Equal(t, "/api/roles/ops%20team/", gotPath)
}
