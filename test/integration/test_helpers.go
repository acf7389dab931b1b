//go:build integration

package integration

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-access-console/internal/admin"
	"go-access-console/internal/api"
	"go-access-console/internal/auth"
	"go-access-console/internal/command"
	"go-access-console/internal/config"
	"go-access-console/internal/event"
	"go-access-console/internal/mockserver"
	"go-access-console/internal/session"
)

// stack is the full client wiring pointed at an in-process backend double,
// the same construction cmd/console performs against the real backend.
type stack struct {
	srv       *httptest.Server
	tokenPath string
	session   *session.TokenSession
	store     *session.FileStore
	client    *api.Client
	auth      *auth.State
	directory *admin.Directory
	bus       *event.InMemoryBus
}

func newStack(t *testing.T) *stack {
	return newStackTTL(t, time.Hour)
}

func newStackTTL(t *testing.T, accessTTL time.Duration) *stack {
	t.Helper()

	cfg := &config.ServerConfig{
		JWTSecret:     "integration-secret",
		JWTAccessTTL:  accessTTL,
		JWTRefreshTTL: 24 * time.Hour,
	}
	backend, err := mockserver.New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	return attachClient(t, srv, filepath.Join(t.TempDir(), "token"))
}

// newStackAgainst builds a second client stack against the same backend and
// token file, standing in for a console restart.
func newStackAgainst(t *testing.T, base *stack, tokenPath string) *stack {
	t.Helper()
	return attachClient(t, base.srv, tokenPath)
}

func attachClient(t *testing.T, srv *httptest.Server, tokenPath string) *stack {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := session.NewFileStore(tokenPath)
	sess := session.New(store, logger)
	bus := event.NewBus()

	client, err := api.New(srv.URL, api.Options{Tokens: sess, Logger: logger})
	require.NoError(t, err)

	authState := auth.New(sess, client, bus, logger)

	return &stack{
		srv:       srv,
		tokenPath: tokenPath,
		session:   sess,
		store:     store,
		client:    client,
		auth:      authState,
		directory: admin.NewDirectory(client, authState, logger),
		bus:       bus,
	}
}

func (s *stack) loginAdmin(t *testing.T) {
	t.Helper()

	s.auth.Initialize(context.Background())
	require.NoError(t, s.auth.Login(context.Background(), "admin", "admin123"))
}

func (s *stack) commandChannel(t *testing.T) *command.Channel {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/commands/"
	ch := command.New(url, command.Options{
		Bus:            s.bus,
		Logger:         slog.New(slog.DiscardHandler),
		ReconnectDelay: 50 * time.Millisecond,
	})
	t.Cleanup(ch.Close)

	return ch
}

func waitChannelState(t *testing.T, ch *command.Channel, want command.State) {
	t.Helper()
	require.Eventually(t, func() bool { return ch.State() == want }, 5*time.Second, 20*time.Millisecond)
}
