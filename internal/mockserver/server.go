// Package mockserver is the in-memory double of the access-control backend.
// It implements the REST and websocket contract the console speaks, close
// enough to exercise every client path; it owns no durable storage and is
// meant for local development and the integration tests only.
package mockserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"go-access-console/internal/config"
)

type Server struct {
	cfg      *config.ServerConfig
	logger   *slog.Logger
	store    *store
	issuer   *tokenIssuer
	upgrader websocket.Upgrader
}

func New(cfg *config.ServerConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st := newStore()
	if err := st.seed(); err != nil {
		return nil, err
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		store:  st,
		issuer: &tokenIssuer{
			secret:     []byte(cfg.JWTSecret),
			accessTTL:  cfg.JWTAccessTTL,
			refreshTTL: cfg.JWTRefreshTTL,
		},
		upgrader: websocket.Upgrader{
			// Local development double; origin checks would only get in the way.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recovery)
	r.Use(s.logging)
	r.Use(corsHandler(s.cfg.CORSOrigins))
	r.Use(newRateLimiter(s.cfg.RateLimitRPM, s.cfg.AuthRateLimitRPM).handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/login/", s.handleLogin)
			ar.Post("/register/", s.handleRegister)
			ar.Get("/get-registarion-roles/", s.handleRegistrationRoles)
			ar.With(s.requireAuth).Get("/user/", s.handleCurrentUser)
		})

		api.Group(func(authed chi.Router) {
			authed.Use(s.requireAuth)

			authed.Get("/avail-permissions/", s.handleAvailablePermissions)
			authed.Get("/statistics/", s.handleStatistics)

			authed.Get("/roles/", s.handleListRoles)
			authed.Post("/roles/", s.handleCreateRole)
			authed.Put("/roles/{id}/", s.handleUpdateRole)
			authed.Delete("/roles/{name}/", s.handleDeleteRole)

			authed.Get("/users/", s.handleListUsers)
			authed.Post("/users/", s.handleCreateUser)
			authed.Put("/users/{id}/", s.handleUpdateUser)
			authed.Delete("/users/{id}/", s.handleDeleteUser)
			authed.Put("/users/{id}/permissions/", s.handleUpdateUserPermission)

			authed.Get("/softs/", s.handleListPackages)
			authed.Get("/softs/{id}/excluded-users/", s.handleExcludedUsers)
			authed.Post("/softs/{id}/grant-access/", s.handleGrantAccess)
		})
	})

	r.Get("/ws/commands/", s.handleCommands)

	return r
}
