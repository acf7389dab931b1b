// Package auth drives the console's authentication lifecycle. The machine
// has three states and every entry point leaves it in a steady one: an error
// anywhere during startup degrades to anonymous, never to a stuck
// uninitialized state.
package auth

import (
	"context"
	"log/slog"
	"sync"

	"go-access-console/internal/api"
	"go-access-console/internal/event"
	"go-access-console/internal/model"
	"go-access-console/internal/session"
)

type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

type State struct {
	session *session.TokenSession
	api     *api.Client
	bus     event.Bus
	logger  *slog.Logger

	mu     sync.RWMutex
	status Status
	user   model.Profile
}

func New(sess *session.TokenSession, client *api.Client, bus event.Bus, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}

	s := &State{
		session: sess,
		api:     client,
		bus:     bus,
		logger:  logger,
		status:  StatusUninitialized,
	}
	sess.OnExpire(s.sessionExpired)

	return s
}

// Initialize restores a persisted session if one is still usable. Any
// failure along the way (unreadable store, stale token, rejected profile
// fetch) lands in anonymous; Initialize never returns an error because there
// is nothing the caller could do differently.
func (s *State) Initialize(ctx context.Context) {
	token, err := s.session.Restore()
	if err != nil {
		s.logger.Warn("session restore failed", "error", err)
		s.toAnonymous()
		return
	}

	if token == "" || !session.Valid(token) {
		s.toAnonymous()
		return
	}

	if err := s.session.Set(token); err != nil {
		s.toAnonymous()
		return
	}

	profile, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("persisted session rejected", "error", err)
		s.session.Clear()
		s.toAnonymous()
		return
	}

	s.toAuthenticated(profile)
}

// Login authenticates against the backend. On failure the state is left
// exactly as it was and the backend's error propagates unchanged.
func (s *State) Login(ctx context.Context, username string, password string) error {
	payload, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := s.session.Set(payload.AccessToken); err != nil {
		return err
	}

	s.toAuthenticated(payload.User)
	return nil
}

// Register creates an account and signs it in, one atomic transition from
// the console's point of view.
func (s *State) Register(ctx context.Context, reg model.Registration) error {
	payload, err := s.api.Register(ctx, reg)
	if err != nil {
		return err
	}

	if err := s.session.Set(payload.AccessToken); err != nil {
		return err
	}

	s.toAuthenticated(payload.User)
	return nil
}

// Logout is local only: it drops the session and transitions to anonymous
// unconditionally, with no backend round trip to fail on.
func (s *State) Logout() {
	s.session.Clear()
	s.toAnonymous()
}

// Status returns the current machine state.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CurrentUser returns the authenticated profile, if any.
func (s *State) CurrentUser() (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.status == StatusAuthenticated
}

func (s *State) sessionExpired() {
	s.mu.Lock()
	wasAuthenticated := s.status == StatusAuthenticated
	if wasAuthenticated {
		s.setStatusLocked(StatusAnonymous)
		s.user = model.Profile{}
	}
	s.mu.Unlock()

	if wasAuthenticated && s.bus != nil {
		s.bus.Publish(event.Event{Type: event.TypeSessionExpired})
	}
}

func (s *State) toAnonymous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(StatusAnonymous)
	s.user = model.Profile{}
}

func (s *State) toAuthenticated(profile model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(StatusAuthenticated)
	s.user = profile
}

func (s *State) setStatusLocked(next Status) {
	if s.status == next {
		return
	}

	s.logger.Debug("auth transition", "from", string(s.status), "to", string(next))
	s.status = next
}
