package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-access-console/internal/model"
)

// TokenSession owns the process-wide bearer token: persistence, the expiry
// timer, and the credential handed to outgoing requests. At most one expiry
// timer is armed at any time; Set and Clear disarm before rearming, and a
// generation counter makes a stale timer that already fired a no-op.
type TokenSession struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	token    string
	expires  time.Time
	timer    *time.Timer
	gen      uint64
	onExpire func()
}

func New(store Store, logger *slog.Logger) *TokenSession {
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenSession{store: store, logger: logger}
}

// OnExpire registers the callback invoked when the armed timer fires.
// Register before Set; the callback runs outside the session lock.
func (s *TokenSession) OnExpire(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// Set installs and persists the token and arms the expiry timer. A token
// whose exp cannot be decoded, or already lies in the past, is rejected and
// leaves the session unchanged.
func (s *TokenSession) Set(token string) error {
	exp, err := TokenExpiry(token)
	if err != nil {
		return err
	}

	remaining := time.Until(exp)
	if remaining <= 0 {
		return model.ErrTokenExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked()
	s.gen++
	s.token = token
	s.expires = exp

	if err := s.store.Save(token); err != nil {
		s.logger.Warn("token not persisted", "error", err)
	}

	gen := s.gen
	s.timer = time.AfterFunc(remaining, func() { s.fire(gen) })

	return nil
}

// Clear drops the token, disarms the timer and removes the persisted copy.
// Always succeeds locally.
func (s *TokenSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked()
	s.gen++
	s.token = ""
	s.expires = time.Time{}

	if err := s.store.Clear(); err != nil {
		s.logger.Warn("persisted token not removed", "error", err)
	}
}

// Token returns the current bearer token, empty when no session is active.
// Satisfies the api client's token source.
func (s *TokenSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *TokenSession) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expires
}

// Restore reads the persisted token without installing it. A missing file is
// not an error; the caller decides whether the token is still usable.
func (s *TokenSession) Restore() (string, error) {
	return s.store.Load()
}

func (s *TokenSession) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *TokenSession) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		// A newer Set or Clear superseded this timer.
		s.mu.Unlock()
		return
	}

	s.gen++
	s.token = ""
	s.expires = time.Time{}
	s.timer = nil
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("persisted token not removed", "error", err)
	}
	fn := s.onExpire
	s.mu.Unlock()

	s.logger.Info("session expired")
	if fn != nil {
		fn()
	}
}

// Valid reports whether the token carries an exp claim in the future. The
// signature is not checked here; the backend verifies it on every request.
// Anything undecodable counts as invalid.
func Valid(token string) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return false
	}

	return exp.After(time.Now())
}

// TokenExpiry decodes the exp claim without verifying the signature.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, model.ErrTokenMalformed
	}

	return exp.Time, nil
}
