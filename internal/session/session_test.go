package session

import (
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"go-access-console/internal/model"
)

func mintToken(t *testing.T, ttl time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

func newTestSession(t *testing.T) *TokenSession {
	t.Helper()

	store := NewFileStore(filepath.Join(t.TempDir(), "token"))
	return New(store, slog.New(slog.DiscardHandler))
}

func TestValid(t *testing.T) {
	t.Parallel()

	t.Run("future expiry", func(t *testing.T) {
		t.Parallel()
		require.True(t, Valid(mintToken(t, time.Hour)))
	})

	t.Run("past expiry", func(t *testing.T) {
		t.Parallel()
		require.False(t, Valid(mintToken(t, -time.Hour)))
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		require.False(t, Valid("not-a-token"))
		require.False(t, Valid(""))
	})

	t.Run("missing exp claim", func(t *testing.T) {
		t.Parallel()

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).
			SignedString([]byte("test-secret"))
		require.NoError(t, err)
		require.False(t, Valid(token))
	})
}

func TestSetRejectsUnusableTokens(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)

	err := s.Set(mintToken(t, -time.Minute))
	require.ErrorIs(t, err, model.ErrTokenExpired)
	require.Empty(t, s.Token())

	err = s.Set("garbage")
	require.ErrorIs(t, err, model.ErrTokenMalformed)
	require.Empty(t, s.Token())
}

func TestSetPersistsAndClearRemoves(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token")
	store := NewFileStore(path)
	s := New(store, slog.New(slog.DiscardHandler))

	token := mintToken(t, time.Hour)
	require.NoError(t, s.Set(token))
	require.Equal(t, token, s.Token())

	persisted, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, token, persisted)

	s.Clear()
	require.Empty(t, s.Token())

	persisted, err = store.Load()
	require.NoError(t, err)
	require.Empty(t, persisted)
}

func TestExpiryFiresOnceAndClears(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)

	var fired atomic.Int32
	s.OnExpire(func() { fired.Add(1) })

	require.NoError(t, s.Set(mintToken(t, 50*time.Millisecond)))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
	require.Empty(t, s.Token())

	persisted, err := s.Restore()
	require.NoError(t, err)
	require.Empty(t, persisted)

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}

func TestRefreshDisarmsPreviousTimer(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)

	var fired atomic.Int32
	s.OnExpire(func() { fired.Add(1) })

	require.NoError(t, s.Set(mintToken(t, 50*time.Millisecond)))

	// Installing a fresh token must supersede the short-lived one: the old
	// timer may not log the session out.
	fresh := mintToken(t, time.Hour)
	require.NoError(t, s.Set(fresh))

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
	require.Equal(t, fresh, s.Token())
}

func TestClearDisarmsTimer(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)

	var fired atomic.Int32
	s.OnExpire(func() { fired.Add(1) })

	require.NoError(t, s.Set(mintToken(t, 50*time.Millisecond)))
	s.Clear()

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
}

func TestFileStoreMissingFile(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "missing", "token"))

	token, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, token)

	require.NoError(t, store.Clear())
}
