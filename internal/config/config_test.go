package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	require.Equal(t, "ws://localhost:8000/ws/commands/", cfg.CommandWSURL)
	require.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestValidateRejectsBadURLs(t *testing.T) {
	cfg := &Config{
		APIBaseURL:     "not-a-url",
		CommandWSURL:   "ws://localhost:8000/ws/commands/",
		TokenFile:      "./state/access-token",
		RequestTimeout: time.Second,
	}
	require.Error(t, cfg.Validate())

	cfg.APIBaseURL = "http://localhost:8000"
	cfg.CommandWSURL = "http://localhost:8000/ws/commands/"
	require.Error(t, cfg.Validate(), "command channel url must be ws or wss")

	cfg.CommandWSURL = "wss://example.com/ws/commands/"
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("API_BASE_URL", "https://backend.internal")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.RequestTimeout)
	require.Equal(t, "https://backend.internal", cfg.APIBaseURL)
}
