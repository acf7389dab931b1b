package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL     string
	CommandWSURL   string
	TokenFile      string
	RequestTimeout time.Duration
	LogLevel       string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		CommandWSURL:   getEnv("COMMAND_WS_URL", "ws://localhost:8000/ws/commands/"),
		TokenFile:      getEnv("TOKEN_FILE", "./state/access-token"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	base, err := url.Parse(c.APIBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL")
	}

	ws, err := url.Parse(c.CommandWSURL)
	if err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
		return fmt.Errorf("COMMAND_WS_URL must be a ws(s) URL")
	}

	if strings.TrimSpace(c.TokenFile) == "" {
		return fmt.Errorf("TOKEN_FILE cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	return nil
}

// ServerConfig configures the in-memory development backend.
type ServerConfig struct {
	Port             string
	JWTSecret        string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
}

func LoadServer() (*ServerConfig, error) {
	_ = godotenv.Load()

	cfg := &ServerConfig{
		Port:             getEnv("MOCK_SERVER_PORT", "8000"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-only-secret"),
		JWTAccessTTL:     getDuration("JWT_ACCESS_TTL", time.Hour),
		JWTRefreshTTL:    getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 30),
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET cannot be empty")
	}

	if cfg.JWTAccessTTL <= 0 {
		return nil, fmt.Errorf("JWT_ACCESS_TTL must be positive")
	}

	return cfg, nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
