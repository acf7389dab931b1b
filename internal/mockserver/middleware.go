package mockserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

type contextKey string

const actorContextKey contextKey = "actor"

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Error("panic recovered",
					"error", fmt.Sprintf("%v", recovered),
					"stack", string(debug.Stack()),
				)
				writeDetail(w, http.StatusInternalServerError, "Internal server error.")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", clientIP(r),
		}

		switch {
		case wrapped.status >= 500:
			s.logger.Error("request", attrs...)
		case wrapped.status >= 400:
			s.logger.Warn("request", attrs...)
		default:
			s.logger.Info("request", attrs...)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	if sw.wroteHeader {
		return
	}
	sw.status = statusCode
	sw.wroteHeader = true
	sw.ResponseWriter.WriteHeader(statusCode)
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         3600,
	}).Handler
}

type clientLimiter struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps a limiter pair per client address, with a tighter budget
// for the auth endpoints.
type rateLimiter struct {
	generalRPM int
	authRPM    int
	mu         sync.Mutex
	clients    map[string]*clientLimiter
}

func newRateLimiter(generalRPM int, authRPM int) *rateLimiter {
	if generalRPM <= 0 {
		generalRPM = 300
	}
	if authRPM <= 0 {
		authRPM = 30
	}

	return &rateLimiter{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		clients:    map[string]*clientLimiter{},
	}
}

func (l *rateLimiter) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := l.get(clientIP(r))

		target := limiter.general
		if strings.HasPrefix(strings.ToLower(r.URL.Path), "/api/auth") {
			target = limiter.auth
		}

		if !target.Allow() {
			w.Header().Set("Retry-After", "60")
			writeDetail(w, http.StatusTooManyRequests, "Too many requests.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) get(ip string) *clientLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.clients[ip]; exists {
		limiter.lastSeen = time.Now()
		l.gcLocked()
		return limiter
	}

	created := &clientLimiter{
		general:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.generalRPM)), l.generalRPM),
		auth:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.authRPM)), l.authRPM),
		lastSeen: time.Now(),
	}
	l.clients[ip] = created
	l.gcLocked()

	return created
}

func (l *rateLimiter) gcLocked() {
	if len(l.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, limiter := range l.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}

// requireAuth resolves the bearer token to a user record and stores it in
// the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		userID, err := s.issuer.validate(strings.TrimSpace(header[7:]))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Token invalid or expired.")
			return
		}

		s.store.mu.Lock()
		actor, ok := s.store.users[userID]
		s.store.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "User no longer exists.")
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (*userRecord, bool) {
	actor, ok := ctx.Value(actorContextKey).(*userRecord)
	return actor, ok
}
