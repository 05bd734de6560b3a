package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	apperrors "versus-backend/pkg/errors"
	"versus-backend/pkg/logger"
)

// Limiter decides whether a key may make another request.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests over the per-client budget with 429.
func RateLimit(limiter Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			if !limiter.Allow(key) {
				log.Warn("Rate limit exceeded",
					zap.String("ip", key),
					zap.String("path", r.URL.Path))
				writeErrorResponse(w, apperrors.NewRateLimitError("Too many requests. Please try again later."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. Proxy headers are not read
// here: behind a trusted proxy, chi's RealIP runs first and rewrites
// RemoteAddr, otherwise a client could pick its own rate limit key.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
