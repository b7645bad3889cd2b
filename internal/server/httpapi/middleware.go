package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/webstack/webstack/internal/common"
	"github.com/webstack/webstack/internal/server/models"
)

// authenticate wraps a handler with bearer credential resolution. The
// Authorization header must carry "Bearer <credential>", where the
// credential is either an access token or an API key; the authenticator
// decides which. The resolved user is stored in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, err := bearerCredential(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		user, err := s.authenticator.Authenticate(r.Context(), credential)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// requireRole gates a handler on the ranked role hierarchy: a user passes
// when their role ranks at or above required.
func (s *Server) requireRole(required models.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil {
			s.writeError(w, r, common.ErrorUnauthorized)
			return
		}
		if !user.HasPermission(required) {
			s.writeError(w, r, common.ErrPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerCredential(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", common.ErrorUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", common.ErrorUnauthorized
	}
	return parts[1], nil
}

// clientIP returns the originating client address for rate limiting,
// preferring the first X-Forwarded-For hop set by the reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// securityHeaders stamps every response with the standard hardening headers.
// HSTS is added only on TLS connections.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit enforces the global per-IP request quota plus a short burst
// window on top of it. Health checks are exempt. Both counters are
// consumed before the handler runs; the quota headers reflect the
// long-window counter.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		allowed := s.limiter.Allow(r.Context(), ip, "requests", s.cfg.RequestRateLimitMax, s.cfg.RequestRateLimitWindow)
		burstOK := s.limiter.Allow(r.Context(), ip, "burst", s.cfg.RequestBurstMax, s.cfg.RequestBurstWindow)
		if !allowed || !burstOK {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.RequestRateLimitWindow.Seconds())))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.cfg.RequestRateLimitMax))
			s.writeError(w, r, common.ErrRateLimited)
			return
		}

		if usage, err := s.limiter.CurrentUsage(r.Context(), ip, "requests"); err == nil {
			remaining := s.cfg.RequestRateLimitMax - usage
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.cfg.RequestRateLimitMax))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// logRequests emits one structured log line per request with the response
// status, duration, and client address, and tags the response with a
// request id.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info(r.Context(), "request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP(r))
	})
}
