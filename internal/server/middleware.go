package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"epatra/internal/auth"
	"epatra/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyCaller    contextKey = "caller"
)

const headerRequestID = "X-Request-ID"

// caller is the authenticated principal together with its active roles.
type caller struct {
	principal *types.Principal
	roles     []*types.Role
}

func (c *caller) allows(permission string) bool {
	for _, role := range c.roles {
		if role.Allows(permission) {
			return true
		}
	}
	return false
}

func (c *caller) permissions() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, role := range c.roles {
		for _, p := range role.Permissions {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func callerFrom(ctx context.Context) *caller {
	c, _ := ctx.Value(contextKeyCaller).(*caller)
	return c
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID propagates an incoming X-Request-ID or assigns a new one.
func (s *Service) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyRequestID, id)))
	})
}

// observe logs the request and records it under its route pattern.
func (s *Service) observe(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		took := time.Since(started)
		s.metrics.Request(r.Method, route, rw.statusCode, took)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      rw.statusCode,
			"duration_ms": took.Milliseconds(),
			"request_id":  requestIDFrom(r.Context()),
		}).Info("http request")
	})
}

// RequireAuth verifies the access token and loads the caller's active roles.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		entry := s.logger.WithField("request_id", requestIDFrom(ctx))

		token, err := s.authn.TokenFromRequest(r)
		if err != nil {
			entry.WithError(err).Debug("no usable access token")
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		principal, err := s.authn.Verify(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				entry.WithError(err).Info("rejected access token")
			} else {
				entry.WithError(err).Error("failed to verify access token")
			}
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired access token"})
			return
		}

		roles, err := s.store.ActiveRolesByNames(ctx, principal.Roles)
		if err != nil {
			entry.WithError(err).Error("failed to load roles")
			s.internalServerError(w)
			return
		}

		entry.WithFields(logrus.Fields{
			"user_id": principal.UserID,
			"email":   principal.Email,
		}).Debug("authenticated user")

		ctx = context.WithValue(ctx, contextKeyCaller, &caller{principal: principal, roles: roles})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) RequirePermission(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := callerFrom(r.Context())
		if c == nil || !c.allows(permission) {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "missing permission " + permission})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path != "/" && strings.HasSuffix(path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(path, "/")

			http.Redirect(w, r, newURL.String(), http.StatusMovedPermanently)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// auditContext describes the caller for audit entries.
func auditContext(r *http.Request) types.AuditContext {
	actor := types.AuditContext{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if c := callerFrom(r.Context()); c != nil {
		actor.UserID = c.principal.UserID
	}
	return actor
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
