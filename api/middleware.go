package api

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"cargolink/auth"
)

type ctxKey int

const identityKey ctxKey = iota

// Identity is the authenticated caller attached to the request context.
// Role may be empty when resolution failed; empty is unprivileged, never an
// implicit user role.
type Identity struct {
	UserID string
	Email  string
	Role   auth.Role
}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// authenticate validates the bearer token and resolves the caller's role
// from the database on every request. The client-side role cache is never
// consulted here; authorization always re-verifies.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, email, err := s.authSvc.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		role, err := s.resolver.Resolve(r.Context(), userID, email)
		if err != nil {
			// Resolution failure degrades to an unprivileged identity.
			s.logger.Warn("role resolution failed for request",
				zap.String("user_id", userID), zap.Error(err))
			role = ""
		}

		identity := Identity{UserID: userID, Email: email, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// requireRole gates a route to the given roles. Admin passes everywhere an
// agent does only when listed explicitly; the gate is exact-match.
func (s *Server) requireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}
