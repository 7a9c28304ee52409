package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"cargolink/auth"
)

type sessionResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role,omitempty"`
	ExpiresAt string    `json:"expires_at"`
}

func sessionPayload(session auth.Session, role auth.Role) sessionResponse {
	return sessionResponse{
		Token:     session.Token,
		UserID:    session.UserID,
		Email:     session.Email,
		Role:      role,
		ExpiresAt: session.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.authSvc.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	role := s.resolveOrEmpty(r, result.User.ID, result.User.Email)
	writeJSON(w, http.StatusCreated, sessionPayload(result.Session, role))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.authSvc.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	role := s.resolveOrEmpty(r, result.User.ID, result.User.Email)
	writeJSON(w, http.StatusOK, sessionPayload(result.Session, role))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.authSvc.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": identity.UserID,
		"email":   identity.Email,
		"role":    identity.Role,
	})
}

// resolveOrEmpty derives the role for a freshly issued session, degrading
// to an empty role when resolution fails so the response never guesses.
func (s *Server) resolveOrEmpty(r *http.Request, userID, email string) auth.Role {
	role, err := s.resolver.Resolve(r.Context(), userID, email)
	if err != nil {
		return ""
	}
	return role
}
