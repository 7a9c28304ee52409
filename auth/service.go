package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
)

const sessionTTL = 24 * time.Hour

// EventType tags an auth-state change.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Event is delivered to subscribers on every auth-state change. Session is
// nil for sign-out events.
type Event struct {
	Type    EventType
	Session *Session
}

// Service is the credential store: it issues sessions, validates them, and
// broadcasts auth-state changes to subscribers.
type Service struct {
	repo      Repository
	jwtSecret []byte

	mu      sync.Mutex
	nextSub int
	subs    map[int]func(Event)
}

// RegisterResult bundles the created user and their first session.
type RegisterResult struct {
	User    User
	Session Session
}

// LoginResult bundles the session and domain user returned after login.
type LoginResult struct {
	Session Session
	User    User
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		subs:      make(map[int]func(Event)),
	}
}

// Subscribe registers a callback for auth-state changes and returns an
// unsubscribe function. Events are delivered asynchronously; subscribers
// must do their own serialization.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Service) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		go fn(ev)
	}
}

// Register creates a new user account and signs them in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	if len(req.Password) < 8 {
		return RegisterResult{}, ErrWeakPassword
	}
	if req.Email == "" || req.FullName == "" {
		return RegisterResult{}, fmt.Errorf("auth: email and full_name are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("auth: hash password: %w", err)
	}

	params := CreateUserParams{
		Email:        normalizeEmail(req.Email),
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
	}
	if req.Phone != "" {
		params.Phone = &req.Phone
	}
	if req.Country != "" {
		params.Country = &req.Country
	}

	user, err := s.repo.CreateUser(ctx, params)
	if err != nil {
		return RegisterResult{}, err
	}

	session, err := s.issueSession(user)
	if err != nil {
		return RegisterResult{}, err
	}

	s.emit(Event{Type: EventSignedIn, Session: &session})
	return RegisterResult{User: user, Session: session}, nil
}

// Login authenticates a user and issues a session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	session, err := s.issueSession(user)
	if err != nil {
		return LoginResult{}, err
	}

	s.emit(Event{Type: EventSignedIn, Session: &session})
	return LoginResult{Session: session, User: user}, nil
}

// Logout invalidates the caller's session. Tokens are stateless, so the
// work here is broadcasting the sign-out so contexts drop their state.
func (s *Service) Logout(ctx context.Context) {
	s.emit(Event{Type: EventSignedOut})
}

// CurrentSession validates a token and returns the session it represents,
// or nil when the token is empty, expired, or malformed.
func (s *Service) CurrentSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.parseSession(token)
	if err != nil {
		return nil, nil
	}
	return session, nil
}

// GetUserByID retrieves user information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyToken validates a session token and returns the user id and email.
func (s *Service) VerifyToken(tokenString string) (string, string, error) {
	session, err := s.parseSession(tokenString)
	if err != nil {
		return "", "", err
	}
	return session.UserID, session.Email, nil
}

func (s *Service) issueSession(user User) (Session, error) {
	expiresAt := time.Now().Add(sessionTTL)
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return Session{}, fmt.Errorf("auth: sign session token: %w", err)
	}

	return Session{
		Token:     signed,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) parseSession(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, fmt.Errorf("auth: invalid user_id in token")
	}
	email, _ := claims["email"].(string)

	session := Session{
		Token:  tokenString,
		UserID: userID,
		Email:  email,
	}
	if exp, ok := claims["exp"].(float64); ok {
		session.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return &session, nil
}
