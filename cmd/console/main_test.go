package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cargolink/auth"
	"cargolink/session"
)

func TestNewRoleCache(t *testing.T) {
	if _, ok := newRoleCache("").(session.NopRoleCache); !ok {
		t.Fatal("empty path must disable caching")
	}

	path := filepath.Join(t.TempDir(), "state", "role")
	cache := newRoleCache(path)
	cache.Set(auth.RoleAgent)
	role, ok := cache.Get()
	if !ok || role != auth.RoleAgent {
		t.Fatalf("expected cached agent role, got %q ok=%v", role, ok)
	}
}

func TestAwaitReady(t *testing.T) {
	mgr := session.NewManager(nullStore{}, nullResolver{}, session.NopRoleCache{}, nil,
		session.WithSafetyTimeout(100*time.Millisecond))
	mgr.Start(context.Background(), "")
	defer mgr.Close()

	state := awaitReady(mgr, time.Second)
	if state.Loading {
		t.Fatal("expected manager to settle before the limit")
	}
	if state.Session != nil {
		t.Fatalf("expected unauthenticated state, got %+v", state)
	}
}

type nullStore struct{}

func (nullStore) Subscribe(fn func(auth.Event)) func() { return func() {} }

func (nullStore) CurrentSession(ctx context.Context, token string) (*auth.Session, error) {
	return nil, nil
}

func (nullStore) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	return auth.LoginResult{}, auth.ErrInvalidCredentials
}

func (nullStore) Register(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResult, error) {
	return auth.RegisterResult{}, auth.ErrInvalidCredentials
}

func (nullStore) Logout(ctx context.Context) {}

func (nullStore) GetUserByID(ctx context.Context, userID string) (*auth.User, error) {
	return nil, nil
}

type nullResolver struct{}

func (nullResolver) Resolve(ctx context.Context, userID, email string) (auth.Role, error) {
	return auth.RoleUser, nil
}
