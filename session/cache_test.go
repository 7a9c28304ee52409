package session

import (
	"os"
	"path/filepath"
	"testing"

	"cargolink/auth"
)

func TestFileRoleCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "role")
	cache := NewFileRoleCache(path)

	if _, ok := cache.Get(); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Set(auth.RoleAgent)
	role, ok := cache.Get()
	if !ok || role != auth.RoleAgent {
		t.Fatalf("expected agent, got %q ok=%v", role, ok)
	}

	cache.Set(auth.RoleUser)
	if role, _ := cache.Get(); role != auth.RoleUser {
		t.Fatalf("expected overwrite to user, got %q", role)
	}

	cache.Clear()
	if _, ok := cache.Get(); ok {
		t.Fatal("expected miss after clear")
	}
	// Clearing twice must stay silent.
	cache.Clear()
}

func TestFileRoleCache_IgnoresGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "role")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cache := NewFileRoleCache(path)
	if _, ok := cache.Get(); ok {
		t.Fatal("expected whitespace-only file to read as a miss")
	}
}

func TestFileRoleCache_UnwritablePathIsSilent(t *testing.T) {
	cache := NewFileRoleCache(string([]byte{0}))
	cache.Set(auth.RoleAdmin)
	cache.Clear()
	if _, ok := cache.Get(); ok {
		t.Fatal("expected miss from unusable path")
	}
}
