package session

import (
	"os"
	"path/filepath"
	"strings"

	"cargolink/auth"
)

// RoleCache persists the last resolved role so the next start can render
// the right panel before the authoritative lookup returns. It is a display
// hint only and must never gate a privileged action.
type RoleCache interface {
	// Get returns the cached role, if any. Never fails; storage problems
	// read as a miss.
	Get() (auth.Role, bool)
	// Set overwrites the cached role, best-effort.
	Set(role auth.Role)
	// Clear removes the cached role, best-effort.
	Clear()
}

// FileRoleCache stores the role as a single small file. Every storage
// error is swallowed: an unwritable state dir costs only optimistic-render
// latency, never correctness.
type FileRoleCache struct {
	path string
}

// NewFileRoleCache creates a cache at path. The parent directory is
// created lazily on the first Set.
func NewFileRoleCache(path string) *FileRoleCache {
	return &FileRoleCache{path: path}
}

func (c *FileRoleCache) Get() (auth.Role, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", false
	}
	role := strings.TrimSpace(string(data))
	if role == "" {
		return "", false
	}
	return auth.Role(role), true
}

func (c *FileRoleCache) Set(role auth.Role) {
	if role == "" {
		return
	}
	_ = os.MkdirAll(filepath.Dir(c.path), 0o700)
	_ = os.WriteFile(c.path, []byte(role), 0o600)
}

func (c *FileRoleCache) Clear() {
	_ = os.Remove(c.path)
}

// NopRoleCache disables role caching.
type NopRoleCache struct{}

func (NopRoleCache) Get() (auth.Role, bool) { return "", false }
func (NopRoleCache) Set(auth.Role)          {}
func (NopRoleCache) Clear()                 {}
