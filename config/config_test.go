package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
database:
  url: postgres://localhost/cargolink
auth:
  jwt_secret: secret
  super_admin_email: ops@cargolink.example
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.SuperAdminEmail != "ops@cargolink.example" {
		t.Fatalf("unexpected super admin email: %q", cfg.Auth.SuperAdminEmail)
	}
	if cfg.Session.SafetyTimeout != 5*time.Second {
		t.Fatalf("expected default safety timeout, got %v", cfg.Session.SafetyTimeout)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTP.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/override")
	t.Setenv("CARGOLINK_JWT_SECRET", "env-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "postgres://db/override" {
		t.Fatalf("expected env database url, got %q", cfg.Database.URL)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("expected env jwt secret, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CARGOLINK_JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error without database url")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database: [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
