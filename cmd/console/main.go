package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"cargolink/auth"
	"cargolink/config"
	"cargolink/db"
	"cargolink/session"
)

// Command console signs in against the live database through the same
// session manager client scopes use, and reports the effective role.
func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	flag.Parse()
	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(os.Getenv("CARGOLINK_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.Auth.JWTSecret)
	resolver := auth.NewResolver(authRepo, cfg.Auth.SuperAdminEmail)

	mgr := session.NewManager(authSvc, resolver, newRoleCache(cfg.Session.RoleCachePath), logger,
		session.WithSafetyTimeout(cfg.Session.SafetyTimeout))
	mgr.Start(ctx, "")
	defer mgr.Close()

	if err := mgr.SignIn(ctx, *email, *password); err != nil {
		logger.Fatal("sign in", zap.Error(err))
	}

	state := awaitReady(mgr, cfg.Session.SafetyTimeout+time.Second)
	switch {
	case state.Role == "":
		fmt.Printf("signed in as %s; role could not be resolved\n", *email)
	default:
		fmt.Printf("signed in as %s with role %s\n", *email, state.Role)
	}

	mgr.SignOut(ctx)
}

// newRoleCache maps the configured cache path to a role cache; an empty
// path disables caching.
func newRoleCache(path string) session.RoleCache {
	if path == "" {
		return session.NopRoleCache{}
	}
	return session.NewFileRoleCache(path)
}

// awaitReady polls until the manager leaves the loading state or the limit
// passes, and returns the last observed state.
func awaitReady(mgr *session.Manager, limit time.Duration) session.State {
	deadline := time.Now().Add(limit)
	for {
		state := mgr.Snapshot()
		if !state.Loading || time.Now().After(deadline) {
			return state
		}
		time.Sleep(25 * time.Millisecond)
	}
}
