package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrUnresolved signals that role resolution failed. Callers must treat the
// role as unknown and render nothing privileged; it must never be collapsed
// into the default user role.
var ErrUnresolved = errors.New("auth: role unresolved")

// Resolver derives a user's effective role from the stored relations.
type Resolver struct {
	repo RoleRepository

	// superAdminEmail short-circuits resolution for one operator account.
	// It exists as a safety net against data inconsistency locking the
	// platform operator out of the admin panel; no table is consulted.
	superAdminEmail string
}

// NewResolver creates a role resolver. superAdminEmail may be empty to
// disable the override.
func NewResolver(repo RoleRepository, superAdminEmail string) *Resolver {
	return &Resolver{
		repo:            repo,
		superAdminEmail: normalizeEmail(superAdminEmail),
	}
}

// Resolve determines the effective role for the user. The four relation
// reads run concurrently and all must succeed; any failure yields
// ErrUnresolved rather than a downgraded default. Resolve performs no
// writes.
func (r *Resolver) Resolve(ctx context.Context, userID, email string) (Role, error) {
	if userID == "" {
		return "", fmt.Errorf("auth: missing user id: %w", ErrUnresolved)
	}

	if r.superAdminEmail != "" && normalizeEmail(email) == r.superAdminEmail {
		return RoleAdmin, nil
	}

	var (
		isAdmin   bool
		agent     *AgentRecord
		userRoles []UserRoleRecord
		profile   *ProfileRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		isAdmin, err = r.repo.IsAdmin(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		agent, err = r.repo.GetAgent(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		userRoles, err = r.repo.ListUserRoles(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = r.repo.GetProfile(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("auth: resolve role: %v: %w", err, ErrUnresolved)
	}

	return pickRole(isAdmin, agent, userRoles, profile), nil
}

// pickRole applies the fixed precedence order over the relation results.
func pickRole(isAdmin bool, agent *AgentRecord, userRoles []UserRoleRecord, profile *ProfileRecord) Role {
	if isAdmin {
		return RoleAdmin
	}

	// Presence in the agents table wins regardless of approval state;
	// unapproved agents still land on the agent panel, which shows them a
	// pending-approval notice.
	if agent != nil {
		return RoleAgent
	}

	for _, rec := range userRoles {
		if (rec.Role == RoleAdmin || rec.Role == RoleSuperAdmin) && !explicitlyUnapproved(rec.IsApproved) {
			return RoleAdmin
		}
	}
	for _, rec := range userRoles {
		if rec.Role == RoleAgent && !explicitlyUnapproved(rec.IsApproved) {
			return RoleAgent
		}
	}
	for _, rec := range userRoles {
		if rec.IsApproved != nil && *rec.IsApproved && rec.Role != "" {
			return rec.Role
		}
	}

	if profile != nil && profile.Role != nil && *profile.Role != "" {
		return Role(*profile.Role)
	}

	return RoleUser
}

func explicitlyUnapproved(approved *bool) bool {
	return approved != nil && !*approved
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
