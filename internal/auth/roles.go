package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

// RoleGrants maps configured emails to platform roles. Signup never lets a user
// pick a role, so this is the only way moderators and admins come to exist.
type RoleGrants map[string]models.Role

// NewRoleGrants builds the grants; an email listed as both gets admin.
func NewRoleGrants(admins, moderators []string) RoleGrants {
	g := make(RoleGrants, len(admins)+len(moderators))
	for _, e := range moderators {
		g[normEmail(e)] = models.Moderator
	}
	for _, e := range admins {
		g[normEmail(e)] = models.Admin
	}
	delete(g, "")
	return g
}

// For returns the role a new account with this email starts with.
func (g RoleGrants) For(email string) models.Role {
	if r, ok := g[normEmail(email)]; ok {
		return r
	}
	return models.Student
}

// ApplyRoleGrants promotes accounts that already exist. Emails without an account
// are skipped; they get their role on signup.
func ApplyRoleGrants(ctx context.Context, users db.UserRepo, g RoleGrants, now time.Time, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	promoted := 0
	for email, role := range g {
		ok, err := users.PromoteUser(ctx, email, role, now)
		if err != nil {
			return promoted, fmt.Errorf("grant %s: %w", role, err)
		}
		if ok {
			promoted++
			log.Info("role granted", zap.String("email", email), zap.String("role", string(role)))
		}
	}
	return promoted, nil
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
