// Package authz answers capability questions for services.
// Platform roles come from the session; group roles come from group_members.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

// HasAnyRole reports whether the session user holds one of the platform roles.
func HasAnyRole(u *auth.SessionUser, roles ...models.Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Guard is injected into each service. It is stateless apart from the member lookup.
type Guard struct {
	members db.MemberRepo
}

func NewGuard(members db.MemberRepo) *Guard {
	return &Guard{members: members}
}

// In returns a Guard reading through repo, typically the transaction in progress.
func (g *Guard) In(repo db.MemberRepo) *Guard {
	return &Guard{members: repo}
}

// CanModeratePlatform: review groups, see pending groups.
func (g *Guard) CanModeratePlatform(u *auth.SessionUser) bool {
	return HasAnyRole(u, models.Moderator, models.Admin)
}

// CanTriageFeedback: see all feedback, change its status, read stats.
func (g *Guard) CanTriageFeedback(u *auth.SessionUser) bool {
	return HasAnyRole(u, models.Admin)
}

// Membership returns the caller's membership in the group, or nil.
func (g *Guard) Membership(ctx context.Context, u *auth.SessionUser, groupID string) (*models.GroupMember, error) {
	if u == nil {
		return nil, nil
	}
	m, err := g.members.GetMember(ctx, groupID, u.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// CanManageGroup is true for approved admins of the group.
func (g *Guard) CanManageGroup(ctx context.Context, u *auth.SessionUser, groupID string) (bool, error) {
	m, err := g.Membership(ctx, u, groupID)
	if err != nil {
		return false, err
	}
	return m.IsApprovedAdmin(), nil
}

// IsApprovedMember is true for any approved membership, admin or not.
func (g *Guard) IsApprovedMember(ctx context.Context, u *auth.SessionUser, groupID string) (bool, error) {
	m, err := g.Membership(ctx, u, groupID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Status == models.MemberApproved, nil
}

// CanViewGroup: approved public groups are open to everyone. Private and
// not yet approved groups are visible to approved members and platform moderators only.
func (g *Guard) CanViewGroup(ctx context.Context, u *auth.SessionUser, grp *models.Group) (bool, error) {
	if grp.Status == models.GroupApproved && grp.IsPublic {
		return true, nil
	}
	if g.CanModeratePlatform(u) {
		return true, nil
	}
	return g.IsApprovedMember(ctx, u, grp.ID)
}
