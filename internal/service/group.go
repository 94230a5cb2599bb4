package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/authz"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

const (
	defaultGroupPageSize  = 20
	defaultMemberPageSize = 50
)

type (
	GroupResponse     = action.Response[models.Group, action.GroupCode]
	GroupViewResponse = action.Response[models.GroupWithStats, action.GroupCode]
	GroupPageResponse = action.Response[action.Page[models.GroupWithCreator], action.GroupCode]
)

// GroupService covers the group lifecycle and membership management.
type GroupService struct {
	base
}

func NewGroupService(repo db.Repo, guard *authz.Guard, log *zap.Logger, opts ...Option) *GroupService {
	return &GroupService{base: newBase(repo, guard, log, opts)}
}

// Create submits a new group for review. The creator becomes its first approved admin.
func (s *GroupService) Create(ctx context.Context, sess auth.Session, in contract.CreateGroupInput) GroupResponse {
	return run(ctx, &s.base, sess, "group.create", func(ctx context.Context, u *auth.SessionUser) (*models.Group, action.GroupCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.GroupInvalidInput, err
		}
		_, err := s.repo.GetGroupBySlug(ctx, in.Slug)
		if err == nil {
			return nil, action.GroupSlugExists, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, action.GroupServerError, fmt.Errorf("check slug: %w", err)
		}

		now := s.clock()
		g := &models.Group{
			Name:        strings.TrimSpace(in.Name),
			Slug:        in.Slug,
			Description: trimOpt(in.Description),
			Category:    in.Category,
			CreatorID:   &u.ID,
			Status:      models.GroupPending,
			IsPublic:    in.IsPublic == nil || *in.IsPublic,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = s.repo.InTx(ctx, func(tx db.Repo) error {
			if err := tx.CreateGroup(ctx, g); err != nil {
				return err
			}
			return tx.CreateMember(ctx, &models.GroupMember{
				GroupID:   g.ID,
				UserID:    u.ID,
				Role:      models.MemberRoleAdmin,
				Status:    models.MemberApproved,
				JoinedAt:  &now,
				CreatedAt: now,
				UpdatedAt: now,
			})
		})
		if db.IsUniqueViolation(err) {
			return nil, action.GroupSlugExists, nil
		}
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("create group: %w", err)
		}
		s.log.Info("group submitted", zap.String("group_id", g.ID), zap.String("slug", g.Slug), zap.String("user_id", u.ID))
		s.notify.GroupSubmitted(ctx, *g)
		return g, action.GroupCreateSuccess, nil
	})
}

func (s *GroupService) Update(ctx context.Context, sess auth.Session, id string, in contract.UpdateGroupInput) GroupResponse {
	return run(ctx, &s.base, sess, "group.update", func(ctx context.Context, u *auth.SessionUser) (*models.Group, action.GroupCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.GroupInvalidInput, err
		}
		if _, err := s.repo.GetGroupByID(ctx, id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, action.GroupNotFound, nil
			}
			return nil, action.GroupServerError, fmt.Errorf("get group: %w", err)
		}
		ok, err := s.guard.CanManageGroup(ctx, u, id)
		if err != nil {
			return nil, action.GroupServerError, err
		}
		if !ok {
			return nil, action.GroupForbidden, action.Detail("Only admin can update the group")
		}
		if in.Empty() {
			return nil, action.GroupInvalidInput, action.Detail("Nothing to update")
		}

		patch := models.GroupPatch{Category: in.Category, IsPublic: in.IsPublic}
		if in.Description != nil {
			d := strings.TrimSpace(*in.Description)
			patch.Description = &d
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			patch.Name = &name
		}
		g, err := s.repo.UpdateGroup(ctx, id, patch, s.clock())
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.GroupNotFound, nil
		}
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("update group: %w", err)
		}
		return g, action.GroupUpdateSuccess, nil
	})
}

// Delete removes the group with its members and posts. Allowed for the creator and group admins.
func (s *GroupService) Delete(ctx context.Context, sess auth.Session, id string) action.Response[action.Empty, action.GroupCode] {
	return run(ctx, &s.base, sess, "group.delete", func(ctx context.Context, u *auth.SessionUser) (*action.Empty, action.GroupCode, error) {
		g, err := s.repo.GetGroupByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.GroupNotFound, nil
		}
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("get group: %w", err)
		}
		allowed := g.CreatorID != nil && *g.CreatorID == u.ID
		if !allowed {
			if allowed, err = s.guard.CanManageGroup(ctx, u, id); err != nil {
				return nil, action.GroupServerError, err
			}
		}
		if !allowed {
			return nil, action.GroupForbidden, action.Detail("Only admin can delete the group")
		}
		if err := s.repo.DeleteGroup(ctx, id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, action.GroupNotFound, nil
			}
			return nil, action.GroupServerError, fmt.Errorf("delete group: %w", err)
		}
		s.log.Info("group deleted", zap.String("group_id", id), zap.String("user_id", u.ID))
		return &action.Empty{}, action.GroupDeleteSuccess, nil
	})
}

func (s *GroupService) GetByID(ctx context.Context, sess auth.Session, id string) GroupViewResponse {
	return runPublic(ctx, &s.base, sess, "group.get", func(ctx context.Context, u *auth.SessionUser) (*models.GroupWithStats, action.GroupCode, error) {
		return s.view(ctx, u, id)
	})
}

func (s *GroupService) GetBySlug(ctx context.Context, sess auth.Session, slug string) GroupViewResponse {
	return runPublic(ctx, &s.base, sess, "group.get_by_slug", func(ctx context.Context, u *auth.SessionUser) (*models.GroupWithStats, action.GroupCode, error) {
		g, err := s.repo.GetGroupBySlug(ctx, slug)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.GroupNotFound, nil
		}
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("get group by slug: %w", err)
		}
		return s.view(ctx, u, g.ID)
	})
}

// view loads a group with counts. Approved groups are listed publicly, so their
// card is visible to anyone; pending and rejected ones only to members and moderators.
func (s *GroupService) view(ctx context.Context, u *auth.SessionUser, id string) (*models.GroupWithStats, action.GroupCode, error) {
	g, err := s.repo.GetGroupWithCreator(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, action.GroupNotFound, nil
	}
	if err != nil {
		return nil, action.GroupServerError, fmt.Errorf("get group: %w", err)
	}
	if g.Status != models.GroupApproved {
		ok, err := s.guard.CanViewGroup(ctx, u, &g.Group)
		if err != nil {
			return nil, action.GroupServerError, err
		}
		if !ok {
			if u == nil {
				return nil, action.GroupUnauthorized, nil
			}
			return nil, action.GroupForbidden, nil
		}
	}
	members, posts, err := s.repo.GroupStats(ctx, id)
	if err != nil {
		return nil, action.GroupServerError, fmt.Errorf("group stats: %w", err)
	}
	return &models.GroupWithStats{GroupWithCreator: *g, MemberCount: members, PostCount: posts}, action.GroupGetSuccess, nil
}

// ListApproved is the public catalogue; no session is needed.
func (s *GroupService) ListApproved(ctx context.Context, in contract.ListGroupsInput) GroupPageResponse {
	return runPublic(ctx, &s.base, nil, "group.list_approved", func(ctx context.Context, _ *auth.SessionUser) (*action.Page[models.GroupWithCreator], action.GroupCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.GroupInvalidInput, err
		}
		p := action.NewPaging(in.Page, in.PageSize, defaultGroupPageSize)
		return s.listGroups(ctx, db.GroupFilter{
			Status:   models.GroupApproved,
			Category: in.Category,
			Search:   strings.TrimSpace(in.Search),
			Page:     toPage(p),
		}, p)
	})
}

// ListPending is the moderation queue, oldest submissions first.
func (s *GroupService) ListPending(ctx context.Context, sess auth.Session, in contract.PageInput) GroupPageResponse {
	return run(ctx, &s.base, sess, "group.list_pending", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.GroupWithCreator], action.GroupCode, error) {
		if !s.guard.CanModeratePlatform(u) {
			return nil, action.GroupForbidden, nil
		}
		if err := contract.Validate(in); err != nil {
			return nil, action.GroupInvalidInput, err
		}
		p := action.NewPaging(in.Page, in.PageSize, defaultGroupPageSize)
		return s.listGroups(ctx, db.GroupFilter{Status: models.GroupPending, Oldest: true, Page: toPage(p)}, p)
	})
}

func (s *GroupService) listGroups(ctx context.Context, f db.GroupFilter, p action.Paging) (*action.Page[models.GroupWithCreator], action.GroupCode, error) {
	items, err := s.repo.ListGroups(ctx, f)
	if err != nil {
		return nil, action.GroupServerError, fmt.Errorf("list groups: %w", err)
	}
	total, err := s.repo.CountGroups(ctx, f)
	if err != nil {
		return nil, action.GroupServerError, fmt.Errorf("count groups: %w", err)
	}
	return action.NewPage(items, total, p), action.GroupGetSuccess, nil
}

// ListMine returns the caller's memberships, approved ones by default.
func (s *GroupService) ListMine(ctx context.Context, sess auth.Session, in contract.ListMyGroupsInput) action.Response[action.Page[models.MemberWithGroup], action.GroupCode] {
	return run(ctx, &s.base, sess, "group.list_mine", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.MemberWithGroup], action.GroupCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.GroupInvalidInput, err
		}
		status := in.Status
		if status == "" {
			status = models.MemberApproved
		}
		p := action.NewPaging(in.Page, in.PageSize, defaultGroupPageSize)
		f := db.MembershipFilter{UserID: u.ID, Status: status, Page: toPage(p)}
		items, err := s.repo.ListUserGroups(ctx, f)
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("list user groups: %w", err)
		}
		total, err := s.repo.CountUserGroups(ctx, f)
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("count user groups: %w", err)
		}
		return action.NewPage(items, total, p), action.GroupGetSuccess, nil
	})
}

// ApproveGroup records the moderator decision. A group is reviewed exactly once;
// the store only updates rows still pending, so a concurrent second review loses.
func (s *GroupService) ApproveGroup(ctx context.Context, sess auth.Session, id string, in contract.ReviewGroupInput) GroupResponse {
	return run(ctx, &s.base, sess, "group.review", func(ctx context.Context, u *auth.SessionUser) (*models.Group, action.GroupCode, error) {
		if !s.guard.CanModeratePlatform(u) {
			return nil, action.GroupForbidden, nil
		}
		if err := contract.Validate(in); err != nil {
			return nil, action.GroupInvalidInput, err
		}
		g, err := s.repo.GetGroupByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.GroupNotFound, nil
		}
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("get group: %w", err)
		}
		if g.Status != models.GroupPending {
			return nil, action.GroupInvalidStatus, nil
		}

		status, code := models.GroupApproved, action.GroupApproveSuccess
		var reason *string
		if !in.Approved {
			status, code = models.GroupRejected, action.GroupRejectSuccess
			reason = trimOpt(in.Reason)
		}
		ok, err := s.repo.ReviewGroup(ctx, id, status, reason, u.ID, s.clock())
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("review group: %w", err)
		}
		if !ok {
			return nil, action.GroupInvalidStatus, nil
		}
		g, err = s.repo.GetGroupByID(ctx, id)
		if err != nil {
			return nil, action.GroupServerError, fmt.Errorf("reload group: %w", err)
		}
		s.log.Info("group reviewed", zap.String("group_id", id), zap.String("status", string(status)), zap.String("reviewer_id", u.ID))
		return g, code, nil
	})
}

// trimOpt normalizes optional plain text; blank becomes nil.
func trimOpt(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
