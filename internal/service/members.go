package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

type MemberResponse = action.Response[models.GroupMember, action.MemberCode]

// JoinGroup creates the caller's membership. Public groups admit immediately;
// private ones queue a request for the group admins.
func (s *GroupService) JoinGroup(ctx context.Context, sess auth.Session, groupID string) MemberResponse {
	return run(ctx, &s.base, sess, "member.join", func(ctx context.Context, u *auth.SessionUser) (*models.GroupMember, action.MemberCode, error) {
		g, err := s.repo.GetGroupByID(ctx, groupID)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.MemberGroupNotFound, nil
		}
		if err != nil {
			return nil, action.MemberServerError, fmt.Errorf("get group: %w", err)
		}
		if g.Status != models.GroupApproved {
			return nil, action.MemberInvalidStatus, action.Detail("Group is not open for joining")
		}

		now := s.clock()
		status, code := models.MemberPending, action.MemberJoinRequested
		var joinedAt *time.Time
		if g.IsPublic {
			status, code, joinedAt = models.MemberApproved, action.MemberJoinSuccess, &now
		}

		var out *models.GroupMember
		err = s.repo.InTx(ctx, func(tx db.Repo) error {
			m, err := tx.GetMember(ctx, groupID, u.ID)
			switch {
			case errors.Is(err, db.ErrNotFound):
				m = &models.GroupMember{
					GroupID:   groupID,
					UserID:    u.ID,
					Role:      models.MemberRoleMember,
					Status:    status,
					JoinedAt:  joinedAt,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := tx.CreateMember(ctx, m); err != nil {
					return err
				}
				out = m
				return nil
			case err != nil:
				return fmt.Errorf("get membership: %w", err)
			}
			if c, dup := existingMembership(m); dup {
				return abort[action.MemberCode]{c}
			}
			// A rejected request is reopened on the same row.
			if m.Role != models.MemberRoleMember {
				if err := tx.UpdateMemberRole(ctx, m.ID, models.MemberRoleMember, now); err != nil {
					return err
				}
			}
			if err := tx.SetMemberStatus(ctx, m.ID, status, joinedAt, now); err != nil {
				return err
			}
			out, err = tx.GetMemberByID(ctx, m.ID)
			return err
		})
		if c, ok := aborted[action.MemberCode](err); ok {
			return nil, c, nil
		}
		if db.IsUniqueViolation(err) {
			// Lost a race with a concurrent join by the same user.
			m, gerr := s.repo.GetMember(ctx, groupID, u.ID)
			if gerr != nil {
				return nil, action.MemberServerError, fmt.Errorf("reload membership: %w", gerr)
			}
			c, _ := existingMembership(m)
			return nil, c, nil
		}
		if err != nil {
			return nil, action.MemberServerError, fmt.Errorf("join group: %w", err)
		}
		s.log.Info("group join", zap.String("group_id", groupID), zap.String("user_id", u.ID), zap.String("status", string(status)))
		return out, code, nil
	})
}

func existingMembership(m *models.GroupMember) (action.MemberCode, bool) {
	switch m.Status {
	case models.MemberPending:
		return action.MemberAlreadySubmit, true
	case models.MemberApproved:
		return action.MemberAlreadyExists, true
	}
	return "", false
}

// LeaveGroup deletes the caller's own membership unless they are the last approved admin.
func (s *GroupService) LeaveGroup(ctx context.Context, sess auth.Session, groupID string) action.Response[action.Empty, action.MemberCode] {
	return run(ctx, &s.base, sess, "member.leave", func(ctx context.Context, u *auth.SessionUser) (*action.Empty, action.MemberCode, error) {
		err := s.repo.InTx(ctx, func(tx db.Repo) error {
			if err := tx.LockGroup(ctx, groupID); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return abort[action.MemberCode]{action.MemberGroupNotFound}
				}
				return fmt.Errorf("lock group: %w", err)
			}
			m, err := tx.GetMember(ctx, groupID, u.ID)
			if errors.Is(err, db.ErrNotFound) {
				return abort[action.MemberCode]{action.MemberNotFound}
			}
			if err != nil {
				return fmt.Errorf("get membership: %w", err)
			}
			orphan, err := wouldOrphan(ctx, tx, m)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if orphan {
				return abort[action.MemberCode]{action.MemberLastAdmin}
			}
			return tx.DeleteMember(ctx, m.ID)
		})
		if c, ok := aborted[action.MemberCode](err); ok {
			return nil, c, nil
		}
		if err != nil {
			return nil, action.MemberServerError, fmt.Errorf("leave group: %w", err)
		}
		return &action.Empty{}, action.MemberLeaveSuccess, nil
	})
}

// GetMembers lists a group's members, admins first. Approved members are listed
// to anyone who can see the group; pending and rejected ones only to its managers.
func (s *GroupService) GetMembers(ctx context.Context, sess auth.Session, groupID string, in contract.ListMembersInput) action.Response[action.Page[models.MemberWithUser], action.MemberCode] {
	return run(ctx, &s.base, sess, "member.list", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.MemberWithUser], action.MemberCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.MemberInvalidInput, err
		}
		g, err := s.repo.GetGroupByID(ctx, groupID)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.MemberGroupNotFound, nil
		}
		if err != nil {
			return nil, action.MemberServerError, fmt.Errorf("get group: %w", err)
		}
		ok, err := s.guard.CanViewGroup(ctx, u, g)
		if err != nil {
			return nil, action.MemberServerError, err
		}
		if !ok {
			return nil, action.MemberForbidden, action.Detail("Only members can see this group")
		}

		status := in.Status
		if status == "" {
			status = models.MemberApproved
		}
		if status != models.MemberApproved && !s.guard.CanModeratePlatform(u) {
			manage, err := s.guard.CanManageGroup(ctx, u, groupID)
			if err != nil {
				return nil, action.MemberServerError, err
			}
			if !manage {
				return nil, action.MemberForbidden, nil
			}
		}

		p := action.NewPaging(in.Page, in.PageSize, defaultMemberPageSize)
		f := db.MemberFilter{GroupID: groupID, Role: in.Role, Status: status, Page: toPage(p)}
		items, err := s.repo.ListMembers(ctx, f)
		if err != nil {
			return nil, action.MemberServerError, fmt.Errorf("list members: %w", err)
		}
		total, err := s.repo.CountMembers(ctx, f)
		if err != nil {
			return nil, action.MemberServerError, fmt.Errorf("count members: %w", err)
		}
		return action.NewPage(items, total, p), action.MemberGetSuccess, nil
	})
}

func (s *GroupService) UpdateMemberRole(ctx context.Context, sess auth.Session, memberID string, in contract.UpdateMemberRoleInput) MemberResponse {
	return run(ctx, &s.base, sess, "member.update_role", func(ctx context.Context, u *auth.SessionUser) (*models.GroupMember, action.MemberCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.MemberInvalidInput, err
		}
		return s.manageMember(ctx, u, memberID, func(tx db.Repo, m *models.GroupMember) (action.MemberCode, error) {
			if m.Status != models.MemberApproved {
				return action.MemberInvalidStatus, nil
			}
			if in.Role == m.Role {
				return action.MemberUpdateSuccess, nil
			}
			if in.Role == models.MemberRoleMember {
				orphan, err := wouldOrphan(ctx, tx, m)
				if err != nil {
					return "", fmt.Errorf("count admins: %w", err)
				}
				if orphan {
					return action.MemberLastAdmin, nil
				}
			}
			return action.MemberUpdateSuccess, tx.UpdateMemberRole(ctx, m.ID, in.Role, s.clock())
		})
	})
}

func (s *GroupService) RemoveMember(ctx context.Context, sess auth.Session, memberID string) MemberResponse {
	return run(ctx, &s.base, sess, "member.remove", func(ctx context.Context, u *auth.SessionUser) (*models.GroupMember, action.MemberCode, error) {
		return s.manageMember(ctx, u, memberID, func(tx db.Repo, m *models.GroupMember) (action.MemberCode, error) {
			orphan, err := wouldOrphan(ctx, tx, m)
			if err != nil {
				return "", fmt.Errorf("count admins: %w", err)
			}
			if orphan {
				return action.MemberLastAdmin, nil
			}
			return action.MemberDeleteSuccess, tx.DeleteMember(ctx, m.ID)
		})
	})
}

func (s *GroupService) ApproveMember(ctx context.Context, sess auth.Session, memberID string) MemberResponse {
	return run(ctx, &s.base, sess, "member.approve", func(ctx context.Context, u *auth.SessionUser) (*models.GroupMember, action.MemberCode, error) {
		return s.manageMember(ctx, u, memberID, func(tx db.Repo, m *models.GroupMember) (action.MemberCode, error) {
			if m.Status != models.MemberPending {
				return action.MemberInvalidStatus, nil
			}
			now := s.clock()
			return action.MemberApproveSuccess, tx.SetMemberStatus(ctx, m.ID, models.MemberApproved, &now, now)
		})
	})
}

func (s *GroupService) RejectMember(ctx context.Context, sess auth.Session, memberID string) MemberResponse {
	return run(ctx, &s.base, sess, "member.reject", func(ctx context.Context, u *auth.SessionUser) (*models.GroupMember, action.MemberCode, error) {
		return s.manageMember(ctx, u, memberID, func(tx db.Repo, m *models.GroupMember) (action.MemberCode, error) {
			if m.Status != models.MemberPending {
				return action.MemberInvalidStatus, nil
			}
			return action.MemberRejectSuccess, tx.SetMemberStatus(ctx, m.ID, models.MemberRejected, nil, s.clock())
		})
	})
}

type memberChange func(tx db.Repo, m *models.GroupMember) (action.MemberCode, error)

// manageMember runs change for a group admin inside a transaction holding the
// group row lock, so admin counts cannot shift underneath it. A failing code
// rolls the transaction back. The member is returned as it is after the change,
// or as it was before a removal.
func (s *GroupService) manageMember(ctx context.Context, u *auth.SessionUser, memberID string, change memberChange) (*models.GroupMember, action.MemberCode, error) {
	m, err := s.repo.GetMemberByID(ctx, memberID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, action.MemberNotFound, nil
	}
	if err != nil {
		return nil, action.MemberServerError, fmt.Errorf("get member: %w", err)
	}

	var (
		out  *models.GroupMember
		code action.MemberCode
	)
	err = s.repo.InTx(ctx, func(tx db.Repo) error {
		if err := tx.LockGroup(ctx, m.GroupID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return abort[action.MemberCode]{action.MemberGroupNotFound}
			}
			return fmt.Errorf("lock group: %w", err)
		}
		cur, err := tx.GetMemberByID(ctx, memberID)
		if errors.Is(err, db.ErrNotFound) {
			return abort[action.MemberCode]{action.MemberNotFound}
		}
		if err != nil {
			return fmt.Errorf("get member: %w", err)
		}
		ok, err := s.guard.In(tx).CanManageGroup(ctx, u, cur.GroupID)
		if err != nil {
			return err
		}
		if !ok {
			return abort[action.MemberCode]{action.MemberForbidden}
		}
		c, err := change(tx, cur)
		if err != nil {
			return err
		}
		if !c.Succeeded() {
			return abort[action.MemberCode]{c}
		}
		code = c
		if c == action.MemberDeleteSuccess {
			out = cur
			return nil
		}
		out, err = tx.GetMemberByID(ctx, memberID)
		return err
	})
	if c, ok := aborted[action.MemberCode](err); ok {
		return nil, c, nil
	}
	if err != nil {
		return nil, action.MemberServerError, fmt.Errorf("manage member: %w", err)
	}
	s.log.Info("member changed", zap.String("member_id", memberID), zap.String("result", string(code)), zap.String("user_id", u.ID))
	return out, code, nil
}
