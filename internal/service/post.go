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
	defaultPostPageSize         = 20
	defaultAnnouncementPageSize = 10
)

type (
	PostResponse     = action.Response[models.GroupPost, action.PostCode]
	PostPageResponse = action.Response[action.Page[models.PostWithAuthor], action.PostCode]
)

// PostService manages discussions and announcements inside groups.
type PostService struct {
	base
}

func NewPostService(repo db.Repo, guard *authz.Guard, log *zap.Logger, opts ...Option) *PostService {
	return &PostService{base: newBase(repo, guard, log, opts)}
}

// Create publishes a post. Approved members may post discussions; announcements need a group admin.
func (s *PostService) Create(ctx context.Context, sess auth.Session, in contract.CreatePostInput) PostResponse {
	return run(ctx, &s.base, sess, "post.create", func(ctx context.Context, u *auth.SessionUser) (*models.GroupPost, action.PostCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.PostInvalidInput, err
		}
		if _, err := s.repo.GetGroupByID(ctx, in.GroupID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, action.PostGroupNotFound, nil
			}
			return nil, action.PostServerError, fmt.Errorf("get group: %w", err)
		}
		m, err := s.guard.Membership(ctx, u, in.GroupID)
		if err != nil {
			return nil, action.PostServerError, err
		}
		if m == nil || m.Status != models.MemberApproved {
			return nil, action.PostForbidden, action.Detail("Only group members can post")
		}
		typ := in.Type
		if typ == "" {
			typ = models.PostDiscussion
		}
		if typ == models.PostAnnouncement && !m.IsApprovedAdmin() {
			return nil, action.PostForbidden, action.Detail("Only admin can create announcements")
		}
		content := contract.Sanitize(in.Content)
		if content == "" {
			return nil, action.PostInvalidInput, action.Detail("content: must not be empty")
		}

		now := s.clock()
		p := &models.GroupPost{
			GroupID:   in.GroupID,
			AuthorID:  &u.ID,
			Title:     strings.TrimSpace(in.Title),
			Content:   content,
			Type:      typ,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreatePost(ctx, p); err != nil {
			return nil, action.PostServerError, fmt.Errorf("create post: %w", err)
		}
		return p, action.PostCreateSuccess, nil
	})
}

func (s *PostService) GetByID(ctx context.Context, sess auth.Session, id string) action.Response[models.PostWithAuthor, action.PostCode] {
	return run(ctx, &s.base, sess, "post.get", func(ctx context.Context, u *auth.SessionUser) (*models.PostWithAuthor, action.PostCode, error) {
		p, err := s.repo.GetPostWithAuthor(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.PostNotFound, nil
		}
		if err != nil {
			return nil, action.PostServerError, fmt.Errorf("get post: %w", err)
		}
		if code, err := s.canRead(ctx, u, p.GroupID); code != "" || err != nil {
			return nil, code, err
		}
		return p, action.PostGetSuccess, nil
	})
}

// Update edits title or content. Allowed for the author and group admins.
func (s *PostService) Update(ctx context.Context, sess auth.Session, id string, in contract.UpdatePostInput) PostResponse {
	return run(ctx, &s.base, sess, "post.update", func(ctx context.Context, u *auth.SessionUser) (*models.GroupPost, action.PostCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.PostInvalidInput, err
		}
		p, code, err := s.editable(ctx, u, id)
		if code != "" || err != nil {
			return nil, code, err
		}
		var patch models.PostPatch
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			patch.Title = &t
		}
		if in.Content != nil {
			c := contract.Sanitize(*in.Content)
			if c == "" {
				return nil, action.PostInvalidInput, action.Detail("content: must not be empty")
			}
			patch.Content = &c
		}
		if patch.Title == nil && patch.Content == nil {
			return nil, action.PostInvalidInput, action.Detail("Nothing to update")
		}
		updated, err := s.repo.UpdatePost(ctx, p.ID, patch, s.clock())
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.PostNotFound, nil
		}
		if err != nil {
			return nil, action.PostServerError, fmt.Errorf("update post: %w", err)
		}
		return updated, action.PostUpdateSuccess, nil
	})
}

func (s *PostService) Delete(ctx context.Context, sess auth.Session, id string) action.Response[action.Empty, action.PostCode] {
	return run(ctx, &s.base, sess, "post.delete", func(ctx context.Context, u *auth.SessionUser) (*action.Empty, action.PostCode, error) {
		p, code, err := s.editable(ctx, u, id)
		if code != "" || err != nil {
			return nil, code, err
		}
		if err := s.repo.DeletePost(ctx, p.ID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, action.PostNotFound, nil
			}
			return nil, action.PostServerError, fmt.Errorf("delete post: %w", err)
		}
		s.log.Info("post deleted", zap.String("post_id", p.ID), zap.String("group_id", p.GroupID), zap.String("user_id", u.ID))
		return &action.Empty{}, action.PostDeleteSuccess, nil
	})
}

// editable loads the post and checks the caller is its author or a group admin.
// A non-empty code means stop.
func (s *PostService) editable(ctx context.Context, u *auth.SessionUser, id string) (*models.GroupPost, action.PostCode, error) {
	p, err := s.repo.GetPostByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, action.PostNotFound, nil
	}
	if err != nil {
		return nil, action.PostServerError, fmt.Errorf("get post: %w", err)
	}
	if p.AuthorID != nil && *p.AuthorID == u.ID {
		return p, "", nil
	}
	ok, err := s.guard.CanManageGroup(ctx, u, p.GroupID)
	if err != nil {
		return nil, action.PostServerError, err
	}
	if !ok {
		return nil, action.PostForbidden, nil
	}
	return p, "", nil
}

// TogglePin pins or unpins a post. The pinned count is checked under the group
// row lock, so two admins cannot both take the last slot.
func (s *PostService) TogglePin(ctx context.Context, sess auth.Session, id string, pinned bool) PostResponse {
	return run(ctx, &s.base, sess, "post.toggle_pin", func(ctx context.Context, u *auth.SessionUser) (*models.GroupPost, action.PostCode, error) {
		p, err := s.repo.GetPostByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.PostNotFound, nil
		}
		if err != nil {
			return nil, action.PostServerError, fmt.Errorf("get post: %w", err)
		}

		var out *models.GroupPost
		err = s.repo.InTx(ctx, func(tx db.Repo) error {
			if err := tx.LockGroup(ctx, p.GroupID); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return abort[action.PostCode]{action.PostGroupNotFound}
				}
				return fmt.Errorf("lock group: %w", err)
			}
			ok, err := s.guard.In(tx).CanManageGroup(ctx, u, p.GroupID)
			if err != nil {
				return err
			}
			if !ok {
				return abort[action.PostCode]{action.PostForbidden}
			}
			cur, err := tx.GetPostByID(ctx, id)
			if errors.Is(err, db.ErrNotFound) {
				return abort[action.PostCode]{action.PostNotFound}
			}
			if err != nil {
				return fmt.Errorf("get post: %w", err)
			}
			if pinned && !cur.IsPinned {
				n, err := tx.CountPosts(ctx, db.PostFilter{GroupID: cur.GroupID, Pinned: &pinned})
				if err != nil {
					return fmt.Errorf("count pinned: %w", err)
				}
				if n >= models.MaxPinnedPosts {
					return abort[action.PostCode]{action.PostPinLimitReached}
				}
			}
			if cur.IsPinned != pinned {
				if err := tx.SetPostPinned(ctx, id, pinned, s.clock()); err != nil {
					return err
				}
			}
			out, err = tx.GetPostByID(ctx, id)
			return err
		})
		if c, ok := aborted[action.PostCode](err); ok {
			if c == action.PostForbidden {
				return nil, c, action.Detail("Only admin can pin posts")
			}
			return nil, c, nil
		}
		if err != nil {
			return nil, action.PostServerError, fmt.Errorf("toggle pin: %w", err)
		}
		if pinned {
			return out, action.PostPinSuccess, nil
		}
		return out, action.PostUnpinSuccess, nil
	})
}

// ListByGroup lists posts with pinned ones first, then newest first.
func (s *PostService) ListByGroup(ctx context.Context, sess auth.Session, groupID string, in contract.ListPostsInput) PostPageResponse {
	return run(ctx, &s.base, sess, "post.list", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.PostWithAuthor], action.PostCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.PostInvalidInput, err
		}
		p := action.NewPaging(in.Page, in.PageSize, defaultPostPageSize)
		return s.list(ctx, u, db.PostFilter{GroupID: groupID, Type: in.Type, Page: toPage(p)}, p)
	})
}

// GetAnnouncements returns the first page of a group's announcements.
func (s *PostService) GetAnnouncements(ctx context.Context, sess auth.Session, groupID string, pageSize int) PostPageResponse {
	return run(ctx, &s.base, sess, "post.announcements", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.PostWithAuthor], action.PostCode, error) {
		p := action.NewPaging(1, pageSize, defaultAnnouncementPageSize)
		return s.list(ctx, u, db.PostFilter{GroupID: groupID, Type: models.PostAnnouncement, Page: toPage(p)}, p)
	})
}

func (s *PostService) list(ctx context.Context, u *auth.SessionUser, f db.PostFilter, p action.Paging) (*action.Page[models.PostWithAuthor], action.PostCode, error) {
	if code, err := s.canRead(ctx, u, f.GroupID); code != "" || err != nil {
		return nil, code, err
	}
	items, err := s.repo.ListPosts(ctx, f)
	if err != nil {
		return nil, action.PostServerError, fmt.Errorf("list posts: %w", err)
	}
	total, err := s.repo.CountPosts(ctx, f)
	if err != nil {
		return nil, action.PostServerError, fmt.Errorf("count posts: %w", err)
	}
	return action.NewPage(items, total, p), action.PostGetSuccess, nil
}

// ListByAuthor lists a user's posts across groups. Users see their own; moderators anyone's.
func (s *PostService) ListByAuthor(ctx context.Context, sess auth.Session, authorID string, in contract.PageInput) action.Response[action.Page[models.PostWithGroup], action.PostCode] {
	return run(ctx, &s.base, sess, "post.list_by_author", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.PostWithGroup], action.PostCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.PostInvalidInput, err
		}
		if authorID != u.ID && !s.guard.CanModeratePlatform(u) {
			return nil, action.PostForbidden, nil
		}
		p := action.NewPaging(in.Page, in.PageSize, defaultPostPageSize)
		items, err := s.repo.ListPostsByAuthor(ctx, authorID, toPage(p))
		if err != nil {
			return nil, action.PostServerError, fmt.Errorf("list posts by author: %w", err)
		}
		total, err := s.repo.CountPosts(ctx, db.PostFilter{AuthorID: authorID})
		if err != nil {
			return nil, action.PostServerError, fmt.Errorf("count posts: %w", err)
		}
		return action.NewPage(items, total, p), action.PostGetSuccess, nil
	})
}

func (s *PostService) canRead(ctx context.Context, u *auth.SessionUser, groupID string) (action.PostCode, error) {
	g, err := s.repo.GetGroupByID(ctx, groupID)
	if errors.Is(err, db.ErrNotFound) {
		return action.PostGroupNotFound, nil
	}
	if err != nil {
		return action.PostServerError, fmt.Errorf("get group: %w", err)
	}
	ok, err := s.guard.CanViewGroup(ctx, u, g)
	if err != nil {
		return action.PostServerError, err
	}
	if !ok {
		return action.PostForbidden, nil
	}
	return "", nil
}
