package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/models"
)

type PostRepo interface {
	CreatePost(ctx context.Context, p *models.GroupPost) error
	GetPostByID(ctx context.Context, id string) (*models.GroupPost, error)
	GetPostWithAuthor(ctx context.Context, id string) (*models.PostWithAuthor, error)
	UpdatePost(ctx context.Context, id string, p models.PostPatch, now time.Time) (*models.GroupPost, error)
	SetPostPinned(ctx context.Context, id string, pinned bool, now time.Time) error
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, f PostFilter) ([]models.PostWithAuthor, error)
	CountPosts(ctx context.Context, f PostFilter) (int, error)
	ListPostsByAuthor(ctx context.Context, authorID string, page Page) ([]models.PostWithGroup, error)
}

type PostFilter struct {
	GroupID  string
	AuthorID string
	Type     models.PostType
	Pinned   *bool
	Page     Page
}

const postCols = `p.id, p.group_id, p.author_id, p.title, p.content, p.type, p.is_pinned, p.created_at, p.updated_at`

func scanPost(r scanner, p *models.GroupPost, extra ...any) error {
	dest := []any{&p.ID, &p.GroupID, &p.AuthorID, &p.Title, &p.Content, &p.Type, &p.IsPinned, &p.CreatedAt, &p.UpdatedAt}
	return r.Scan(append(dest, extra...)...)
}

func (s *Store) CreatePost(ctx context.Context, p *models.GroupPost) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	newID(&p.ID)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO group_posts (id, group_id, author_id, title, content, type, is_pinned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.GroupID, p.AuthorID, p.Title, p.Content, string(p.Type), p.IsPinned, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*models.GroupPost, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var p models.GroupPost
	if err := scanPost(s.q.QueryRowContext(ctx, `SELECT `+postCols+` FROM group_posts p WHERE p.id = $1`, id), &p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) GetPostWithAuthor(ctx context.Context, id string) (*models.PostWithAuthor, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var (
		out models.PostWithAuthor
		a   userLite
	)
	row := s.q.QueryRowContext(ctx, `
		SELECT `+postCols+`, a.id, a.name
		FROM group_posts p
		LEFT JOIN users a ON a.id = p.author_id
		WHERE p.id = $1`, id)
	if err := scanPost(row, &out.GroupPost, a.named()...); err != nil {
		return nil, notFound(err)
	}
	out.Author = a.get()
	return &out, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch models.PostPatch, now time.Time) (*models.GroupPost, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	sets := []string{"updated_at = $1"}
	args := []any{now}
	idx := 2
	if patch.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", idx))
		args = append(args, *patch.Title)
		idx++
	}
	if patch.Content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", idx))
		args = append(args, *patch.Content)
		idx++
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE group_posts p SET %s WHERE p.id = $%d RETURNING `+postCols, strings.Join(sets, ", "), idx)
	var p models.GroupPost
	if err := scanPost(s.q.QueryRowContext(ctx, query, args...), &p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) SetPostPinned(ctx context.Context, id string, pinned bool, now time.Time) error {
	return s.execOne(ctx, "pin post",
		`UPDATE group_posts SET is_pinned = $2, updated_at = $3 WHERE id = $1`, id, pinned, now)
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete post", `DELETE FROM group_posts WHERE id = $1`, id)
}

func postWhere(f PostFilter) *where {
	w := &where{}
	if f.GroupID != "" {
		w.add("p.group_id = $%d", f.GroupID)
	}
	if f.AuthorID != "" {
		w.add("p.author_id = $%d", f.AuthorID)
	}
	if f.Type != "" {
		w.add("p.type = $%d", string(f.Type))
	}
	if f.Pinned != nil {
		w.add("p.is_pinned = $%d", *f.Pinned)
	}
	return w
}

func (f PostFilter) valid() bool {
	return (f.GroupID == "" || validID(f.GroupID)) && (f.AuthorID == "" || validID(f.AuthorID))
}

// ListPosts returns pinned posts first, newest first within each half.
func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]models.PostWithAuthor, error) {
	if !f.valid() {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := postWhere(f)
	query := `SELECT ` + postCols + `, a.id, a.name
		FROM group_posts p
		LEFT JOIN users a ON a.id = p.author_id` + w.String() + `
		ORDER BY p.is_pinned DESC, p.created_at DESC, p.id`
	query += w.page(f.Page)

	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.PostWithAuthor
	for rows.Next() {
		var (
			p models.PostWithAuthor
			a userLite
		)
		if err := scanPost(rows, &p.GroupPost, a.named()...); err != nil {
			return nil, err
		}
		p.Author = a.get()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	if !f.valid() {
		return 0, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := postWhere(f)
	return count(ctx, s.q, `SELECT COUNT(*) FROM group_posts p`+w.String(), w.args...)
}

func (s *Store) ListPostsByAuthor(ctx context.Context, authorID string, page Page) ([]models.PostWithGroup, error) {
	if !validID(authorID) {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := &where{}
	w.add("p.author_id = $%d", authorID)
	query := `SELECT ` + postCols + `, g.id, g.name, g.slug
		FROM group_posts p
		JOIN groups g ON g.id = p.group_id` + w.String() + `
		ORDER BY p.created_at DESC, p.id`
	query += w.page(page)

	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.PostWithGroup
	for rows.Next() {
		var p models.PostWithGroup
		if err := scanPost(rows, &p.GroupPost, &p.Group.ID, &p.Group.Name, &p.Group.Slug); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
