package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/models"
)

type GroupRepo interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroupByID(ctx context.Context, id string) (*models.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error)
	GetGroupWithCreator(ctx context.Context, id string) (*models.GroupWithCreator, error)
	UpdateGroup(ctx context.Context, id string, p models.GroupPatch, now time.Time) (*models.Group, error)
	// ReviewGroup moves a pending group to status. It reports false when the
	// group was no longer pending, so only one concurrent review wins.
	ReviewGroup(ctx context.Context, id string, status models.GroupStatus, reason *string, reviewerID string, now time.Time) (bool, error)
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context, f GroupFilter) ([]models.GroupWithCreator, error)
	CountGroups(ctx context.Context, f GroupFilter) (int, error)
	GroupStats(ctx context.Context, id string) (members, posts int, err error)
}

type GroupFilter struct {
	Status   models.GroupStatus // empty = any
	Category models.GroupCategory
	Search   string
	Oldest   bool // created_at asc instead of desc
	Page     Page
}

const groupCols = `g.id, g.name, g.slug, g.description, g.category, g.creator_id, g.status,
	g.is_public, g.rejected_reason, g.reviewed_by, g.reviewed_at, g.created_at, g.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(r scanner, g *models.Group, extra ...any) error {
	dest := []any{&g.ID, &g.Name, &g.Slug, &g.Description, &g.Category, &g.CreatorID, &g.Status,
		&g.IsPublic, &g.RejectedReason, &g.ReviewedBy, &g.ReviewedAt, &g.CreatedAt, &g.UpdatedAt}
	return r.Scan(append(dest, extra...)...)
}

// userLite collects a LEFT JOINed user; all columns are NULL when there is none.
type userLite struct {
	id, name, email *string
}

func (u *userLite) dest() []any { return []any{&u.id, &u.name, &u.email} }

// named scans only id and name, for projections shown to any viewer.
func (u *userLite) named() []any { return []any{&u.id, &u.name} }

func (u *userLite) get() *models.UserLite {
	if u.id == nil {
		return nil
	}
	out := &models.UserLite{ID: *u.id, Name: u.name}
	if u.email != nil {
		out.Email = *u.email
	}
	return out
}

func (s *Store) CreateGroup(ctx context.Context, g *models.Group) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	newID(&g.ID)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO groups (id, name, slug, description, category, creator_id, status, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.Name, g.Slug, g.Description, string(g.Category), g.CreatorID, string(g.Status), g.IsPublic, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *Store) GetGroupByID(ctx context.Context, id string) (*models.Group, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return s.getGroup(ctx, `SELECT `+groupCols+` FROM groups g WHERE g.id = $1`, id)
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	return s.getGroup(ctx, `SELECT `+groupCols+` FROM groups g WHERE g.slug = $1`, slug)
}

func (s *Store) getGroup(ctx context.Context, query string, arg any) (*models.Group, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var g models.Group
	if err := scanGroup(s.q.QueryRowContext(ctx, query, arg), &g); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *Store) GetGroupWithCreator(ctx context.Context, id string) (*models.GroupWithCreator, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var (
		out models.GroupWithCreator
		c   userLite
	)
	row := s.q.QueryRowContext(ctx, `
		SELECT `+groupCols+`, c.id, c.name, c.email
		FROM groups g
		LEFT JOIN users c ON c.id = g.creator_id
		WHERE g.id = $1`, id)
	if err := scanGroup(row, &out.Group, c.dest()...); err != nil {
		return nil, notFound(err)
	}
	out.Creator = c.get()
	return &out, nil
}

// UpdateGroup applies the non-nil fields of p and bumps updated_at.
func (s *Store) UpdateGroup(ctx context.Context, id string, p models.GroupPatch, now time.Time) (*models.Group, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	sets := []string{"updated_at = $1"}
	args := []any{now}
	idx := 2
	if p.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *p.Name)
		idx++
	}
	if p.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, *p.Description)
		idx++
	}
	if p.Category != nil {
		sets = append(sets, fmt.Sprintf("category = $%d", idx))
		args = append(args, string(*p.Category))
		idx++
	}
	if p.IsPublic != nil {
		sets = append(sets, fmt.Sprintf("is_public = $%d", idx))
		args = append(args, *p.IsPublic)
		idx++
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE groups g SET %s WHERE g.id = $%d RETURNING `+groupCols, strings.Join(sets, ", "), idx)
	var g models.Group
	if err := scanGroup(s.q.QueryRowContext(ctx, query, args...), &g); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *Store) ReviewGroup(ctx context.Context, id string, status models.GroupStatus, reason *string, reviewerID string, now time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, `
		UPDATE groups
		SET status = $2, rejected_reason = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'pending'`,
		id, string(status), reason, reviewerID, now)
	if err != nil {
		return false, fmt.Errorf("review group: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DeleteGroup removes the group; members and posts go with it via ON DELETE CASCADE.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func groupWhere(f GroupFilter) *where {
	w := &where{}
	if f.Status != "" {
		w.add("g.status = $%d", string(f.Status))
	}
	if f.Category != "" {
		w.add("g.category = $%d", string(f.Category))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("(g.name ILIKE $%[1]d OR g.description ILIKE $%[1]d OR g.slug ILIKE $%[1]d)", likePattern(s))
	}
	return w
}

func (s *Store) ListGroups(ctx context.Context, f GroupFilter) ([]models.GroupWithCreator, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := groupWhere(f)
	order := " ORDER BY g.created_at DESC, g.id"
	if f.Oldest {
		order = " ORDER BY g.created_at ASC, g.id"
	}
	query := `SELECT ` + groupCols + `, c.id, c.name, c.email
		FROM groups g
		LEFT JOIN users c ON c.id = g.creator_id` + w.String() + order
	query += w.page(f.Page)

	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.GroupWithCreator
	for rows.Next() {
		var (
			g models.GroupWithCreator
			c userLite
		)
		if err := scanGroup(rows, &g.Group, c.dest()...); err != nil {
			return nil, err
		}
		g.Creator = c.get()
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) CountGroups(ctx context.Context, f GroupFilter) (int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := groupWhere(f)
	return count(ctx, s.q, `SELECT COUNT(*) FROM groups g`+w.String(), w.args...)
}

// GroupStats counts approved members and all posts of the group.
func (s *Store) GroupStats(ctx context.Context, id string) (int, int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var members, posts int
	err := s.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND status = 'approved'),
			(SELECT COUNT(*) FROM group_posts WHERE group_id = $1)`, id).Scan(&members, &posts)
	if err != nil {
		return 0, 0, fmt.Errorf("group stats: %w", err)
	}
	return members, posts, nil
}
