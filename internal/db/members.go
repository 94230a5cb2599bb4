package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/models"
)

type MemberRepo interface {
	CreateMember(ctx context.Context, m *models.GroupMember) error
	GetMemberByID(ctx context.Context, id string) (*models.GroupMember, error)
	GetMember(ctx context.Context, groupID, userID string) (*models.GroupMember, error)
	UpdateMemberRole(ctx context.Context, id string, role models.MemberRole, now time.Time) error
	SetMemberStatus(ctx context.Context, id string, status models.MemberStatus, joinedAt *time.Time, now time.Time) error
	DeleteMember(ctx context.Context, id string) error
	ListMembers(ctx context.Context, f MemberFilter) ([]models.MemberWithUser, error)
	CountMembers(ctx context.Context, f MemberFilter) (int, error)
	ListUserGroups(ctx context.Context, f MembershipFilter) ([]models.MemberWithGroup, error)
	CountUserGroups(ctx context.Context, f MembershipFilter) (int, error)
}

type MemberFilter struct {
	GroupID string
	Role    models.MemberRole   // empty = any
	Status  models.MemberStatus // empty = any
	Page    Page
}

// MembershipFilter selects a user's memberships in approved groups.
type MembershipFilter struct {
	UserID string
	Status models.MemberStatus
	Page   Page
}

const memberCols = `m.id, m.group_id, m.user_id, m.role, m.status, m.joined_at, m.created_at, m.updated_at`

func scanMember(r scanner, m *models.GroupMember, extra ...any) error {
	dest := []any{&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt}
	return r.Scan(append(dest, extra...)...)
}

func (s *Store) CreateMember(ctx context.Context, m *models.GroupMember) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	newID(&m.ID)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, user_id, role, status, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.GroupID, m.UserID, string(m.Role), string(m.Status), m.JoinedAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *Store) GetMemberByID(ctx context.Context, id string) (*models.GroupMember, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return s.getMember(ctx, `SELECT `+memberCols+` FROM group_members m WHERE m.id = $1`, id)
}

func (s *Store) GetMember(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	if !validID(groupID) || !validID(userID) {
		return nil, ErrNotFound
	}
	return s.getMember(ctx, `SELECT `+memberCols+` FROM group_members m WHERE m.group_id = $1 AND m.user_id = $2`, groupID, userID)
}

func (s *Store) getMember(ctx context.Context, query string, args ...any) (*models.GroupMember, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var m models.GroupMember
	if err := scanMember(s.q.QueryRowContext(ctx, query, args...), &m); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, id string, role models.MemberRole, now time.Time) error {
	return s.execOne(ctx, "update member role",
		`UPDATE group_members SET role = $2, updated_at = $3 WHERE id = $1`, id, string(role), now)
}

// SetMemberStatus also overwrites joined_at; pass nil to clear it.
func (s *Store) SetMemberStatus(ctx context.Context, id string, status models.MemberStatus, joinedAt *time.Time, now time.Time) error {
	return s.execOne(ctx, "set member status",
		`UPDATE group_members SET status = $2, joined_at = $3, updated_at = $4 WHERE id = $1`, id, string(status), joinedAt, now)
}

func (s *Store) DeleteMember(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete member", `DELETE FROM group_members WHERE id = $1`, id)
}

// execOne runs a statement keyed by id in $1 and maps zero affected rows to ErrNotFound.
func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	if id, ok := args[0].(string); ok && !validID(id) {
		return ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func memberWhere(f MemberFilter) *where {
	w := &where{}
	w.add("m.group_id = $%d", f.GroupID)
	if f.Role != "" {
		w.add("m.role = $%d", string(f.Role))
	}
	if f.Status != "" {
		w.add("m.status = $%d", string(f.Status))
	}
	return w
}

// ListMembers orders admins first, then by joined_at.
func (s *Store) ListMembers(ctx context.Context, f MemberFilter) ([]models.MemberWithUser, error) {
	if !validID(f.GroupID) {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := memberWhere(f)
	query := `SELECT ` + memberCols + `, u.id, u.name, u.email
		FROM group_members m
		JOIN users u ON u.id = m.user_id` + w.String() + `
		ORDER BY CASE WHEN m.role = 'admin' THEN 0 ELSE 1 END, m.joined_at ASC NULLS LAST, m.created_at ASC`
	query += w.page(f.Page)

	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.MemberWithUser
	for rows.Next() {
		var (
			m     models.MemberWithUser
			email string
		)
		if err := scanMember(rows, &m.GroupMember, &m.User.ID, &m.User.Name, &email); err != nil {
			return nil, err
		}
		m.User.Email = email
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountMembers(ctx context.Context, f MemberFilter) (int, error) {
	if !validID(f.GroupID) {
		return 0, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := memberWhere(f)
	return count(ctx, s.q, `SELECT COUNT(*) FROM group_members m`+w.String(), w.args...)
}

func membershipWhere(f MembershipFilter) *where {
	w := &where{}
	w.add("m.user_id = $%d", f.UserID)
	w.raw("g.status = 'approved'")
	if f.Status != "" {
		w.add("m.status = $%d", string(f.Status))
	}
	return w
}

func (s *Store) ListUserGroups(ctx context.Context, f MembershipFilter) ([]models.MemberWithGroup, error) {
	if !validID(f.UserID) {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := membershipWhere(f)
	query := `SELECT ` + memberCols + `, ` + groupCols + `, c.id, c.name, c.email
		FROM group_members m
		JOIN groups g ON g.id = m.group_id
		LEFT JOIN users c ON c.id = g.creator_id` + w.String() + `
		ORDER BY m.created_at DESC, m.id`
	query += w.page(f.Page)

	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.MemberWithGroup
	for rows.Next() {
		var (
			m models.MemberWithGroup
			c userLite
		)
		g := &m.Group.Group
		dest := []any{&g.ID, &g.Name, &g.Slug, &g.Description, &g.Category, &g.CreatorID, &g.Status,
			&g.IsPublic, &g.RejectedReason, &g.ReviewedBy, &g.ReviewedAt, &g.CreatedAt, &g.UpdatedAt}
		if err := scanMember(rows, &m.GroupMember, append(dest, c.dest()...)...); err != nil {
			return nil, err
		}
		m.Group.Creator = c.get()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountUserGroups(ctx context.Context, f MembershipFilter) (int, error) {
	if !validID(f.UserID) {
		return 0, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := membershipWhere(f)
	return count(ctx, s.q, `SELECT COUNT(*) FROM group_members m JOIN groups g ON g.id = m.group_id`+w.String(), w.args...)
}
