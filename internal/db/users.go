package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/models"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// PromoteUser raises the account to role. It never demotes an admin and
	// reports false when nothing changed or no account has that email.
	PromoteUser(ctx context.Context, email string, role models.Role, now time.Time) (bool, error)
}

const userCols = `id, email, name, password_hash, role, is_active, created_at, updated_at`

// CreateUser inserts u; the email is stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	newID(&u.ID)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return s.getUser(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var u models.User
	err := s.q.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) PromoteUser(ctx context.Context, email string, role models.Role, now time.Time) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, `
		UPDATE users SET role = $2, updated_at = $3
		WHERE email = $1 AND role <> $2 AND role <> 'admin'`,
		strings.ToLower(strings.TrimSpace(email)), string(role), now)
	if err != nil {
		return false, fmt.Errorf("promote user: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
