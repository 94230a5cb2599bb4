package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

const domain = "auth"

type Response = action.Response[SessionUser, action.AuthCode]

// Service implements login, signup and session inspection.
type Service struct {
	users  db.UserRepo
	hasher Hasher
	log    *zap.Logger
	now    func() time.Time
	grants RoleGrants
}

func NewService(users db.UserRepo, hasher Hasher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, hasher: hasher, log: log, now: time.Now}
}

// WithRoleGrants gives configured emails their platform role at signup.
func (s *Service) WithRoleGrants(g RoleGrants) *Service {
	s.grants = g
	return s
}

// WithClock replaces the time source; tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) CurrentUser(ctx context.Context, sess Session) Response {
	ctx = ctxutil.WithOp(ctx, "auth.current_user")
	u, err := Require(ctx, sess)
	if errors.Is(err, ErrUnauthenticated) {
		return action.Finish[SessionUser](ctx, s.log, domain, nil, action.AuthUnauthorized, nil)
	}
	return action.Finish(ctx, s.log, domain, u, action.AuthGetSuccess, err)
}

func (s *Service) Login(ctx context.Context, sess Session, in contract.LoginInput) Response {
	ctx = ctxutil.WithOp(ctx, "auth.login")
	u, code, err := s.login(ctx, sess, in)
	return action.Finish(ctx, s.log, domain, u, code, err)
}

func (s *Service) login(ctx context.Context, sess Session, in contract.LoginInput) (*SessionUser, action.AuthCode, error) {
	if err := contract.Validate(in); err != nil {
		return nil, action.AuthInvalidInput, err
	}
	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, action.AuthUserNotFound, nil
	}
	if err != nil {
		return nil, action.AuthServerError, fmt.Errorf("get user: %w", err)
	}
	if !s.hasher.Verify(user.PasswordHash, in.Password) {
		return nil, action.AuthInvalidPassword, nil
	}
	if !user.IsActive {
		return nil, action.AuthForbidden, nil
	}
	su, err := s.startSession(ctx, sess, user)
	if err != nil {
		return nil, action.AuthServerError, err
	}
	return su, action.AuthLoginSuccess, nil
}

// Signup creates a student account, or the granted role for configured emails. Signing up again with the right password logs in.
func (s *Service) Signup(ctx context.Context, sess Session, in contract.SignupInput) Response {
	ctx = ctxutil.WithOp(ctx, "auth.signup")
	u, code, err := s.signup(ctx, sess, in)
	return action.Finish(ctx, s.log, domain, u, code, err)
}

func (s *Service) signup(ctx context.Context, sess Session, in contract.SignupInput) (*SessionUser, action.AuthCode, error) {
	if err := contract.Validate(in); err != nil {
		return nil, action.AuthInvalidInput, err
	}
	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if !s.hasher.Verify(existing.PasswordHash, in.Password) {
			return nil, action.AuthEmailExists, nil
		}
		if !existing.IsActive {
			return nil, action.AuthForbidden, nil
		}
		su, err := s.startSession(ctx, sess, existing)
		if err != nil {
			return nil, action.AuthServerError, err
		}
		return su, action.AuthAutoLogin, nil
	case !errors.Is(err, db.ErrNotFound):
		return nil, action.AuthServerError, fmt.Errorf("get user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, action.AuthServerError, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         s.grants.For(in.Email),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		user.Name = &name
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, action.AuthEmailExists, nil
		}
		return nil, action.AuthServerError, err
	}
	su, err := s.startSession(ctx, sess, user)
	if err != nil {
		return nil, action.AuthServerError, err
	}
	s.log.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return su, action.AuthSignupSuccess, nil
}

func (s *Service) Logout(ctx context.Context, sess Session) action.Response[action.Empty, action.AuthCode] {
	ctx = ctxutil.WithOp(ctx, "auth.logout")
	if sess == nil {
		return action.Finish(ctx, s.log, domain, &action.Empty{}, action.AuthLogoutSuccess, nil)
	}
	if err := sess.Clear(ctx); err != nil {
		return action.Finish[action.Empty](ctx, s.log, domain, nil, action.AuthServerError, fmt.Errorf("clear session: %w", err))
	}
	return action.Finish(ctx, s.log, domain, &action.Empty{}, action.AuthLogoutSuccess, nil)
}

func (s *Service) startSession(ctx context.Context, sess Session, u *models.User) (*SessionUser, error) {
	su := SessionUser{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name, LastUpdated: s.now().UTC()}
	if sess == nil {
		return nil, errors.New("no session store")
	}
	if err := sess.Save(ctx, su); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &su, nil
}
