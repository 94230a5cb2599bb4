// Package service implements the group, post and feedback workflows on top of
// db.Repo. Every exported method returns an action envelope and never a Go error.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/authz"
	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

// Notifier is told about new work for moderators. Implementations must not block.
type Notifier interface {
	GroupSubmitted(ctx context.Context, g models.Group)
	FeedbackSubmitted(ctx context.Context, f models.Feedback)
}

type nopNotifier struct{}

func (nopNotifier) GroupSubmitted(context.Context, models.Group)       {}
func (nopNotifier) FeedbackSubmitted(context.Context, models.Feedback) {}

type Option func(*base)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(b *base) {
		if n != nil {
			b.notify = n
		}
	}
}

// WithLocation sets the zone used for exported timestamps.
func WithLocation(loc *time.Location) Option {
	return func(b *base) {
		if loc != nil {
			b.loc = loc
		}
	}
}

type base struct {
	repo   db.Repo
	guard  *authz.Guard
	notify Notifier
	log    *zap.Logger
	now    func() time.Time
	loc    *time.Location
}

func newBase(repo db.Repo, guard *authz.Guard, log *zap.Logger, opts []Option) base {
	if log == nil {
		log = zap.NewNop()
	}
	if guard == nil {
		guard = authz.NewGuard(repo)
	}
	b := base{repo: repo, guard: guard, notify: nopNotifier{}, log: log, now: time.Now, loc: time.UTC}
	for _, o := range opts {
		o(&b)
	}
	return b
}

func (b *base) clock() time.Time { return b.now().UTC() }

type handler[T any, C action.Code] func(ctx context.Context, u *auth.SessionUser) (*T, C, error)

// run resolves the session and hands the caller to fn. A missing or incomplete
// session yields UNAUTHORIZED without calling fn.
func run[T any, C action.Code](ctx context.Context, b *base, sess auth.Session, op string, fn handler[T, C]) action.Response[T, C] {
	ctx = ctxutil.WithOp(ctx, op)
	dom := domainOf(op)
	u, err := auth.Require(ctx, sess)
	if errors.Is(err, auth.ErrUnauthenticated) {
		return action.Finish[T](ctx, b.log, dom, nil, C("UNAUTHORIZED"), nil)
	}
	if err != nil {
		return action.Finish[T](ctx, b.log, dom, nil, C("SERVER_ERROR"), err)
	}
	ctx = ctxutil.WithUserID(ctx, u.ID)
	data, code, err := fn(ctx, u)
	return action.Finish(ctx, b.log, dom, data, code, err)
}

// runPublic is run for reads that anonymous callers may perform; fn gets a nil user then.
func runPublic[T any, C action.Code](ctx context.Context, b *base, sess auth.Session, op string, fn handler[T, C]) action.Response[T, C] {
	ctx = ctxutil.WithOp(ctx, op)
	dom := domainOf(op)
	var u *auth.SessionUser
	if sess != nil {
		got, err := auth.Require(ctx, sess)
		switch {
		case err == nil:
			u = got
			ctx = ctxutil.WithUserID(ctx, u.ID)
		case !errors.Is(err, auth.ErrUnauthenticated):
			return action.Finish[T](ctx, b.log, dom, nil, C("SERVER_ERROR"), err)
		}
	}
	data, code, err := fn(ctx, u)
	return action.Finish(ctx, b.log, dom, data, code, err)
}

func domainOf(op string) string {
	if i := strings.IndexByte(op, '.'); i > 0 {
		return op[:i]
	}
	return op
}

func toPage(p action.Paging) db.Page {
	return db.Page{Limit: p.Limit(), Offset: p.Offset()}
}

// abort rolls a transaction back and carries the result code out of it.
type abort[C action.Code] struct{ code C }

func (a abort[C]) Error() string { return "aborted: " + string(a.code) }

func aborted[C action.Code](err error) (C, bool) {
	var a abort[C]
	if errors.As(err, &a) {
		return a.code, true
	}
	var zero C
	return zero, false
}

// wouldOrphan reports whether removing or demoting m leaves its group with no approved admin.
func wouldOrphan(ctx context.Context, tx db.Repo, m *models.GroupMember) (bool, error) {
	if !m.IsApprovedAdmin() {
		return false, nil
	}
	n, err := tx.CountMembers(ctx, db.MemberFilter{GroupID: m.GroupID, Role: models.MemberRoleAdmin, Status: models.MemberApproved})
	if err != nil {
		return false, err
	}
	return n <= 1, nil
}
