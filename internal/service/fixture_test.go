package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/authz"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/models"
	"github.com/Spok95/campus-community/internal/service"
	"github.com/Spok95/campus-community/internal/testutil/memrepo"
)

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// ticker advances one minute per call so creation order is observable.
type ticker struct {
	mu sync.Mutex
	t  time.Time
}

func (c *ticker) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type recorder struct {
	mu       sync.Mutex
	groups   []models.Group
	feedback []models.Feedback
}

func (r *recorder) GroupSubmitted(_ context.Context, g models.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, g)
}

func (r *recorder) FeedbackSubmitted(_ context.Context, f models.Feedback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, f)
}

type fixture struct {
	repo     *memrepo.Repo
	clock    *ticker
	notes    *recorder
	groups   *service.GroupService
	posts    *service.PostService
	feedback *service.FeedbackService
	users    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memrepo.New()
	clock := &ticker{t: start}
	notes := &recorder{}
	guard := authz.NewGuard(repo)
	opts := []service.Option{service.WithClock(clock.now), service.WithNotifier(notes)}
	return &fixture{
		repo:     repo,
		clock:    clock,
		notes:    notes,
		groups:   service.NewGroupService(repo, guard, nil, opts...),
		posts:    service.NewPostService(repo, guard, nil, opts...),
		feedback: service.NewFeedbackService(repo, guard, nil, opts...),
	}
}

// login creates a user with the role and returns a session logged in as them.
func (f *fixture) login(t *testing.T, role models.Role) *auth.MemorySession {
	t.Helper()
	f.users++
	name := fmt.Sprintf("user-%d", f.users)
	u := &models.User{
		Email:     name + "@campus.edu",
		Name:      &name,
		Role:      role,
		IsActive:  true,
		CreatedAt: start,
		UpdatedAt: start,
	}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return auth.NewMemorySession(&auth.SessionUser{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name, LastUpdated: start})
}

func userID(t *testing.T, sess auth.Session) string {
	t.Helper()
	u, err := sess.Get(context.Background())
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) createGroup(t *testing.T, owner auth.Session, slug string, public bool) models.Group {
	t.Helper()
	res := f.groups.Create(context.Background(), owner, contract.CreateGroupInput{
		Name:     "Group " + slug,
		Slug:     slug,
		Category: models.CategoryClub,
		IsPublic: &public,
	})
	require.True(t, res.Success, res.State.Message)
	return *res.Data
}

// approvedGroup creates a group and has a fresh moderator approve it.
func (f *fixture) approvedGroup(t *testing.T, owner auth.Session, slug string, public bool) models.Group {
	t.Helper()
	g := f.createGroup(t, owner, slug, public)
	mod := f.login(t, models.Moderator)
	res := f.groups.ApproveGroup(context.Background(), mod, g.ID, contract.ReviewGroupInput{Approved: true})
	require.True(t, res.Success, res.State.Message)
	return *res.Data
}

// join adds the session user to a public group as an approved member.
func (f *fixture) join(t *testing.T, sess auth.Session, groupID string) models.GroupMember {
	t.Helper()
	res := f.groups.JoinGroup(context.Background(), sess, groupID)
	require.True(t, res.Success, res.State.Message)
	return *res.Data
}

func (f *fixture) membership(t *testing.T, groupID string, sess auth.Session) *models.GroupMember {
	t.Helper()
	m, err := f.repo.GetMember(context.Background(), groupID, userID(t, sess))
	require.NoError(t, err)
	return m
}

func ptr[T any](v T) *T { return &v }
