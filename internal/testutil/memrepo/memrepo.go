// Package memrepo is an in-memory db.Repo for service and transport tests.
// It mirrors the constraints of the Postgres schema: unique keys, cascades
// and the orderings of the SQL queries.
package memrepo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

type state struct {
	mu   sync.Mutex
	txMu sync.Mutex

	seq      int
	order    map[string]int
	users    map[string]models.User
	groups   map[string]models.Group
	members  map[string]models.GroupMember
	posts    map[string]models.GroupPost
	feedback map[string]models.Feedback
	logs     map[string]models.FeedbackStatusLog
	fail     map[string]error
}

// Repo implements db.Repo. The zero value is not usable; call New.
type Repo struct {
	st   *state
	inTx bool
}

var _ db.Repo = (*Repo)(nil)

func New() *Repo {
	return &Repo{st: &state{
		order:    map[string]int{},
		users:    map[string]models.User{},
		groups:   map[string]models.Group{},
		members:  map[string]models.GroupMember{},
		posts:    map[string]models.GroupPost{},
		feedback: map[string]models.Feedback{},
		logs:     map[string]models.FeedbackStatusLog{},
		fail:     map[string]error{},
	}}
}

// FailOn makes the named method return err until cleared with a nil err.
func (r *Repo) FailOn(method string, err error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err == nil {
		delete(r.st.fail, method)
		return
	}
	r.st.fail[method] = err
}

// lock takes the data mutex and returns the injected failure for method, if any.
func (r *Repo) lock(method string) (func(), error) {
	r.st.mu.Lock()
	if err := r.st.fail[method]; err != nil {
		r.st.mu.Unlock()
		return func() {}, err
	}
	return r.st.mu.Unlock, nil
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func (r *Repo) track(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
	r.st.seq++
	r.st.order[*id] = r.st.seq
}

// InTx serializes transactions and restores the previous state when fn fails.
func (r *Repo) InTx(ctx context.Context, fn func(tx db.Repo) error) error {
	if r.inTx {
		return fn(r)
	}
	r.st.mu.Lock()
	failed := r.st.fail["InTx"]
	r.st.mu.Unlock()
	if failed != nil {
		return failed
	}
	r.st.txMu.Lock()
	defer r.st.txMu.Unlock()

	snap := r.snapshot()
	if err := fn(&Repo{st: r.st, inTx: true}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *Repo) LockGroup(ctx context.Context, groupID string) error {
	unlock, err := r.lock("LockGroup")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.groups[groupID]; !ok {
		return db.ErrNotFound
	}
	return nil
}

type snapshot struct {
	users    map[string]models.User
	groups   map[string]models.Group
	members  map[string]models.GroupMember
	posts    map[string]models.GroupPost
	feedback map[string]models.Feedback
	logs     map[string]models.FeedbackStatusLog
}

func clone[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *Repo) snapshot() snapshot {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return snapshot{
		users: clone(r.st.users), groups: clone(r.st.groups), members: clone(r.st.members),
		posts: clone(r.st.posts), feedback: clone(r.st.feedback), logs: clone(r.st.logs),
	}
}

func (r *Repo) restore(s snapshot) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.users, r.st.groups, r.st.members = s.users, s.groups, s.members
	r.st.posts, r.st.feedback, r.st.logs = s.posts, s.feedback, s.logs
}

func page[T any](items []T, p db.Page) []T {
	if p.Offset > 0 {
		if p.Offset >= len(items) {
			return nil
		}
		items = items[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func contains(hay *string, needle string) bool {
	return hay != nil && strings.Contains(strings.ToLower(*hay), needle)
}

func (r *Repo) lite(id *string, withEmail bool) *models.UserLite {
	if id == nil {
		return nil
	}
	u, ok := r.st.users[*id]
	if !ok {
		return nil
	}
	out := &models.UserLite{ID: u.ID, Name: u.Name}
	if withEmail {
		out.Email = u.Email
	}
	return out
}

// users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	unlock, err := r.lock("CreateUser")
	defer unlock()
	if err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range r.st.users {
		if other.Email == u.Email {
			return fmt.Errorf("insert user: %w", uniqueViolation("users_email_key"))
		}
	}
	r.track(&u.ID)
	r.st.users[u.ID] = *u
	return nil
}

func (r *Repo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	unlock, err := r.lock("GetUserByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	u, ok := r.st.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	unlock, err := r.lock("GetUserByEmail")
	defer unlock()
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *Repo) PromoteUser(ctx context.Context, email string, role models.Role, now time.Time) (bool, error) {
	unlock, err := r.lock("PromoteUser")
	defer unlock()
	if err != nil {
		return false, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for id, u := range r.st.users {
		if u.Email != email {
			continue
		}
		if u.Role == role || u.Role == models.Admin {
			return false, nil
		}
		u.Role = role
		u.UpdatedAt = now
		r.st.users[id] = u
		return true, nil
	}
	return false, nil
}

// groups

func (r *Repo) CreateGroup(ctx context.Context, g *models.Group) error {
	unlock, err := r.lock("CreateGroup")
	defer unlock()
	if err != nil {
		return err
	}
	for _, other := range r.st.groups {
		if other.Slug == g.Slug {
			return fmt.Errorf("insert group: %w", uniqueViolation("groups_slug_key"))
		}
	}
	r.track(&g.ID)
	r.st.groups[g.ID] = *g
	return nil
}

func (r *Repo) GetGroupByID(ctx context.Context, id string) (*models.Group, error) {
	unlock, err := r.lock("GetGroupByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	g, ok := r.st.groups[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &g, nil
}

func (r *Repo) GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	unlock, err := r.lock("GetGroupBySlug")
	defer unlock()
	if err != nil {
		return nil, err
	}
	for _, g := range r.st.groups {
		if g.Slug == slug {
			return &g, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *Repo) GetGroupWithCreator(ctx context.Context, id string) (*models.GroupWithCreator, error) {
	unlock, err := r.lock("GetGroupWithCreator")
	defer unlock()
	if err != nil {
		return nil, err
	}
	g, ok := r.st.groups[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &models.GroupWithCreator{Group: g, Creator: r.lite(g.CreatorID, true)}, nil
}

func (r *Repo) UpdateGroup(ctx context.Context, id string, p models.GroupPatch, now time.Time) (*models.Group, error) {
	unlock, err := r.lock("UpdateGroup")
	defer unlock()
	if err != nil {
		return nil, err
	}
	g, ok := r.st.groups[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Description != nil {
		d := *p.Description
		g.Description = &d
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.IsPublic != nil {
		g.IsPublic = *p.IsPublic
	}
	g.UpdatedAt = now
	r.st.groups[id] = g
	return &g, nil
}

func (r *Repo) ReviewGroup(ctx context.Context, id string, status models.GroupStatus, reason *string, reviewerID string, now time.Time) (bool, error) {
	unlock, err := r.lock("ReviewGroup")
	defer unlock()
	if err != nil {
		return false, err
	}
	g, ok := r.st.groups[id]
	if !ok || g.Status != models.GroupPending {
		return false, nil
	}
	g.Status = status
	g.RejectedReason = reason
	g.ReviewedBy = &reviewerID
	g.ReviewedAt = &now
	g.UpdatedAt = now
	r.st.groups[id] = g
	return true, nil
}

func (r *Repo) DeleteGroup(ctx context.Context, id string) error {
	unlock, err := r.lock("DeleteGroup")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.groups[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.st.groups, id)
	for mid, m := range r.st.members {
		if m.GroupID == id {
			delete(r.st.members, mid)
		}
	}
	for pid, p := range r.st.posts {
		if p.GroupID == id {
			delete(r.st.posts, pid)
		}
	}
	return nil
}

func (r *Repo) filterGroups(f db.GroupFilter) []models.Group {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var out []models.Group
	for _, g := range r.st.groups {
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if f.Category != "" && g.Category != f.Category {
			continue
		}
		if q != "" && !contains(&g.Name, q) && !contains(g.Description, q) && !contains(&g.Slug, q) {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if f.Oldest {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if f.Oldest {
			return r.st.order[a.ID] < r.st.order[b.ID]
		}
		return r.st.order[a.ID] > r.st.order[b.ID]
	})
	return out
}

func (r *Repo) ListGroups(ctx context.Context, f db.GroupFilter) ([]models.GroupWithCreator, error) {
	unlock, err := r.lock("ListGroups")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []models.GroupWithCreator
	for _, g := range page(r.filterGroups(f), f.Page) {
		out = append(out, models.GroupWithCreator{Group: g, Creator: r.lite(g.CreatorID, true)})
	}
	return out, nil
}

func (r *Repo) CountGroups(ctx context.Context, f db.GroupFilter) (int, error) {
	unlock, err := r.lock("CountGroups")
	defer unlock()
	if err != nil {
		return 0, err
	}
	return len(r.filterGroups(f)), nil
}

func (r *Repo) GroupStats(ctx context.Context, id string) (int, int, error) {
	unlock, err := r.lock("GroupStats")
	defer unlock()
	if err != nil {
		return 0, 0, err
	}
	var members, posts int
	for _, m := range r.st.members {
		if m.GroupID == id && m.Status == models.MemberApproved {
			members++
		}
	}
	for _, p := range r.st.posts {
		if p.GroupID == id {
			posts++
		}
	}
	return members, posts, nil
}

// members

func (r *Repo) CreateMember(ctx context.Context, m *models.GroupMember) error {
	unlock, err := r.lock("CreateMember")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.groups[m.GroupID]; !ok {
		return fmt.Errorf("insert member: foreign key group %s", m.GroupID)
	}
	for _, other := range r.st.members {
		if other.GroupID == m.GroupID && other.UserID == m.UserID {
			return fmt.Errorf("insert member: %w", uniqueViolation("group_members_group_id_user_id_key"))
		}
	}
	r.track(&m.ID)
	r.st.members[m.ID] = *m
	return nil
}

func (r *Repo) GetMemberByID(ctx context.Context, id string) (*models.GroupMember, error) {
	unlock, err := r.lock("GetMemberByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	m, ok := r.st.members[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &m, nil
}

func (r *Repo) GetMember(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	unlock, err := r.lock("GetMember")
	defer unlock()
	if err != nil {
		return nil, err
	}
	for _, m := range r.st.members {
		if m.GroupID == groupID && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *Repo) UpdateMemberRole(ctx context.Context, id string, role models.MemberRole, now time.Time) error {
	unlock, err := r.lock("UpdateMemberRole")
	defer unlock()
	if err != nil {
		return err
	}
	m, ok := r.st.members[id]
	if !ok {
		return db.ErrNotFound
	}
	m.Role, m.UpdatedAt = role, now
	r.st.members[id] = m
	return nil
}

func (r *Repo) SetMemberStatus(ctx context.Context, id string, status models.MemberStatus, joinedAt *time.Time, now time.Time) error {
	unlock, err := r.lock("SetMemberStatus")
	defer unlock()
	if err != nil {
		return err
	}
	m, ok := r.st.members[id]
	if !ok {
		return db.ErrNotFound
	}
	m.Status, m.JoinedAt, m.UpdatedAt = status, joinedAt, now
	r.st.members[id] = m
	return nil
}

func (r *Repo) DeleteMember(ctx context.Context, id string) error {
	unlock, err := r.lock("DeleteMember")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.members[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.st.members, id)
	return nil
}

func (r *Repo) filterMembers(f db.MemberFilter) []models.GroupMember {
	var out []models.GroupMember
	for _, m := range r.st.members {
		if m.GroupID != f.GroupID {
			continue
		}
		if f.Role != "" && m.Role != f.Role {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Role == models.MemberRoleAdmin) != (b.Role == models.MemberRoleAdmin) {
			return a.Role == models.MemberRoleAdmin
		}
		switch {
		case a.JoinedAt != nil && b.JoinedAt == nil:
			return true
		case a.JoinedAt == nil && b.JoinedAt != nil:
			return false
		case a.JoinedAt != nil && !a.JoinedAt.Equal(*b.JoinedAt):
			return a.JoinedAt.Before(*b.JoinedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return r.st.order[a.ID] < r.st.order[b.ID]
	})
	return out
}

func (r *Repo) ListMembers(ctx context.Context, f db.MemberFilter) ([]models.MemberWithUser, error) {
	unlock, err := r.lock("ListMembers")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []models.MemberWithUser
	for _, m := range page(r.filterMembers(f), f.Page) {
		u := r.lite(&m.UserID, true)
		if u == nil {
			continue
		}
		out = append(out, models.MemberWithUser{GroupMember: m, User: *u})
	}
	return out, nil
}

func (r *Repo) CountMembers(ctx context.Context, f db.MemberFilter) (int, error) {
	unlock, err := r.lock("CountMembers")
	defer unlock()
	if err != nil {
		return 0, err
	}
	return len(r.filterMembers(f)), nil
}

func (r *Repo) filterMemberships(f db.MembershipFilter) []models.GroupMember {
	var out []models.GroupMember
	for _, m := range r.st.members {
		if m.UserID != f.UserID {
			continue
		}
		if g, ok := r.st.groups[m.GroupID]; !ok || g.Status != models.GroupApproved {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return r.st.order[a.ID] > r.st.order[b.ID]
	})
	return out
}

func (r *Repo) ListUserGroups(ctx context.Context, f db.MembershipFilter) ([]models.MemberWithGroup, error) {
	unlock, err := r.lock("ListUserGroups")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []models.MemberWithGroup
	for _, m := range page(r.filterMemberships(f), f.Page) {
		g := r.st.groups[m.GroupID]
		out = append(out, models.MemberWithGroup{
			GroupMember: m,
			Group:       models.GroupWithCreator{Group: g, Creator: r.lite(g.CreatorID, true)},
		})
	}
	return out, nil
}

func (r *Repo) CountUserGroups(ctx context.Context, f db.MembershipFilter) (int, error) {
	unlock, err := r.lock("CountUserGroups")
	defer unlock()
	if err != nil {
		return 0, err
	}
	return len(r.filterMemberships(f)), nil
}

// posts

func (r *Repo) CreatePost(ctx context.Context, p *models.GroupPost) error {
	unlock, err := r.lock("CreatePost")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.groups[p.GroupID]; !ok {
		return fmt.Errorf("insert post: foreign key group %s", p.GroupID)
	}
	r.track(&p.ID)
	r.st.posts[p.ID] = *p
	return nil
}

func (r *Repo) GetPostByID(ctx context.Context, id string) (*models.GroupPost, error) {
	unlock, err := r.lock("GetPostByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	p, ok := r.st.posts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &p, nil
}

func (r *Repo) GetPostWithAuthor(ctx context.Context, id string) (*models.PostWithAuthor, error) {
	unlock, err := r.lock("GetPostWithAuthor")
	defer unlock()
	if err != nil {
		return nil, err
	}
	p, ok := r.st.posts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &models.PostWithAuthor{GroupPost: p, Author: r.lite(p.AuthorID, false)}, nil
}

func (r *Repo) UpdatePost(ctx context.Context, id string, patch models.PostPatch, now time.Time) (*models.GroupPost, error) {
	unlock, err := r.lock("UpdatePost")
	defer unlock()
	if err != nil {
		return nil, err
	}
	p, ok := r.st.posts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	p.UpdatedAt = now
	r.st.posts[id] = p
	return &p, nil
}

func (r *Repo) SetPostPinned(ctx context.Context, id string, pinned bool, now time.Time) error {
	unlock, err := r.lock("SetPostPinned")
	defer unlock()
	if err != nil {
		return err
	}
	p, ok := r.st.posts[id]
	if !ok {
		return db.ErrNotFound
	}
	p.IsPinned, p.UpdatedAt = pinned, now
	r.st.posts[id] = p
	return nil
}

func (r *Repo) DeletePost(ctx context.Context, id string) error {
	unlock, err := r.lock("DeletePost")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.posts[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.st.posts, id)
	return nil
}

func (r *Repo) newestFirst(a, b time.Time, ida, idb string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return r.st.order[ida] > r.st.order[idb]
}

func (r *Repo) filterPosts(f db.PostFilter) []models.GroupPost {
	var out []models.GroupPost
	for _, p := range r.st.posts {
		if f.GroupID != "" && p.GroupID != f.GroupID {
			continue
		}
		if f.AuthorID != "" && (p.AuthorID == nil || *p.AuthorID != f.AuthorID) {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.Pinned != nil && p.IsPinned != *f.Pinned {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		return r.newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out
}

func (r *Repo) ListPosts(ctx context.Context, f db.PostFilter) ([]models.PostWithAuthor, error) {
	unlock, err := r.lock("ListPosts")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []models.PostWithAuthor
	for _, p := range page(r.filterPosts(f), f.Page) {
		out = append(out, models.PostWithAuthor{GroupPost: p, Author: r.lite(p.AuthorID, false)})
	}
	return out, nil
}

func (r *Repo) CountPosts(ctx context.Context, f db.PostFilter) (int, error) {
	unlock, err := r.lock("CountPosts")
	defer unlock()
	if err != nil {
		return 0, err
	}
	return len(r.filterPosts(f)), nil
}

func (r *Repo) ListPostsByAuthor(ctx context.Context, authorID string, p db.Page) ([]models.PostWithGroup, error) {
	unlock, err := r.lock("ListPostsByAuthor")
	defer unlock()
	if err != nil {
		return nil, err
	}
	posts := r.filterPosts(db.PostFilter{AuthorID: authorID})
	sort.SliceStable(posts, func(i, j int) bool {
		return r.newestFirst(posts[i].CreatedAt, posts[j].CreatedAt, posts[i].ID, posts[j].ID)
	})
	var out []models.PostWithGroup
	for _, post := range page(posts, p) {
		g := r.st.groups[post.GroupID]
		out = append(out, models.PostWithGroup{GroupPost: post, Group: models.GroupLite{ID: g.ID, Name: g.Name, Slug: g.Slug}})
	}
	return out, nil
}

// feedback

func (r *Repo) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	unlock, err := r.lock("CreateFeedback")
	defer unlock()
	if err != nil {
		return err
	}
	r.track(&f.ID)
	r.st.feedback[f.ID] = *f
	return nil
}

func (r *Repo) GetFeedbackByID(ctx context.Context, id string) (*models.Feedback, error) {
	unlock, err := r.lock("GetFeedbackByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	f, ok := r.st.feedback[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &f, nil
}

func (r *Repo) GetFeedbackWithAuthor(ctx context.Context, id string) (*models.FeedbackWithAuthor, error) {
	unlock, err := r.lock("GetFeedbackWithAuthor")
	defer unlock()
	if err != nil {
		return nil, err
	}
	f, ok := r.st.feedback[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &models.FeedbackWithAuthor{Feedback: f, Author: r.lite(&f.AuthorID, true)}, nil
}

func (r *Repo) UpdateFeedbackStatus(ctx context.Context, id string, status models.FeedbackStatus, resolvedAt *time.Time, now time.Time) error {
	unlock, err := r.lock("UpdateFeedbackStatus")
	defer unlock()
	if err != nil {
		return err
	}
	f, ok := r.st.feedback[id]
	if !ok {
		return db.ErrNotFound
	}
	f.Status, f.UpdatedAt = status, now
	if resolvedAt != nil {
		f.ResolvedAt = resolvedAt
	}
	r.st.feedback[id] = f
	return nil
}

func (r *Repo) DeleteFeedback(ctx context.Context, id string) error {
	unlock, err := r.lock("DeleteFeedback")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.feedback[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.st.feedback, id)
	for lid, l := range r.st.logs {
		if l.FeedbackID == id {
			delete(r.st.logs, lid)
		}
	}
	return nil
}

func (r *Repo) filterFeedback(f db.FeedbackFilter) []models.Feedback {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var out []models.Feedback
	for _, fb := range r.st.feedback {
		if f.AuthorID != "" && fb.AuthorID != f.AuthorID {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, s := range f.Statuses {
				match = match || fb.Status == s
			}
			if !match {
				continue
			}
		}
		if f.TargetType != "" && fb.TargetType != f.TargetType {
			continue
		}
		if q != "" && !contains(&fb.Title, q) && !contains(&fb.Content, q) && !contains(&fb.TargetDesc, q) {
			continue
		}
		out = append(out, fb)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (r *Repo) ListFeedback(ctx context.Context, f db.FeedbackFilter) ([]models.FeedbackWithAuthor, error) {
	unlock, err := r.lock("ListFeedback")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []models.FeedbackWithAuthor
	for _, fb := range page(r.filterFeedback(f), f.Page) {
		out = append(out, models.FeedbackWithAuthor{Feedback: fb, Author: r.lite(&fb.AuthorID, true)})
	}
	return out, nil
}

func (r *Repo) CountFeedback(ctx context.Context, f db.FeedbackFilter) (int, error) {
	unlock, err := r.lock("CountFeedback")
	defer unlock()
	if err != nil {
		return 0, err
	}
	return len(r.filterFeedback(f)), nil
}

func (r *Repo) AppendStatusLog(ctx context.Context, l *models.FeedbackStatusLog) error {
	unlock, err := r.lock("AppendStatusLog")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.st.feedback[l.FeedbackID]; !ok {
		return fmt.Errorf("insert status log: foreign key feedback %s", l.FeedbackID)
	}
	r.track(&l.ID)
	r.st.logs[l.ID] = *l
	return nil
}

func (r *Repo) statusLogs(feedbackID string) []models.FeedbackStatusLog {
	var out []models.FeedbackStatusLog
	for _, l := range r.st.logs {
		if l.FeedbackID == feedbackID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (r *Repo) ListStatusLogs(ctx context.Context, feedbackID string, p db.Page) ([]models.StatusLogWithActor, error) {
	unlock, err := r.lock("ListStatusLogs")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []models.StatusLogWithActor
	for _, l := range page(r.statusLogs(feedbackID), p) {
		out = append(out, models.StatusLogWithActor{FeedbackStatusLog: l, Actor: r.lite(l.ChangedBy, true)})
	}
	return out, nil
}

func (r *Repo) CountStatusLogs(ctx context.Context, feedbackID string) (int, error) {
	unlock, err := r.lock("CountStatusLogs")
	defer unlock()
	if err != nil {
		return 0, err
	}
	return len(r.statusLogs(feedbackID)), nil
}

func (r *Repo) FeedbackStats(ctx context.Context, from, to *time.Time) (*models.FeedbackStats, error) {
	unlock, err := r.lock("FeedbackStats")
	defer unlock()
	if err != nil {
		return nil, err
	}
	st := &models.FeedbackStats{ByStatus: map[models.FeedbackStatus]int{}}
	for _, s := range models.FeedbackStatuses {
		st.ByStatus[s] = 0
	}
	var hours float64
	resolved := 0
	for _, f := range r.st.feedback {
		if from != nil && f.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && f.CreatedAt.After(*to) {
			continue
		}
		st.Total++
		st.ByStatus[f.Status]++
		if f.Status == models.FeedbackResolved && f.ResolvedAt != nil {
			hours += f.ResolvedAt.Sub(f.CreatedAt).Hours()
			resolved++
		}
	}
	if resolved > 0 {
		h := int(math.Round(hours / float64(resolved)))
		st.AvgResolutionHours = &h
	}
	return st, nil
}

// StatusLogCount is a test helper that counts every log row.
func (r *Repo) StatusLogCount() int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return len(r.st.logs)
}
