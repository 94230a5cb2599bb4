//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
	"github.com/Spok95/campus-community/internal/testutil/testdb"
)

func startStore(t *testing.T) (*db.Store, *testdb.DBHandle) {
	t.Helper()
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatalf("start db: %v", err)
	}
	t.Cleanup(h.Close)
	return db.NewStore(h.DB), h
}

func seedUser(t *testing.T, s *db.Store, email string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{Email: email, PasswordHash: "x", Role: models.Student, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedGroup(t *testing.T, s *db.Store, creator *models.User, slug string, status models.GroupStatus, at time.Time) *models.Group {
	t.Helper()
	g := &models.Group{Name: slug, Slug: slug, Category: models.CategoryClub, CreatorID: &creator.ID,
		Status: status, IsPublic: true, CreatedAt: at, UpdatedAt: at}
	if err := s.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}

func TestStoreIntegration(t *testing.T) {
	s, h := startStore(t)
	ctx := context.Background()

	t.Run("one membership per pair", func(t *testing.T) {
		_ = h.Truncate(ctx)
		u := seedUser(t, s, "a@campus.edu")
		g := seedGroup(t, s, u, "chess", models.GroupApproved, time.Now())
		now := time.Now()
		m := &models.GroupMember{GroupID: g.ID, UserID: u.ID, Role: models.MemberRoleAdmin, Status: models.MemberApproved, JoinedAt: &now, CreatedAt: now, UpdatedAt: now}
		if err := s.CreateMember(ctx, m); err != nil {
			t.Fatalf("first member: %v", err)
		}
		dup := &models.GroupMember{GroupID: g.ID, UserID: u.ID, Role: models.MemberRoleMember, Status: models.MemberPending, CreatedAt: now, UpdatedAt: now}
		err := s.CreateMember(ctx, dup)
		if !db.IsUniqueViolation(err) {
			t.Fatalf("want unique violation, got %v", err)
		}
	})

	t.Run("review only once", func(t *testing.T) {
		_ = h.Truncate(ctx)
		u := seedUser(t, s, "mod@campus.edu")
		g := seedGroup(t, s, u, "pending-one", models.GroupPending, time.Now())
		ok, err := s.ReviewGroup(ctx, g.ID, models.GroupApproved, nil, u.ID, time.Now())
		if err != nil || !ok {
			t.Fatalf("approve: ok=%v err=%v", ok, err)
		}
		reason := "late"
		ok, err = s.ReviewGroup(ctx, g.ID, models.GroupRejected, &reason, u.ID, time.Now())
		if err != nil || ok {
			t.Fatalf("second review must not apply: ok=%v err=%v", ok, err)
		}
		got, _ := s.GetGroupByID(ctx, g.ID)
		if got.Status != models.GroupApproved || got.RejectedReason != nil {
			t.Fatalf("unexpected group %+v", got)
		}
	})

	t.Run("pagination page two", func(t *testing.T) {
		_ = h.Truncate(ctx)
		u := seedUser(t, s, "p@campus.edu")
		base := time.Now().Add(-time.Hour)
		for i := 1; i <= 25; i++ {
			seedGroup(t, s, u, fmt.Sprintf("g-%02d", i), models.GroupApproved, base.Add(time.Duration(i)*time.Minute))
		}
		f := db.GroupFilter{Status: models.GroupApproved, Oldest: true, Page: db.Page{Limit: 10, Offset: 10}}
		items, err := s.ListGroups(ctx, f)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(items) != 10 || items[0].Slug != "g-11" || items[9].Slug != "g-20" {
			t.Fatalf("unexpected page: first=%s len=%d", items[0].Slug, len(items))
		}
		total, _ := s.CountGroups(ctx, f)
		if total != 25 {
			t.Fatalf("total = %d", total)
		}
	})

	t.Run("delete group cascades", func(t *testing.T) {
		_ = h.Truncate(ctx)
		u := seedUser(t, s, "c@campus.edu")
		g := seedGroup(t, s, u, "gone", models.GroupApproved, time.Now())
		now := time.Now()
		p := &models.GroupPost{GroupID: g.ID, AuthorID: &u.ID, Title: "t", Content: "c", Type: models.PostDiscussion, CreatedAt: now, UpdatedAt: now}
		if err := s.CreatePost(ctx, p); err != nil {
			t.Fatalf("post: %v", err)
		}
		if err := s.DeleteGroup(ctx, g.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetPostByID(ctx, p.ID); !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("post must be gone, got %v", err)
		}
	})

	t.Run("status log is append-only", func(t *testing.T) {
		_ = h.Truncate(ctx)
		u := seedUser(t, s, "f@campus.edu")
		now := time.Now()
		f := &models.Feedback{AuthorID: u.ID, TargetType: models.TargetGeneral, TargetDesc: "d", Title: "t", Content: "c",
			Status: models.FeedbackPending, CreatedAt: now, UpdatedAt: now}
		if err := s.CreateFeedback(ctx, f); err != nil {
			t.Fatalf("feedback: %v", err)
		}
		l := &models.FeedbackStatusLog{FeedbackID: f.ID, Status: models.FeedbackPending, ChangedBy: &u.ID, CreatedAt: now}
		if err := s.AppendStatusLog(ctx, l); err != nil {
			t.Fatalf("log: %v", err)
		}
		if _, err := h.DB.ExecContext(ctx, `UPDATE feedback_status_logs SET status = 'resolved' WHERE id = $1`, l.ID); err == nil {
			t.Fatal("update of a status log must fail")
		}
		logs, err := s.ListStatusLogs(ctx, f.ID, db.Page{})
		if err != nil || len(logs) != 1 || logs[0].Actor == nil {
			t.Fatalf("logs=%+v err=%v", logs, err)
		}
	})
}
