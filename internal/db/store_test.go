package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/Spok95/campus-community/internal/models"
)

const (
	gid = "3f0e1c52-7a3c-4f7e-9b55-1d2f4c6a8b01"
	uid = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database), mock
}

func TestInTxCommitsAndJoinsNested(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM group_members").WithArgs(uid).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM group_posts").WithArgs(gid).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx Repo) error {
		if err := tx.DeleteMember(context.Background(), uid); err != nil {
			return err
		}
		// nested call must reuse the same transaction
		return tx.InTx(context.Background(), func(inner Repo) error {
			return inner.DeletePost(context.Background(), gid)
		})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(Repo) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLockGroup(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT id FROM groups WHERE id = \$1 FOR UPDATE`).WithArgs(gid).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if err := s.LockGroup(context.Background(), gid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestReviewGroupOnlyFromPending(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectExec(`UPDATE groups\s+SET status = \$2.*WHERE id = \$1 AND status = 'pending'`).
		WithArgs(gid, "approved", nil, uid, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE groups`).
		WithArgs(gid, "rejected", sqlmock.AnyArg(), uid, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.ReviewGroup(context.Background(), gid, models.GroupApproved, nil, uid, now)
	if err != nil || !ok {
		t.Fatalf("first review: ok=%v err=%v", ok, err)
	}
	reason := "spam"
	ok, err = s.ReviewGroup(context.Background(), gid, models.GroupRejected, &reason, uid, now)
	if err != nil || ok {
		t.Fatalf("second review must lose: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateGroupBuildsSetList(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	name := "Chess Club"
	public := false

	cols := []string{"id", "name", "slug", "description", "category", "creator_id", "status",
		"is_public", "rejected_reason", "reviewed_by", "reviewed_at", "created_at", "updated_at"}
	mock.ExpectQuery(`UPDATE groups g SET updated_at = \$1, name = \$2, is_public = \$3 WHERE g.id = \$4 RETURNING`).
		WithArgs(now, name, public, gid).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(gid, name, "chess", nil, "club", uid, "approved",
			false, nil, nil, nil, now, now))

	g, err := s.UpdateGroup(context.Background(), gid, models.GroupPatch{Name: &name, IsPublic: &public}, now)
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if g.Name != name || g.IsPublic || g.Category != models.CategoryClub {
		t.Fatalf("unexpected group %+v", g)
	}
}

func TestMalformedIDSkipsQuery(t *testing.T) {
	s, mock := newMock(t)
	if _, err := s.GetGroupByID(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.DeleteMember(context.Background(), "42"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statements expected: %v", err)
	}
}

func TestGetUserByEmailLowercases(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE email = \$1`).WithArgs("ann@campus.edu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := s.GetUserByEmail(context.Background(), "  Ann@Campus.EDU "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListFeedbackFilters(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "author_id", "target_type", "target_desc", "title", "content",
		"is_anonymous", "status", "resolved_at", "created_at", "updated_at", "a_id", "a_name", "a_email"}
	now := time.Now()

	mock.ExpectQuery(`WHERE f.author_id = \$1 AND f.status = ANY\(\$2::text\[\]\) AND \(f.title ILIKE \$3 OR f.content ILIKE \$3 OR f.target_desc ILIKE \$3\)\s+ORDER BY f.created_at DESC, f.id LIMIT \$4 OFFSET \$5`).
		WithArgs(uid, pq.Array([]string{"pending", "processing"}), `%50\%%`, 10, 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(gid, uid, "office", "Dorm office", "Heating", "Cold",
			true, "pending", nil, now, now, uid, nil, "ann@campus.edu"))

	items, err := s.ListFeedback(context.Background(), FeedbackFilter{
		AuthorID: uid,
		Statuses: []models.FeedbackStatus{models.FeedbackPending, models.FeedbackProcessing},
		Search:   "50%",
		Page:     Page{Limit: 10, Offset: 10},
	})
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(items) != 1 || items[0].Author == nil || items[0].Author.Email != "ann@campus.edu" {
		t.Fatalf("unexpected items %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFeedbackStats(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT f.status, COUNT\(\*\) FROM feedbacks f GROUP BY f.status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).AddRow("resolved", 3))
	mock.ExpectQuery(`SELECT AVG\(.*WHERE f.status = 'resolved' AND f.resolved_at IS NOT NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(4.6))

	st, err := s.FeedbackStats(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("FeedbackStats: %v", err)
	}
	if st.Total != 5 || st.ByStatus[models.FeedbackResolved] != 3 || st.ByStatus[models.FeedbackInvalid] != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.AvgResolutionHours == nil || *st.AvgResolutionHours != 5 {
		t.Fatalf("avg hours = %v, want 5", st.AvgResolutionHours)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pgx", &pgconn.PgError{Code: "23505"}, true},
		{"pq", &pq.Error{Code: "23505"}, true},
		{"wrapped", errors.Join(errors.New("insert"), &pgconn.PgError{Code: "23505"}), true},
		{"fk", &pgconn.PgError{Code: "23503"}, false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLikePatternEscapes(t *testing.T) {
	if got := likePattern(`a_b%c\`); got != `%a\_b\%c\\%` {
		t.Fatalf("got %q", got)
	}
}

func TestPromoteUserNeverDemotesAdmin(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE users SET role = \$2, updated_at = \$3\s+WHERE email = \$1 AND role <> \$2 AND role <> 'admin'`).
		WithArgs("dean@campus.edu", "admin", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET role`).
		WithArgs("mod@campus.edu", "moderator", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.PromoteUser(context.Background(), " Dean@Campus.edu ", models.Admin, now)
	if err != nil || !ok {
		t.Fatalf("promote admin: ok=%v err=%v", ok, err)
	}
	ok, err = s.PromoteUser(context.Background(), "mod@campus.edu", models.Moderator, now)
	if err != nil || ok {
		t.Fatalf("promote moderator: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListPostsProjectsAuthorWithoutEmail(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "group_id", "author_id", "title", "content", "type", "is_pinned",
		"created_at", "updated_at", "a_id", "a_name"}
	now := time.Now()
	name := "Ann"

	mock.ExpectQuery(`SELECT p.id, .*, a.id, a.name\s+FROM group_posts p`).
		WithArgs(gid, 20).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(uid, gid, uid, "Hello", "hi", "discussion", false, now, now, uid, name))

	items, err := s.ListPosts(context.Background(), PostFilter{GroupID: gid, Page: Page{Limit: 20}})
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(items) != 1 || items[0].Author == nil || items[0].Author.ID != uid || items[0].Author.Email != "" {
		t.Fatalf("unexpected items %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
