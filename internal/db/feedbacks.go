package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/models"
)

type FeedbackRepo interface {
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	GetFeedbackByID(ctx context.Context, id string) (*models.Feedback, error)
	GetFeedbackWithAuthor(ctx context.Context, id string) (*models.FeedbackWithAuthor, error)
	// UpdateFeedbackStatus keeps the stored resolved_at when resolvedAt is nil.
	UpdateFeedbackStatus(ctx context.Context, id string, status models.FeedbackStatus, resolvedAt *time.Time, now time.Time) error
	DeleteFeedback(ctx context.Context, id string) error
	ListFeedback(ctx context.Context, f FeedbackFilter) ([]models.FeedbackWithAuthor, error)
	CountFeedback(ctx context.Context, f FeedbackFilter) (int, error)
	AppendStatusLog(ctx context.Context, l *models.FeedbackStatusLog) error
	ListStatusLogs(ctx context.Context, feedbackID string, page Page) ([]models.StatusLogWithActor, error)
	CountStatusLogs(ctx context.Context, feedbackID string) (int, error)
	FeedbackStats(ctx context.Context, from, to *time.Time) (*models.FeedbackStats, error)
}

type FeedbackFilter struct {
	AuthorID   string // empty = all authors
	Statuses   []models.FeedbackStatus
	TargetType models.FeedbackTarget
	Search     string
	Page       Page
}

const feedbackCols = `f.id, f.author_id, f.target_type, f.target_desc, f.title, f.content,
	f.is_anonymous, f.status, f.resolved_at, f.created_at, f.updated_at`

func scanFeedback(r scanner, f *models.Feedback, extra ...any) error {
	dest := []any{&f.ID, &f.AuthorID, &f.TargetType, &f.TargetDesc, &f.Title, &f.Content,
		&f.IsAnonymous, &f.Status, &f.ResolvedAt, &f.CreatedAt, &f.UpdatedAt}
	return r.Scan(append(dest, extra...)...)
}

func (s *Store) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	newID(&f.ID)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO feedbacks (id, author_id, target_type, target_desc, title, content, is_anonymous, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.AuthorID, string(f.TargetType), f.TargetDesc, f.Title, f.Content, f.IsAnonymous, string(f.Status), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *Store) GetFeedbackByID(ctx context.Context, id string) (*models.Feedback, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var f models.Feedback
	if err := scanFeedback(s.q.QueryRowContext(ctx, `SELECT `+feedbackCols+` FROM feedbacks f WHERE f.id = $1`, id), &f); err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (s *Store) GetFeedbackWithAuthor(ctx context.Context, id string) (*models.FeedbackWithAuthor, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var (
		out models.FeedbackWithAuthor
		a   userLite
	)
	row := s.q.QueryRowContext(ctx, `
		SELECT `+feedbackCols+`, a.id, a.name, a.email
		FROM feedbacks f
		LEFT JOIN users a ON a.id = f.author_id
		WHERE f.id = $1`, id)
	if err := scanFeedback(row, &out.Feedback, a.dest()...); err != nil {
		return nil, notFound(err)
	}
	out.Author = a.get()
	return &out, nil
}

func (s *Store) UpdateFeedbackStatus(ctx context.Context, id string, status models.FeedbackStatus, resolvedAt *time.Time, now time.Time) error {
	return s.execOne(ctx, "update feedback status", `
		UPDATE feedbacks
		SET status = $2, resolved_at = COALESCE($3, resolved_at), updated_at = $4
		WHERE id = $1`, id, string(status), resolvedAt, now)
}

func (s *Store) DeleteFeedback(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete feedback", `DELETE FROM feedbacks WHERE id = $1`, id)
}

func feedbackWhere(f FeedbackFilter) *where {
	w := &where{}
	if f.AuthorID != "" {
		w.add("f.author_id = $%d", f.AuthorID)
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			ss[i] = string(st)
		}
		w.add("f.status = ANY($%d::text[])", pq.Array(ss))
	}
	if f.TargetType != "" {
		w.add("f.target_type = $%d", string(f.TargetType))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		w.add("(f.title ILIKE $%[1]d OR f.content ILIKE $%[1]d OR f.target_desc ILIKE $%[1]d)", likePattern(q))
	}
	return w
}

func (s *Store) ListFeedback(ctx context.Context, f FeedbackFilter) ([]models.FeedbackWithAuthor, error) {
	if f.AuthorID != "" && !validID(f.AuthorID) {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := feedbackWhere(f)
	query := `SELECT ` + feedbackCols + `, a.id, a.name, a.email
		FROM feedbacks f
		LEFT JOIN users a ON a.id = f.author_id` + w.String() + `
		ORDER BY f.created_at DESC, f.id`
	query += w.page(f.Page)

	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.FeedbackWithAuthor
	for rows.Next() {
		var (
			fb models.FeedbackWithAuthor
			a  userLite
		)
		if err := scanFeedback(rows, &fb.Feedback, a.dest()...); err != nil {
			return nil, err
		}
		fb.Author = a.get()
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (s *Store) CountFeedback(ctx context.Context, f FeedbackFilter) (int, error) {
	if f.AuthorID != "" && !validID(f.AuthorID) {
		return 0, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := feedbackWhere(f)
	return count(ctx, s.q, `SELECT COUNT(*) FROM feedbacks f`+w.String(), w.args...)
}

// AppendStatusLog is the only write path into feedback_status_logs.
func (s *Store) AppendStatusLog(ctx context.Context, l *models.FeedbackStatusLog) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	newID(&l.ID)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO feedback_status_logs (id, feedback_id, status, changed_by, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.FeedbackID, string(l.Status), l.ChangedBy, l.Note, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	return nil
}

// ListStatusLogs returns the newest entries first.
func (s *Store) ListStatusLogs(ctx context.Context, feedbackID string, page Page) ([]models.StatusLogWithActor, error) {
	if !validID(feedbackID) {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := &where{}
	w.add("l.feedback_id = $%d", feedbackID)
	query := `SELECT l.id, l.feedback_id, l.status, l.changed_by, l.note, l.created_at, u.id, u.name, u.email
		FROM feedback_status_logs l
		LEFT JOIN users u ON u.id = l.changed_by` + w.String() + `
		ORDER BY l.created_at DESC, l.id`
	query += w.page(page)

	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.StatusLogWithActor
	for rows.Next() {
		var (
			l models.StatusLogWithActor
			u userLite
		)
		dest := append([]any{&l.ID, &l.FeedbackID, &l.Status, &l.ChangedBy, &l.Note, &l.CreatedAt}, u.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		l.Actor = u.get()
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CountStatusLogs(ctx context.Context, feedbackID string) (int, error) {
	if !validID(feedbackID) {
		return 0, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	return count(ctx, s.q, `SELECT COUNT(*) FROM feedback_status_logs WHERE feedback_id = $1`, feedbackID)
}

// FeedbackStats aggregates over feedback created within [from, to]; nil bounds are open.
func (s *Store) FeedbackStats(ctx context.Context, from, to *time.Time) (*models.FeedbackStats, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	w := &where{}
	if from != nil {
		w.add("f.created_at >= $%d", *from)
	}
	if to != nil {
		w.add("f.created_at <= $%d", *to)
	}

	rows, err := s.q.QueryContext(ctx, `SELECT f.status, COUNT(*) FROM feedbacks f`+w.String()+` GROUP BY f.status`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("feedback stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	st := &models.FeedbackStats{ByStatus: make(map[models.FeedbackStatus]int, len(models.FeedbackStatuses))}
	for _, v := range models.FeedbackStatuses {
		st.ByStatus[v] = 0
	}
	for rows.Next() {
		var (
			status models.FeedbackStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		st.ByStatus[status] = n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	w.raw("f.status = 'resolved'")
	w.raw("f.resolved_at IS NOT NULL")
	var avg sql.NullFloat64
	err = s.q.QueryRowContext(ctx,
		`SELECT AVG(EXTRACT(EPOCH FROM (f.resolved_at - f.created_at)) / 3600.0)::float8 FROM feedbacks f`+w.String(),
		w.args...).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("feedback avg resolution: %w", err)
	}
	if avg.Valid {
		h := int(math.Round(avg.Float64))
		st.AvgResolutionHours = &h
	}
	return st, nil
}
