package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/authz"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/export"
	"github.com/Spok95/campus-community/internal/models"
)

const (
	defaultFeedbackPageSize = 20
	initialStatusNote       = "Initial submission"
)

type FeedbackResponse = action.Response[models.Feedback, action.FeedbackCode]

// ExportFile is a generated spreadsheet.
type ExportFile struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// FeedbackService handles submission and admin triage of feedback.
type FeedbackService struct {
	base
}

func NewFeedbackService(repo db.Repo, guard *authz.Guard, log *zap.Logger, opts ...Option) *FeedbackService {
	return &FeedbackService{base: newBase(repo, guard, log, opts)}
}

// Create stores the feedback as pending together with its first status log entry.
func (s *FeedbackService) Create(ctx context.Context, sess auth.Session, in contract.CreateFeedbackInput) FeedbackResponse {
	return run(ctx, &s.base, sess, "feedback.create", func(ctx context.Context, u *auth.SessionUser) (*models.Feedback, action.FeedbackCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.FeedbackInvalidInput, err
		}
		content := contract.Sanitize(in.Content)
		if content == "" {
			return nil, action.FeedbackInvalidInput, action.Detail("content: must not be empty")
		}
		now := s.clock()
		f := &models.Feedback{
			AuthorID:    u.ID,
			TargetType:  in.TargetType,
			TargetDesc:  strings.TrimSpace(in.TargetDesc),
			Title:       strings.TrimSpace(in.Title),
			Content:     content,
			IsAnonymous: in.IsAnonymous,
			Status:      models.FeedbackPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		note := initialStatusNote
		err := s.repo.InTx(ctx, func(tx db.Repo) error {
			if err := tx.CreateFeedback(ctx, f); err != nil {
				return err
			}
			return tx.AppendStatusLog(ctx, &models.FeedbackStatusLog{
				FeedbackID: f.ID,
				Status:     models.FeedbackPending,
				ChangedBy:  &u.ID,
				Note:       &note,
				CreatedAt:  now,
			})
		})
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("create feedback: %w", err)
		}
		s.notify.FeedbackSubmitted(ctx, *f)
		return f, action.FeedbackCreateSuccess, nil
	})
}

func (s *FeedbackService) GetByID(ctx context.Context, sess auth.Session, id string) action.Response[models.FeedbackWithAuthor, action.FeedbackCode] {
	return run(ctx, &s.base, sess, "feedback.get", func(ctx context.Context, u *auth.SessionUser) (*models.FeedbackWithAuthor, action.FeedbackCode, error) {
		f, err := s.repo.GetFeedbackWithAuthor(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, action.FeedbackNotFound, nil
		}
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("get feedback: %w", err)
		}
		if !s.canAccess(u, &f.Feedback) {
			return nil, action.FeedbackForbidden, nil
		}
		redactAuthor(u, f)
		return f, action.FeedbackGetSuccess, nil
	})
}

// List shows admins everything and everyone else their own feedback, newest first.
func (s *FeedbackService) List(ctx context.Context, sess auth.Session, in contract.ListFeedbackInput) action.Response[action.Page[models.FeedbackWithAuthor], action.FeedbackCode] {
	return run(ctx, &s.base, sess, "feedback.list", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.FeedbackWithAuthor], action.FeedbackCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.FeedbackInvalidInput, err
		}
		p := action.NewPaging(in.Page, in.PageSize, defaultFeedbackPageSize)
		f := s.filter(u, in)
		f.Page = toPage(p)
		items, err := s.repo.ListFeedback(ctx, f)
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("list feedback: %w", err)
		}
		total, err := s.repo.CountFeedback(ctx, f)
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("count feedback: %w", err)
		}
		for i := range items {
			redactAuthor(u, &items[i])
		}
		return action.NewPage(items, total, p), action.FeedbackGetSuccess, nil
	})
}

func (s *FeedbackService) filter(u *auth.SessionUser, in contract.ListFeedbackInput) db.FeedbackFilter {
	f := db.FeedbackFilter{Statuses: in.Status, TargetType: in.TargetType, Search: strings.TrimSpace(in.Search)}
	if !s.guard.CanTriageFeedback(u) {
		f.AuthorID = u.ID
	}
	return f
}

// UpdateStatus moves feedback to any status and appends the transition to the log.
// Only platform admins may do this; the check precedes any read or write.
func (s *FeedbackService) UpdateStatus(ctx context.Context, sess auth.Session, id string, in contract.UpdateStatusInput) FeedbackResponse {
	return run(ctx, &s.base, sess, "feedback.update_status", func(ctx context.Context, u *auth.SessionUser) (*models.Feedback, action.FeedbackCode, error) {
		if !s.guard.CanTriageFeedback(u) {
			return nil, action.FeedbackForbidden, action.Detail("Only admin can change feedback status")
		}
		if err := contract.Validate(in); err != nil {
			return nil, action.FeedbackInvalidInput, err
		}

		now := s.clock()
		var out *models.Feedback
		err := s.repo.InTx(ctx, func(tx db.Repo) error {
			cur, err := tx.GetFeedbackByID(ctx, id)
			if errors.Is(err, db.ErrNotFound) {
				return abort[action.FeedbackCode]{action.FeedbackNotFound}
			}
			if err != nil {
				return fmt.Errorf("get feedback: %w", err)
			}
			var resolvedAt *time.Time
			if in.Status == models.FeedbackResolved {
				resolvedAt = &now
			}
			if err := tx.UpdateFeedbackStatus(ctx, cur.ID, in.Status, resolvedAt, now); err != nil {
				return err
			}
			if err := tx.AppendStatusLog(ctx, &models.FeedbackStatusLog{
				FeedbackID: cur.ID,
				Status:     in.Status,
				ChangedBy:  &u.ID,
				Note:       trimOpt(in.Note),
				CreatedAt:  now,
			}); err != nil {
				return err
			}
			out, err = tx.GetFeedbackByID(ctx, cur.ID)
			return err
		})
		if c, ok := aborted[action.FeedbackCode](err); ok {
			return nil, c, nil
		}
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("update feedback status: %w", err)
		}
		s.log.Info("feedback status changed", zap.String("feedback_id", id), zap.String("status", string(in.Status)), zap.String("user_id", u.ID))
		return out, action.FeedbackUpdateSuccess, nil
	})
}

func (s *FeedbackService) Delete(ctx context.Context, sess auth.Session, id string) action.Response[action.Empty, action.FeedbackCode] {
	return run(ctx, &s.base, sess, "feedback.delete", func(ctx context.Context, u *auth.SessionUser) (*action.Empty, action.FeedbackCode, error) {
		f, code, err := s.load(ctx, u, id)
		if code != "" || err != nil {
			return nil, code, err
		}
		if err := s.repo.DeleteFeedback(ctx, f.ID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, action.FeedbackNotFound, nil
			}
			return nil, action.FeedbackServerError, fmt.Errorf("delete feedback: %w", err)
		}
		return &action.Empty{}, action.FeedbackDeleteSuccess, nil
	})
}

// GetStatusLogs returns the history newest first. Only admins see who made each change.
func (s *FeedbackService) GetStatusLogs(ctx context.Context, sess auth.Session, id string, in contract.PageInput) action.Response[action.Page[models.StatusLogWithActor], action.FeedbackCode] {
	return run(ctx, &s.base, sess, "feedback.status_logs", func(ctx context.Context, u *auth.SessionUser) (*action.Page[models.StatusLogWithActor], action.FeedbackCode, error) {
		if err := contract.Validate(in); err != nil {
			return nil, action.FeedbackInvalidInput, err
		}
		f, code, err := s.load(ctx, u, id)
		if code != "" || err != nil {
			return nil, code, err
		}
		p := action.NewPaging(in.Page, in.PageSize, defaultFeedbackPageSize)
		items, err := s.repo.ListStatusLogs(ctx, f.ID, toPage(p))
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("list status logs: %w", err)
		}
		total, err := s.repo.CountStatusLogs(ctx, f.ID)
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("count status logs: %w", err)
		}
		redactActors(u, f, items, s.guard.CanTriageFeedback(u))
		return action.NewPage(items, total, p), action.FeedbackGetSuccess, nil
	})
}

// GetStats summarizes feedback created within the optional date range.
func (s *FeedbackService) GetStats(ctx context.Context, sess auth.Session, in contract.StatsInput) action.Response[models.FeedbackStats, action.FeedbackCode] {
	return run(ctx, &s.base, sess, "feedback.stats", func(ctx context.Context, u *auth.SessionUser) (*models.FeedbackStats, action.FeedbackCode, error) {
		if !s.guard.CanTriageFeedback(u) {
			return nil, action.FeedbackForbidden, nil
		}
		if in.StartDate != nil && in.EndDate != nil && in.StartDate.After(*in.EndDate) {
			return nil, action.FeedbackInvalidInput, action.Detail("startDate must not be after endDate")
		}
		st, err := s.repo.FeedbackStats(ctx, in.StartDate, in.EndDate)
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("feedback stats: %w", err)
		}
		return st, action.FeedbackGetSuccess, nil
	})
}

// Export builds an XLSX of all feedback matching the filter. Admins only.
func (s *FeedbackService) Export(ctx context.Context, sess auth.Session, in contract.ListFeedbackInput) action.Response[ExportFile, action.FeedbackCode] {
	return run(ctx, &s.base, sess, "feedback.export", func(ctx context.Context, u *auth.SessionUser) (*ExportFile, action.FeedbackCode, error) {
		if !s.guard.CanTriageFeedback(u) {
			return nil, action.FeedbackForbidden, nil
		}
		if err := contract.Validate(in); err != nil {
			return nil, action.FeedbackInvalidInput, err
		}
		items, err := s.repo.ListFeedback(ctx, s.filter(u, in))
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("list feedback: %w", err)
		}
		for i := range items {
			redactAuthor(u, &items[i])
		}
		data, err := export.FeedbackWorkbook(items, s.loc)
		if err != nil {
			return nil, action.FeedbackServerError, fmt.Errorf("build workbook: %w", err)
		}
		statuses := make([]string, 0, len(in.Status))
		for _, st := range in.Status {
			statuses = append(statuses, string(st))
		}
		name := export.BuildFeedbackFilename(strings.Join(statuses, ", "), s.now().In(s.loc))
		s.log.Info("feedback exported", zap.Int("rows", len(items)), zap.String("user_id", u.ID))
		return &ExportFile{Filename: name, Content: data}, action.FeedbackExportSuccess, nil
	})
}

// load fetches feedback the caller may see: their own, or any for admins.
func (s *FeedbackService) load(ctx context.Context, u *auth.SessionUser, id string) (*models.Feedback, action.FeedbackCode, error) {
	f, err := s.repo.GetFeedbackByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, action.FeedbackNotFound, nil
	}
	if err != nil {
		return nil, action.FeedbackServerError, fmt.Errorf("get feedback: %w", err)
	}
	if !s.canAccess(u, f) {
		return nil, action.FeedbackForbidden, nil
	}
	return f, "", nil
}

func (s *FeedbackService) canAccess(u *auth.SessionUser, f *models.Feedback) bool {
	return f.AuthorID == u.ID || s.guard.CanTriageFeedback(u)
}

// redactActors hides who made each change from non-admins. On anonymous feedback
// the entries written by the author stay hidden from admins too.
func redactActors(u *auth.SessionUser, f *models.Feedback, items []models.StatusLogWithActor, admin bool) {
	hideAuthor := f.IsAnonymous && f.AuthorID != u.ID
	for i := range items {
		byAuthor := items[i].ChangedBy != nil && *items[i].ChangedBy == f.AuthorID
		if !admin || (hideAuthor && byAuthor) {
			items[i].Actor = nil
		}
	}
}

// redactAuthor hides the author of anonymous feedback from everyone but the author.
func redactAuthor(u *auth.SessionUser, f *models.FeedbackWithAuthor) {
	if f.IsAnonymous && f.AuthorID != u.ID {
		f.Author = nil
	}
}
