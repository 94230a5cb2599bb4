package models

import "time"

type FeedbackTarget string

const (
	TargetAcademic FeedbackTarget = "academic"
	TargetOffice   FeedbackTarget = "office"
	TargetGeneral  FeedbackTarget = "general"
)

type FeedbackStatus string

const (
	FeedbackPending    FeedbackStatus = "pending"
	FeedbackProcessing FeedbackStatus = "processing"
	FeedbackResolved   FeedbackStatus = "resolved"
	FeedbackInvalid    FeedbackStatus = "invalid"
)

var FeedbackStatuses = []FeedbackStatus{FeedbackPending, FeedbackProcessing, FeedbackResolved, FeedbackInvalid}

func (s FeedbackStatus) Valid() bool {
	for _, v := range FeedbackStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Feedback struct {
	ID          string         `db:"id" json:"id"`
	AuthorID    string         `db:"author_id" json:"-"`
	TargetType  FeedbackTarget `db:"target_type" json:"targetType"`
	TargetDesc  string         `db:"target_desc" json:"targetDesc"`
	Title       string         `db:"title" json:"title"`
	Content     string         `db:"content" json:"content"`
	IsAnonymous bool           `db:"is_anonymous" json:"isAnonymous"`
	Status      FeedbackStatus `db:"status" json:"status"`
	ResolvedAt  *time.Time     `db:"resolved_at" json:"resolvedAt"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

type FeedbackWithAuthor struct {
	Feedback
	Author *UserLite `json:"author"`
}

// FeedbackStatusLog is append-only: rows are inserted and read, never updated.
type FeedbackStatusLog struct {
	ID         string         `db:"id" json:"id"`
	FeedbackID string         `db:"feedback_id" json:"feedbackId"`
	Status     FeedbackStatus `db:"status" json:"status"`
	ChangedBy  *string        `db:"changed_by" json:"-"`
	Note       *string        `db:"note" json:"note"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

type StatusLogWithActor struct {
	FeedbackStatusLog
	Actor *UserLite `json:"changedBy"`
}

type FeedbackStats struct {
	Total              int                    `json:"total"`
	ByStatus           map[FeedbackStatus]int `json:"byStatus"`
	AvgResolutionHours *int                   `json:"avgResolutionHours"`
}
