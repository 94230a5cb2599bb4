package jobs

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

// digestGroupLimit caps how many waiting groups are named in one digest.
const digestGroupLimit = 5

// Broadcaster delivers a message to every moderator.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) error
}

// PendingDigest reminds moderators about groups waiting for review and untriaged
// feedback. Nothing is sent when both queues are empty.
func PendingDigest(repo db.Repo, out Broadcaster, loc *time.Location) Job {
	if loc == nil {
		loc = time.UTC
	}
	return func(ctx context.Context) error {
		pending := db.GroupFilter{Status: models.GroupPending, Oldest: true, Page: db.Page{Limit: digestGroupLimit}}
		groups, err := repo.ListGroups(ctx, pending)
		if err != nil {
			return fmt.Errorf("list pending groups: %w", err)
		}
		groupCount, err := repo.CountGroups(ctx, pending)
		if err != nil {
			return fmt.Errorf("count pending groups: %w", err)
		}
		feedbackCount, err := repo.CountFeedback(ctx, db.FeedbackFilter{Statuses: []models.FeedbackStatus{models.FeedbackPending}})
		if err != nil {
			return fmt.Errorf("count pending feedback: %w", err)
		}
		if groupCount == 0 && feedbackCount == 0 {
			return nil
		}
		return out.Broadcast(ctx, digestText(groups, groupCount, feedbackCount, loc))
	}
}

func digestText(groups []models.GroupWithCreator, groupCount, feedbackCount int, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("📋 <b>Moderation queue</b>\n")
	fmt.Fprintf(&b, "Groups waiting for review: %d\n", groupCount)
	for _, g := range groups {
		fmt.Fprintf(&b, "• %s (<code>%s</code>), since %s\n",
			html.EscapeString(g.Name), html.EscapeString(g.Slug), g.CreatedAt.In(loc).Format("02.01 15:04"))
	}
	if rest := groupCount - len(groups); rest > 0 {
		fmt.Fprintf(&b, "…and %d more\n", rest)
	}
	fmt.Fprintf(&b, "Feedback awaiting triage: %d", feedbackCount)
	return b.String()
}
