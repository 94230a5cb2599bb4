package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/campus-community/internal/models"
	"github.com/Spok95/campus-community/internal/testutil/memrepo"
)

type captured struct {
	texts []string
	err   error
}

func (c *captured) Broadcast(_ context.Context, text string) error {
	c.texts = append(c.texts, text)
	return c.err
}

func TestPendingDigestSilentWhenQueuesEmpty(t *testing.T) {
	out := &captured{}
	require.NoError(t, PendingDigest(memrepo.New(), out, nil)(context.Background()))
	assert.Empty(t, out.texts)
}

func TestPendingDigestListsOldestGroups(t *testing.T) {
	repo := memrepo.New()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 7; i++ {
		g := &models.Group{
			Name:      fmt.Sprintf("Club <%d>", i),
			Slug:      fmt.Sprintf("club-%d", i),
			Category:  models.CategoryClub,
			Status:    models.GroupPending,
			IsPublic:  true,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UpdatedAt: base,
		}
		require.NoError(t, repo.CreateGroup(ctx, g))
	}
	require.NoError(t, repo.CreateFeedback(ctx, &models.Feedback{
		AuthorID: "u1", TargetType: models.TargetGeneral, TargetDesc: "x", Title: "t", Content: "c",
		Status: models.FeedbackPending, CreatedAt: base, UpdatedAt: base,
	}))

	out := &captured{}
	require.NoError(t, PendingDigest(repo, out, time.UTC)(ctx))
	require.Len(t, out.texts, 1)
	text := out.texts[0]
	assert.Contains(t, text, "Groups waiting for review: 7")
	assert.Contains(t, text, "Club &lt;1&gt;")
	assert.NotContains(t, text, "club-6")
	assert.Contains(t, text, "and 2 more")
	assert.Contains(t, text, "Feedback awaiting triage: 1")
	assert.Equal(t, 5, strings.Count(text, "•"))
}

func TestPendingDigestPropagatesErrors(t *testing.T) {
	repo := memrepo.New()
	repo.FailOn("ListGroups", errors.New("db down"))
	err := PendingDigest(repo, &captured{}, nil)(context.Background())
	assert.ErrorContains(t, err, "list pending groups")
}

func TestRunnerRecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil)
	calls := make(chan struct{}, 4)
	r.Every(5*time.Millisecond, "panicky", func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		panic("boom")
	})

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not run again after panicking")
		}
	}
	cancel()
	r.Wait()
}
