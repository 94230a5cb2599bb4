package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

func (f *fixture) submit(t *testing.T, sess auth.Session, title string, anonymous bool) models.Feedback {
	t.Helper()
	res := f.feedback.Create(context.Background(), sess, contract.CreateFeedbackInput{
		TargetType:  models.TargetOffice,
		TargetDesc:  "Registrar",
		Title:       title,
		Content:     "Queue is too long",
		IsAnonymous: anonymous,
	})
	require.True(t, res.Success, res.State.Message)
	return *res.Data
}

func TestCreateFeedbackWritesInitialLog(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)

	fb := f.submit(t, author, "Queues", false)
	assert.Equal(t, models.FeedbackPending, fb.Status)
	assert.Nil(t, fb.ResolvedAt)
	require.Len(t, f.notes.feedback, 1)

	res := f.feedback.GetStatusLogs(context.Background(), author, fb.ID, contract.PageInput{})
	require.True(t, res.Success, res.State.Message)
	require.Len(t, res.Data.Items, 1)
	assert.Equal(t, models.FeedbackPending, res.Data.Items[0].Status)
	require.NotNil(t, res.Data.Items[0].Note)
	assert.Equal(t, "Initial submission", *res.Data.Items[0].Note)
}

func TestCreateFeedbackRollsBackWithoutLog(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	f.repo.FailOn("AppendStatusLog", errors.New("log table locked"))

	res := f.feedback.Create(context.Background(), author, contract.CreateFeedbackInput{
		TargetType: models.TargetGeneral, TargetDesc: "Cafeteria", Title: "Food", Content: "Cold",
	})
	assert.Equal(t, action.FeedbackServerError, res.State.Code)

	n, err := f.repo.CountFeedback(context.Background(), db.FeedbackFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.notes.feedback)
}

func TestNonAdminCannotUpdateStatus(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	fb := f.submit(t, author, "Queues", false)
	before := f.repo.StatusLogCount()

	for _, role := range []models.Role{models.Student, models.Moderator} {
		sess := f.login(t, role)
		res := f.feedback.UpdateStatus(context.Background(), sess, fb.ID, contract.UpdateStatusInput{Status: models.FeedbackResolved})
		assert.Equal(t, action.FeedbackForbidden, res.State.Code, role)
	}
	res := f.feedback.UpdateStatus(context.Background(), author, fb.ID, contract.UpdateStatusInput{Status: models.FeedbackResolved})
	assert.Equal(t, action.FeedbackForbidden, res.State.Code)

	assert.Equal(t, before, f.repo.StatusLogCount())
	cur, err := f.repo.GetFeedbackByID(context.Background(), fb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackPending, cur.Status)
}

func TestUpdateStatusAppendsLog(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	admin := f.login(t, models.Admin)
	fb := f.submit(t, author, "Queues", false)
	ctx := context.Background()

	res := f.feedback.UpdateStatus(ctx, admin, fb.ID, contract.UpdateStatusInput{Status: models.FeedbackProcessing, Note: ptr(" Forwarded to Q&A office ")})
	require.True(t, res.Success, res.State.Message)
	assert.Nil(t, res.Data.ResolvedAt)

	res = f.feedback.UpdateStatus(ctx, admin, fb.ID, contract.UpdateStatusInput{Status: models.FeedbackResolved})
	require.True(t, res.Success, res.State.Message)
	require.NotNil(t, res.Data.ResolvedAt)
	resolvedAt := *res.Data.ResolvedAt

	// Order is not enforced; reopening keeps the first resolution time.
	res = f.feedback.UpdateStatus(ctx, admin, fb.ID, contract.UpdateStatusInput{Status: models.FeedbackPending})
	require.True(t, res.Success, res.State.Message)
	require.NotNil(t, res.Data.ResolvedAt)
	assert.Equal(t, resolvedAt, *res.Data.ResolvedAt)

	logs := f.feedback.GetStatusLogs(ctx, admin, fb.ID, contract.PageInput{})
	require.True(t, logs.Success, logs.State.Message)
	require.Equal(t, 4, logs.Data.Total)
	assert.Equal(t, models.FeedbackPending, logs.Data.Items[0].Status, "newest first")
	assert.Equal(t, models.FeedbackProcessing, logs.Data.Items[2].Status)
	require.NotNil(t, logs.Data.Items[2].Note)
	assert.Equal(t, "Forwarded to Q&A office", *logs.Data.Items[2].Note)
	require.NotNil(t, logs.Data.Items[0].Actor)
	assert.Equal(t, userID(t, admin), logs.Data.Items[0].Actor.ID)

	own := f.feedback.GetStatusLogs(ctx, author, fb.ID, contract.PageInput{})
	require.True(t, own.Success, own.State.Message)
	for _, l := range own.Data.Items {
		assert.Nil(t, l.Actor)
	}

	assert.Equal(t, action.FeedbackNotFound, f.feedback.UpdateStatus(ctx, admin, "missing", contract.UpdateStatusInput{Status: models.FeedbackInvalid}).State.Code)
	assert.Equal(t, action.FeedbackInvalidInput, f.feedback.UpdateStatus(ctx, admin, fb.ID, contract.UpdateStatusInput{Status: "closed"}).State.Code)
}

func TestFeedbackAccess(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	stranger := f.login(t, models.Student)
	admin := f.login(t, models.Admin)
	fb := f.submit(t, author, "Queues", false)
	ctx := context.Background()

	assert.Equal(t, action.FeedbackForbidden, f.feedback.GetByID(ctx, stranger, fb.ID).State.Code)
	assert.Equal(t, action.FeedbackForbidden, f.feedback.Delete(ctx, stranger, fb.ID).State.Code)
	assert.Equal(t, action.FeedbackForbidden, f.feedback.GetStatusLogs(ctx, stranger, fb.ID, contract.PageInput{}).State.Code)

	got := f.feedback.GetByID(ctx, admin, fb.ID)
	require.True(t, got.Success, got.State.Message)
	require.NotNil(t, got.Data.Author)
	assert.Equal(t, userID(t, author), got.Data.Author.ID)

	assert.True(t, f.feedback.Delete(ctx, author, fb.ID).Success)
	assert.Equal(t, action.FeedbackNotFound, f.feedback.GetByID(ctx, admin, fb.ID).State.Code)
	assert.Zero(t, f.repo.StatusLogCount())
}

func TestAnonymousFeedbackHidesAuthor(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	admin := f.login(t, models.Admin)
	fb := f.submit(t, author, "Secret", true)
	ctx := context.Background()

	res := f.feedback.GetByID(ctx, admin, fb.ID)
	require.True(t, res.Success, res.State.Message)
	assert.Nil(t, res.Data.Author)

	list := f.feedback.List(ctx, admin, contract.ListFeedbackInput{})
	require.True(t, list.Success, list.State.Message)
	require.Len(t, list.Data.Items, 1)
	assert.Nil(t, list.Data.Items[0].Author)

	own := f.feedback.GetByID(ctx, author, fb.ID)
	require.True(t, own.Success, own.State.Message)
	assert.NotNil(t, own.Data.Author)
}

func TestAnonymousFeedbackHidesAuthorInStatusLogs(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	admin := f.login(t, models.Admin)
	fb := f.submit(t, author, "Secret", true)
	ctx := context.Background()
	require.True(t, f.feedback.UpdateStatus(ctx, admin, fb.ID, contract.UpdateStatusInput{Status: models.FeedbackProcessing}).Success)

	logs := f.feedback.GetStatusLogs(ctx, admin, fb.ID, contract.PageInput{})
	require.True(t, logs.Success, logs.State.Message)
	require.Len(t, logs.Data.Items, 2)
	assert.Equal(t, models.FeedbackProcessing, logs.Data.Items[0].Status)
	require.NotNil(t, logs.Data.Items[0].Actor)
	assert.Equal(t, userID(t, admin), logs.Data.Items[0].Actor.ID)
	assert.Equal(t, models.FeedbackPending, logs.Data.Items[1].Status)
	assert.Nil(t, logs.Data.Items[1].Actor)

	own := f.feedback.GetStatusLogs(ctx, author, fb.ID, contract.PageInput{})
	require.True(t, own.Success, own.State.Message)
	for _, it := range own.Data.Items {
		assert.Nil(t, it.Actor)
	}

	named := f.submit(t, author, "Signed", false)
	signed := f.feedback.GetStatusLogs(ctx, admin, named.ID, contract.PageInput{})
	require.True(t, signed.Success, signed.State.Message)
	require.Len(t, signed.Data.Items, 1)
	require.NotNil(t, signed.Data.Items[0].Actor)
	assert.Equal(t, userID(t, author), signed.Data.Items[0].Actor.ID)
}

func TestListFeedbackScopesToAuthor(t *testing.T) {
	f := newFixture(t)
	a := f.login(t, models.Student)
	b := f.login(t, models.Student)
	admin := f.login(t, models.Admin)
	f.submit(t, a, "From A", false)
	second := f.submit(t, b, "From B", false)
	f.submit(t, b, "Another from B", false)
	ctx := context.Background()
	require.True(t, f.feedback.UpdateStatus(ctx, admin, second.ID, contract.UpdateStatusInput{Status: models.FeedbackProcessing}).Success)

	res := f.feedback.List(ctx, a, contract.ListFeedbackInput{})
	require.True(t, res.Success, res.State.Message)
	require.Equal(t, 1, res.Data.Total)
	assert.Equal(t, "From A", res.Data.Items[0].Title)

	all := f.feedback.List(ctx, admin, contract.ListFeedbackInput{})
	assert.Equal(t, 3, all.Data.Total)
	assert.Equal(t, "Another from B", all.Data.Items[0].Title)

	filtered := f.feedback.List(ctx, admin, contract.ListFeedbackInput{Status: []models.FeedbackStatus{models.FeedbackProcessing}})
	require.Equal(t, 1, filtered.Data.Total)
	assert.Equal(t, second.ID, filtered.Data.Items[0].ID)

	bad := f.feedback.List(ctx, admin, contract.ListFeedbackInput{Status: []models.FeedbackStatus{"closed"}})
	assert.Equal(t, action.FeedbackInvalidInput, bad.State.Code)
}

func TestFeedbackStats(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	admin := f.login(t, models.Admin)
	ctx := context.Background()

	empty := f.feedback.GetStats(ctx, admin, contract.StatsInput{})
	require.True(t, empty.Success, empty.State.Message)
	assert.Nil(t, empty.Data.AvgResolutionHours)

	fb := f.submit(t, author, "Queues", false)
	f.submit(t, author, "Wifi", false)
	f.clock.mu.Lock()
	f.clock.t = f.clock.t.Add(3 * time.Hour)
	f.clock.mu.Unlock()
	require.True(t, f.feedback.UpdateStatus(ctx, admin, fb.ID, contract.UpdateStatusInput{Status: models.FeedbackResolved}).Success)

	res := f.feedback.GetStats(ctx, admin, contract.StatsInput{})
	require.True(t, res.Success, res.State.Message)
	assert.Equal(t, 2, res.Data.Total)
	assert.Equal(t, 1, res.Data.ByStatus[models.FeedbackResolved])
	assert.Equal(t, 1, res.Data.ByStatus[models.FeedbackPending])
	require.NotNil(t, res.Data.AvgResolutionHours)
	assert.Equal(t, 3, *res.Data.AvgResolutionHours)

	assert.Equal(t, action.FeedbackForbidden, f.feedback.GetStats(ctx, author, contract.StatsInput{}).State.Code)

	later := start.Add(48 * time.Hour)
	window := f.feedback.GetStats(ctx, admin, contract.StatsInput{StartDate: &later})
	require.True(t, window.Success)
	assert.Zero(t, window.Data.Total)

	bad := f.feedback.GetStats(ctx, admin, contract.StatsInput{StartDate: &later, EndDate: &start})
	assert.Equal(t, action.FeedbackInvalidInput, bad.State.Code)
}

func TestExportFeedback(t *testing.T) {
	f := newFixture(t)
	author := f.login(t, models.Student)
	admin := f.login(t, models.Admin)
	f.submit(t, author, "Queues", true)
	ctx := context.Background()

	assert.Equal(t, action.FeedbackForbidden, f.feedback.Export(ctx, author, contract.ListFeedbackInput{}).State.Code)

	res := f.feedback.Export(ctx, admin, contract.ListFeedbackInput{Status: []models.FeedbackStatus{models.FeedbackPending}})
	require.True(t, res.Success, res.State.Message)
	assert.True(t, strings.HasPrefix(res.Data.Filename, "Feedback - pending - "), res.Data.Filename)
	assert.True(t, strings.HasSuffix(res.Data.Filename, ".xlsx"))
	assert.NotEmpty(t, res.Data.Content)
}
