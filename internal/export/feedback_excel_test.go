package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/campus-community/internal/models"
)

func TestFeedbackWorkbook(t *testing.T) {
	name := "Ann"
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	resolved := created.Add(5 * time.Hour)
	items := []models.FeedbackWithAuthor{
		{
			Feedback: models.Feedback{ID: "f1", TargetType: models.TargetOffice, TargetDesc: "Dorm office", Title: "Heating",
				Content: "Cold rooms", Status: models.FeedbackResolved, ResolvedAt: &resolved, CreatedAt: created},
			Author: &models.UserLite{ID: "u1", Name: &name, Email: "ann@campus.edu"},
		},
		{
			Feedback: models.Feedback{ID: "f2", TargetType: models.TargetGeneral, TargetDesc: "Campus", Title: "Wifi",
				Content: "Slow", IsAnonymous: true, Status: models.FeedbackPending, CreatedAt: created},
		},
	}

	data, err := FeedbackWorkbook(items, time.UTC)
	if err != nil {
		t.Fatalf("FeedbackWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(feedbackSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want header + 2 rows, got %d", len(rows))
	}
	if rows[1][7] != "Ann <ann@campus.edu>" || rows[1][8] != "2025-03-01 14:30" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	if rows[2][7] != anonymous {
		t.Fatalf("anonymous author leaked: %v", rows[2])
	}

	summary, _ := f.GetRows(summarySheet)
	if len(summary) != len(models.FeedbackStatuses)+2 || summary[len(summary)-1][1] != "2" {
		t.Fatalf("unexpected summary %v", summary)
	}
}

func TestBuildFeedbackFilename(t *testing.T) {
	got := BuildFeedbackFilename("pending/processing", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if got != "Feedback - pending_processing - 2025-03-01.xlsx" {
		t.Fatalf("got %q", got)
	}
	if got := BuildFeedbackFilename(" ", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)); got != "Feedback - all - 2025-03-01.xlsx" {
		t.Fatalf("got %q", got)
	}
}

func TestColumnName(t *testing.T) {
	for n, want := range map[int]string{1: "A", 26: "Z", 27: "AA", 52: "AZ"} {
		if got := columnName(n); got != want {
			t.Fatalf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
}
