package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/campus-community/internal/models"
)

const (
	feedbackSheet = "Feedback"
	summarySheet  = "Summary"
	anonymous     = "(anonymous)"
)

var feedbackHeader = []string{"ID", "Created", "Status", "Target", "Target description", "Title", "Content", "Author", "Resolved"}

// FeedbackWorkbook renders feedback rows plus a per-status summary sheet.
// Author columns must already be redacted by the caller; a nil author prints as anonymous.
func FeedbackWorkbook(items []models.FeedbackWithAuthor, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", feedbackSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(feedbackSheet, "A1", &feedbackHeader); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	counts := make(map[models.FeedbackStatus]int, len(models.FeedbackStatuses))
	for i, it := range items {
		counts[it.Status]++
		row := []any{
			it.ID,
			it.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			string(it.Status),
			string(it.TargetType),
			it.TargetDesc,
			it.Title,
			it.Content,
			authorLabel(it.Author),
			"",
		}
		if it.ResolvedAt != nil {
			row[8] = it.ResolvedAt.In(loc).Format("2006-01-02 15:04")
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(feedbackSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := ApplyDefaultExcelFormatting(f, feedbackSheet); err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &[]string{"Status", "Count"}); err != nil {
		return nil, err
	}
	for i, st := range models.FeedbackStatuses {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+2), &[]any{string(st), counts[st]}); err != nil {
			return nil, err
		}
	}
	total := len(models.FeedbackStatuses) + 2
	if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", total), &[]any{"total", len(items)}); err != nil {
		return nil, err
	}
	if err := ApplyDefaultExcelFormatting(f, summarySheet); err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func authorLabel(u *models.UserLite) string {
	if u == nil {
		return anonymous
	}
	if u.Name != nil && *u.Name != "" {
		if u.Email != "" {
			return fmt.Sprintf("%s <%s>", *u.Name, u.Email)
		}
		return *u.Name
	}
	return u.Email
}
