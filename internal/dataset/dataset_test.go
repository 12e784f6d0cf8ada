package dataset

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"voice-forms-go/internal/actionable"
	"voice-forms-go/internal/aggregator"
	"voice-forms-go/internal/types"
)

func writeSheet(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.xlsx")
	f := excelize.NewFile()
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	return path
}

func TestLoadDetectsColumns(t *testing.T) {
	path := writeSheet(t, [][]any{
		{"Question ID", "Question #", "Response Text", "Response Time"},
		{"101", "1", "Delivery was late", "12.5"},
		{"102", "2", "", "3"},
		{"103", "3", "Support was great", ""},
	})
	rows, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].QuestionID != 101 || rows[0].QuestionNumber != 1 || rows[0].Text != "Delivery was late" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[0].ResponseTime == nil || *rows[0].ResponseTime != 12.5 {
		t.Errorf("response time = %v", rows[0].ResponseTime)
	}
	if rows[1].QuestionNumber != 3 || rows[1].ResponseTime != nil {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeSheet(t, [][]any{{"Response"}})); err == nil {
		t.Error("expected error for header-only sheet")
	}
}

func TestExport(t *testing.T) {
	sum := aggregator.Summarize(types.FormAnalytics{
		FormID:         3,
		TotalResponses: 3,
		Categories: []types.Category{
			{Name: "Pricing", Sentiment: types.SentimentNegative, ResponseCount: 2, Percentage: 66.67, Summary: "too expensive"},
			{Name: "Staff", Sentiment: types.SentimentPositive, ResponseCount: 1, Percentage: 33.33},
		},
	})
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := Export(path, sum, actionable.Generate(sum)); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(categoriesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[1][0] != "Pricing" || rows[1][1] != "2" {
		t.Errorf("categories sheet = %v", rows)
	}
	insight, _ := f.GetCellValue(overviewSheet, "B7")
	if insight == "" {
		t.Error("overview sheet has no insight")
	}
}
