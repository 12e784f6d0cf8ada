package dataset

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"voice-forms-go/internal/actionable"
	"voice-forms-go/internal/aggregator"
)

const (
	categoriesSheet = "Categories"
	overviewSheet   = "Overview"
)

// Export writes a form's analytics to a workbook with a per-category sheet
// and an overview sheet.
func Export(path string, s aggregator.Summary, card actionable.ActionCard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", categoriesSheet); err != nil {
		return err
	}
	header := []any{"Category", "Responses", "Percentage", "Sentiment", "Summary"}
	if err := f.SetSheetRow(categoriesSheet, "A1", &header); err != nil {
		return err
	}
	for i, c := range s.Categories {
		row := []any{c.Name, c.ResponseCount, c.Percentage, string(c.Sentiment), c.Summary}
		if err := f.SetSheetRow(categoriesSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(overviewSheet); err != nil {
		return err
	}
	overview := [][]any{
		{"Form", s.FormID},
		{"Total responses", s.TotalResponses},
		{"Categories", s.TotalCategories},
		{"Positive %", s.SentimentDistribution["positive"]},
		{"Negative %", s.SentimentDistribution["negative"]},
		{"Neutral %", s.SentimentDistribution["neutral"]},
		{"Insight", card.Insight},
		{"Action", card.Action},
		{"Impact", card.Impact},
		{"Exported at", time.Now().UTC().Format(time.RFC3339)},
	}
	for i, row := range overview {
		if err := f.SetSheetRow(overviewSheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
