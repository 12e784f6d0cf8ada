// Package dataset moves form answers and analytics in and out of Excel
// workbooks.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one answer read from a workbook.
type Row struct {
	QuestionID     int64
	QuestionNumber int
	Text           string
	ResponseTime   *float64
}

// Load reads answers from the first sheet. Columns are found by header
// heuristics; rows without text are skipped.
func Load(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	textIdx, qidIdx, qnumIdx, timeIdx := -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "question") && (strings.Contains(l, "id") || strings.Contains(l, "key")):
			if qidIdx == -1 {
				qidIdx = i
			}
		case strings.Contains(l, "question") || l == "#" || l == "no":
			if qnumIdx == -1 {
				qnumIdx = i
			}
		case strings.Contains(l, "time") || strings.Contains(l, "duration"):
			if timeIdx == -1 {
				timeIdx = i
			}
		case strings.Contains(l, "response") || strings.Contains(l, "answer") || strings.Contains(l, "text") || strings.Contains(l, "comment"):
			if textIdx == -1 {
				textIdx = i
			}
		}
	}
	if textIdx == -1 {
		// single column sheets hold just the text
		textIdx = len(rows[0]) - 1
	}

	var out []Row
	for i, r := range rows[1:] {
		cell := func(idx int) string {
			if idx >= 0 && idx < len(r) {
				return strings.TrimSpace(r[idx])
			}
			return ""
		}
		row := Row{Text: cell(textIdx)}
		if row.Text == "" {
			continue
		}
		if v := cell(qidIdx); v != "" {
			row.QuestionID, _ = strconv.ParseInt(v, 10, 64)
		}
		row.QuestionNumber = i + 1
		if v := cell(qnumIdx); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				row.QuestionNumber = n
			}
		}
		if v := cell(timeIdx); v != "" {
			if t, err := strconv.ParseFloat(v, 64); err == nil {
				row.ResponseTime = &t
			}
		}
		out = append(out, row)
	}
	return out, nil
}
