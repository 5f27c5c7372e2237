package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	checklistSheet = "Checklist"
	evidenceSheet  = "Evidence"
)

// ExportXLSX renders the checklist and its evidence as a workbook
func ExportXLSX(r *model.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default sheet becomes the checklist
	if err := f.SetSheetName(f.GetSheetName(0), checklistSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(evidenceSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	checklist := [][]any{{"Standard", "Name", "State", "Score", "Evidence", "Forced", "Applicable Types", "Expected Evidence"}}
	for _, e := range r.Checklist {
		types := make([]string, 0, len(e.ApplicableTypes))
		for _, t := range e.ApplicableTypes {
			types = append(types, string(t))
		}
		checklist = append(checklist, []any{
			e.Standard,
			e.Name,
			string(e.State),
			e.Score,
			len(e.Evidence),
			e.Forced,
			strings.Join(types, ", "),
			strings.Join(e.ExpectedEvidence, "; "),
		})
	}
	if err := writeRows(f, checklistSheet, checklist); err != nil {
		return nil, err
	}

	evidence := [][]any{{"Standard", "Kind", "Subcategory", "Page", "Snippet", "Pattern", "Source", "Confidence"}}
	for _, e := range r.Checklist {
		for _, ev := range e.Evidence {
			conf := ""
			if ev.Confidence != nil {
				conf = fmt.Sprintf("%.2f", *ev.Confidence)
			}
			source := string(ev.Source)
			if ev.Detector != "" {
				source += " (" + ev.Detector + ")"
			}
			evidence = append(evidence, []any{
				ev.Standard,
				string(ev.Kind),
				ev.Subcategory,
				ev.Page,
				truncate(ev.Snippet, 500),
				ev.Pattern,
				source,
				conf,
			})
		}
	}
	if err := writeRows(f, evidenceSheet, evidence); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(checklistSheet, "A", "A", 26) // standard
	_ = f.SetColWidth(checklistSheet, "B", "B", 48) // name
	_ = f.SetColWidth(checklistSheet, "C", "F", 14)
	_ = f.SetColWidth(checklistSheet, "G", "H", 40)
	_ = f.SetColWidth(evidenceSheet, "A", "A", 26)
	_ = f.SetColWidth(evidenceSheet, "C", "C", 32)
	_ = f.SetColWidth(evidenceSheet, "E", "E", 80) // snippet
	_ = f.SetColWidth(evidenceSheet, "F", "F", 48)

	idx, _ := f.GetSheetIndex(checklistSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSXFile exports the report to path
func WriteXLSXFile(path string, r *model.Report) error {
	data, err := ExportXLSX(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
