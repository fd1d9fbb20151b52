// Package report renders the adherence summary as an xlsx workbook.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/starford/dosewise/internal/adherence"
)

// Sheet names in the exported workbook.
const (
	SheetOverview    = "Overview"
	SheetWeekly      = "Weekly"
	SheetMedications = "Medications"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	weeklyHeader     = []string{"Date", "Day", "Taken", "Skipped", "Total", "Adherence %"}
	medicationHeader = []string{"Medication", "Taken", "Total", "Adherence %"}
)

// Adherence builds the workbook for s.
func Adherence(s adherence.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetOverview)
	if err != nil {
		return nil, fmt.Errorf("report: create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("report: drop default sheet: %w", err)
	}
	for _, name := range []string{SheetWeekly, SheetMedications} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("report: create sheet: %w", err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("report: header style: %w", err)
	}

	overview := [][]any{
		{"Date", s.Today},
		{"Overall adherence %", s.Overall},
		{"Tier", string(s.Tier)},
		{"Trend", string(s.Trend.Direction)},
		{"Last 3 days %", s.Trend.Recent},
		{"Previous 3 days %", s.Trend.Previous},
		{"Pending today", len(s.Pending)},
		{"Missed today", len(s.Missed)},
	}
	if err := writeRows(f, SheetOverview, overview); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetOverview, "A1", fmt.Sprintf("A%d", len(overview)), header); err != nil {
		return nil, fmt.Errorf("report: style: %w", err)
	}

	weekly := [][]any{toRow(weeklyHeader)}
	for _, d := range s.Weekly {
		pct := any(d.Percentage)
		if d.Percentage == adherence.NoData {
			pct = "-"
		}
		weekly = append(weekly, []any{d.Date, d.Weekday, d.Taken, d.Skipped, d.Total, pct})
	}
	if err := writeTable(f, SheetWeekly, weekly, header); err != nil {
		return nil, err
	}

	meds := [][]any{toRow(medicationHeader)}
	for _, m := range s.Medications {
		meds = append(meds, []any{m.Name, m.Taken, m.Total, m.Percentage})
	}
	if err := writeTable(f, SheetMedications, meds, header); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, rows [][]any, header int) error {
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return fmt.Errorf("report: header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return fmt.Errorf("report: style: %w", err)
	}
	col, _ := excelize.ColumnNumberToName(len(rows[0]))
	if err := f.SetColWidth(sheet, "A", col, 16); err != nil {
		return fmt.Errorf("report: column width: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("report: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toRow(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}
