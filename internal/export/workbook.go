package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// Sheet names, in workbook order. The layout mirrors the weekly audit
// report: a KPI page for executives, per-control status, failures ranked by
// severity, and the full evidence dump for power users.
const (
	sheetSummary  = "Executive Summary"
	sheetControls = "Control Status"
	sheetFailures = "Failed Findings"
	sheetDetail   = "Evidence Detail"
)

var detailHeader = []string{
	"Control ID", "Control Name", "Resource", "Status", "Severity",
	"Timestamp", "Source", "Check ID", "Detail", "Age (days)", "SLA Breach",
	"Owner", "Environment",
}

// BuildWorkbook renders rows and their summary into a new in-memory workbook.
// The failures sheet contains exactly the detail rows whose status is fail;
// no row is lost or invented between the two views.
func BuildWorkbook(rows []models.NormalizedRow, summary models.ReportSummary, meta RunMeta) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D7E4BC"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummarySheet(f, summary, meta, headerStyle); err != nil {
		return nil, err
	}
	if err := writeControlSheet(f, rows, headerStyle); err != nil {
		return nil, err
	}
	if err := writeRowSheet(f, sheetFailures, failingRows(rows), headerStyle); err != nil {
		return nil, err
	}
	if err := writeRowSheet(f, sheetDetail, rows, headerStyle); err != nil {
		return nil, err
	}

	// Drop the default sheet and land the reader on the summary.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(sheetSummary)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	return f, nil
}

// failingRows returns the rows with status fail, ordered by severity rank
// descending (stable within rank, preserving the detail ordering).
func failingRows(rows []models.NormalizedRow) []models.NormalizedRow {
	var failed []models.NormalizedRow
	for _, row := range rows {
		if row.Status == models.StatusFail {
			failed = append(failed, row)
		}
	}
	sort.SliceStable(failed, func(i, j int) bool {
		return failed[i].SeverityRank > failed[j].SeverityRank
	})
	return failed
}

func writeSummarySheet(f *excelize.File, summary models.ReportSummary, meta RunMeta, headerStyle int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheetSummary, err)
	}

	kpis := [][2]interface{}{
		{"Report ID", meta.ReportID},
		{"Generated", meta.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC")},
		{"Account", meta.AccountID},
		{"Region", meta.Region},
		{"Evidence Window (days)", meta.WindowDays},
		{"Total Controls", summary.TotalControls},
		{"Total Evidence Rows", summary.TotalRows},
		{"Pass", summary.PassRows},
		{"Fail", summary.FailRows},
		{"Manual", summary.ManualRows},
		{"Not Applicable", summary.NotApplicableRows},
		{"Compliance Rate (%)", fmt.Sprintf("%.1f", summary.ComplianceRate)},
	}

	if err := f.SetCellValue(sheetSummary, "A1", "Metric"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheetSummary, "B1", "Value"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetSummary, "A1", "B1", headerStyle); err != nil {
		return err
	}
	for i, kpi := range kpis {
		rowNum := i + 2
		if err := f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", rowNum), kpi[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", rowNum), kpi[1]); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSummary, "A", "B", 28)
}

// controlLine is one row of the Control Status sheet: the worst status
// observed for a control plus its latest evidence timestamp.
type controlLine struct {
	id, name     string
	severity     models.Severity
	status       models.ControlStatus
	lastEvidence string
}

func writeControlSheet(f *excelize.File, rows []models.NormalizedRow, headerStyle int) error {
	if _, err := f.NewSheet(sheetControls); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheetControls, err)
	}

	byControl := make(map[string]*controlLine)
	var order []string
	for _, row := range rows {
		line, ok := byControl[row.ControlID]
		if !ok {
			line = &controlLine{id: row.ControlID, name: row.ControlName, severity: row.Severity, status: row.Status}
			byControl[row.ControlID] = line
			order = append(order, row.ControlID)
		}
		if statusWeight(row.Status) > statusWeight(line.status) {
			line.status = row.Status
		}
		if !row.Timestamp.IsZero() {
			ts := row.Timestamp.UTC().Format("2006-01-02")
			if ts > line.lastEvidence {
				line.lastEvidence = ts
			}
		}
	}

	header := []string{"Control ID", "Control Name", "Severity", "Status", "Last Evidence"}
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetControls, cell, h); err != nil {
			return err
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheetControls, "A1", endCell, headerStyle); err != nil {
		return err
	}

	for i, id := range order {
		line := byControl[id]
		values := []interface{}{line.id, line.name, string(line.severity), string(line.status), line.lastEvidence}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetControls, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(sheetControls, "A", "E", 24)
}

// statusWeight orders statuses from least to most attention-demanding so the
// Control Status sheet shows the worst observed state per control.
func statusWeight(s models.ControlStatus) int {
	switch s {
	case models.StatusFail:
		return 3
	case models.StatusManual:
		return 2
	case models.StatusPass:
		return 1
	default: // not-applicable
		return 0
	}
}

func writeRowSheet(f *excelize.File, sheet string, rows []models.NormalizedRow, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheet, err)
	}

	for col, h := range detailHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(detailHeader), 1)
	if err := f.SetCellStyle(sheet, "A1", endCell, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		values := rowValues(row)
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(sheet, "A", "M", 22)
}

// rowValues flattens a NormalizedRow into the detail column order.
func rowValues(row models.NormalizedRow) []interface{} {
	ts := ""
	if !row.Timestamp.IsZero() {
		ts = row.Timestamp.UTC().Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		row.ControlID,
		row.ControlName,
		row.ResourceID,
		string(row.Status),
		string(row.Severity),
		ts,
		string(row.Source),
		row.CheckID,
		row.Detail,
		row.AgeDays,
		row.SLABreach,
		row.Owner,
		row.Environment,
	}
}
