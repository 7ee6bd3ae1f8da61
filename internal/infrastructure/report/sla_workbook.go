package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/workflow"
	"github.com/garyjia/emission-workflow/internal/domain/sla"
)

const (
	resultsSheet  = "SLA"
	failuresSheet = "Failures"
	summarySheet  = "Summary"
)

var resultsHeader = []interface{}{"Folio", "Case ID", "State", "Severity", "Elapsed (h)", "Budget (h)", "Escalated"}

// severityFill maps a severity to its row color
var severityFill = map[sla.Severity]string{
	sla.SeverityWarning:  "FFF2CC",
	sla.SeverityBreached: "F8CBAD",
	sla.SeverityHigh:     "FF7C80",
}

// SweepWorkbook renders SLA sweep reports as xlsx workbooks
type SweepWorkbook struct {
	logger *zap.Logger
}

// NewSweepWorkbook creates a new workbook renderer
func NewSweepWorkbook(logger *zap.Logger) *SweepWorkbook {
	return &SweepWorkbook{logger: logger}
}

// Render builds the workbook: one row per evaluated case, the isolated
// failures and a summary sheet.
func (w *SweepWorkbook) Render(report *workflow.SweepReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("sweep report is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := w.writeResults(f, report, headerStyle); err != nil {
		return nil, err
	}
	if err := w.writeFailures(f, report, headerStyle); err != nil {
		return nil, err
	}
	if err := w.writeSummary(f, report, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("SLA workbook rendered",
		zap.Int("results", len(report.Results)),
		zap.Int("failures", len(report.Failures)),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

func (w *SweepWorkbook) writeResults(f *excelize.File, report *workflow.SweepReport, headerStyle int) error {
	if err := f.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(resultsSheet, "A1", "G1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	styles := make(map[sla.Severity]int, len(severityFill))
	for severity, color := range severityFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return fmt.Errorf("failed to create %s style: %w", severity, err)
		}
		styles[severity] = id
	}

	for i, res := range report.Results {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}

		values := []interface{}{
			res.Folio,
			res.CaseID.String(),
			res.Assessment.State.String(),
			string(res.Assessment.Severity),
			roundHours(res.Assessment.Elapsed.Hours()),
			roundHours(res.Assessment.Budget.Hours()),
			yesNo(res.Escalated),
		}
		if err := f.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}

		if style, ok := styles[res.Assessment.Severity]; ok {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			if err := f.SetCellStyle(resultsSheet, cell, end, style); err != nil {
				w.logger.Warn("Failed to style row", zap.Int("row", row), zap.Error(err))
			}
		}
	}

	if err := f.SetColWidth(resultsSheet, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(resultsSheet, "B", "B", 38); err != nil {
		return err
	}
	return f.SetPanes(resultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *SweepWorkbook) writeFailures(f *excelize.File, report *workflow.SweepReport, headerStyle int) error {
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return fmt.Errorf("failed to create failures sheet: %w", err)
	}
	header := []interface{}{"Case ID", "Error"}
	if err := f.SetSheetRow(failuresSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(failuresSheet, "A1", "B1", headerStyle); err != nil {
		return err
	}

	for i, failure := range report.Failures {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		msg := ""
		if failure.Err != nil {
			msg = failure.Err.Error()
		}
		values := []interface{}{failure.CaseID.String(), msg}
		if err := f.SetSheetRow(failuresSheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func (w *SweepWorkbook) writeSummary(f *excelize.File, report *workflow.SweepReport, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	counts := make(map[sla.Severity]int)
	for _, res := range report.Results {
		counts[res.Assessment.Severity]++
	}

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Started at", report.StartedAt.UTC().Format("2006-01-02 15:04:05Z")},
		{"Finished at", report.FinishedAt.UTC().Format("2006-01-02 15:04:05Z")},
		{"Evaluated", len(report.Results)},
		{"Failed", len(report.Failures)},
		{"Escalated", report.Escalations()},
	}
	for _, severity := range []sla.Severity{sla.SeverityOK, sla.SeverityWarning, sla.SeverityBreached, sla.SeverityHigh} {
		rows = append(rows, []interface{}{string(severity), counts[severity]})
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "A", 16)
}

func roundHours(h float64) float64 {
	return float64(int64(h*10+0.5)) / 10
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
