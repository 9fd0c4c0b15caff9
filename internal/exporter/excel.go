package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ntbcli/internal/adoption"
	apperrors "ntbcli/internal/errors"
	"ntbcli/internal/ytd"
)

// ExcelWriter renders the report tables as a single workbook, one sheet per
// table, for distribution to stakeholders who live in Excel.
type ExcelWriter struct {
	dir    string
	logger *slog.Logger
}

// NewExcelWriter creates a writer rooted at dir.
func NewExcelWriter(dir string, logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelWriter{dir: dir, logger: logger}
}

// WriteWorkbook writes the full report as an .xlsx workbook. The YTD
// comparison sheet is included when cmp is non-nil.
func (w *ExcelWriter) WriteWorkbook(name string, report *adoption.Report, cmp *ytd.Comparison) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "create reports directory", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "create header style", err)
	}

	sheets := []struct {
		name    string
		headers []string
		records [][]string
	}{
		{"Summary", summaryHeaders, summaryRecords(report.Summary)},
		{"Regions", groupHeaders("Region"), groupRecords(report.RegionMetrics)},
		{"RGMs", groupHeaders("RGM"), groupRecords(report.RGMMetrics)},
		{"Funnel", funnelHeaders, funnelRecords(report.Funnel)},
		{"Monthly Trend", trendHeaders, trendRecords(report.MonthlyTrend)},
		{"Onboarding", bracketHeaders, bracketRecords(report.OnboardingDist)},
		{"Activity", bracketHeaders, bracketRecords(report.ActivityDist)},
		{"Cohorts", cohortHeaders, cohortRecords(report.Cohorts)},
	}
	if cmp != nil {
		sheets = append(sheets, struct {
			name    string
			headers []string
			records [][]string
		}{"YTD", ytdHeaders, ytdRecords(*cmp)})
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				return apperrors.Wrap(apperrors.CodeExport, "rename first sheet", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return apperrors.Wrap(apperrors.CodeExport, fmt.Sprintf("create sheet %s", sheet.name), err)
			}
		}
		if err := writeSheet(f, sheet.name, sheet.headers, sheet.records, headerStyle); err != nil {
			return err
		}
	}

	path := filepath.Join(w.dir, name)
	if err := f.SaveAs(path); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, fmt.Sprintf("save workbook %s", path), err)
	}

	w.logger.Info("wrote report workbook",
		slog.String("path", path),
		slog.Int("sheets", len(sheets)))
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, records [][]string, headerStyle int) error {
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "write sheet header", err)
	}

	endCol, err := excelize.ColumnNumberToName(len(headers))
	if err == nil {
		_ = f.SetCellStyle(sheet, "A1", endCol+"1", headerStyle)
	}

	for i, record := range records {
		row := make([]interface{}, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		axis := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return apperrors.Wrap(apperrors.CodeExport, "write sheet row", err)
		}
	}
	return nil
}
