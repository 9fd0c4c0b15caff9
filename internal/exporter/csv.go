// Package exporter writes the completed aggregate tables for the
// presentation layer: one CSV per table, a JSON summary document, an Excel
// workbook, and console renderings for the cmd tools.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ntbcli/internal/adoption"
	apperrors "ntbcli/internal/errors"
	"ntbcli/internal/ytd"
)

// CSVWriter writes report tables into a target directory.
type CSVWriter struct {
	dir    string
	logger *slog.Logger
	// BOMPrefix adds a UTF-8 BOM so Excel opens the files cleanly.
	BOMPrefix bool
}

// NewCSVWriter creates a writer rooted at dir.
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, logger: logger, BOMPrefix: true}
}

// WriteTable writes one CSV file with a header row.
func (w *CSVWriter) WriteTable(name string, headers []string, records [][]string) error {
	path := filepath.Join(w.dir, name)
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "create reports directory", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeExport, fmt.Sprintf("create %s", path), err)
	}
	defer file.Close()

	if w.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return apperrors.Wrap(apperrors.CodeExport, "write BOM", err)
		}
	}

	cw := csv.NewWriter(file)
	if err := cw.Write(headers); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "write headers", err)
	}
	for _, record := range records {
		if err := cw.Write(record); err != nil {
			return apperrors.Wrap(apperrors.CodeExport, "write record", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrap(apperrors.CodeExport, "flush csv", err)
	}

	w.logger.Info("wrote report table",
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return nil
}

// WriteReport writes every table of a finalized report as CSV files.
func (w *CSVWriter) WriteReport(report *adoption.Report) error {
	tables := []struct {
		name    string
		headers []string
		records [][]string
	}{
		{"summary.csv", summaryHeaders, summaryRecords(report.Summary)},
		{"region_metrics.csv", groupHeaders("Region"), groupRecords(report.RegionMetrics)},
		{"rgm_metrics.csv", groupHeaders("RGM"), groupRecords(report.RGMMetrics)},
		{"funnel.csv", funnelHeaders, funnelRecords(report.Funnel)},
		{"monthly_trend.csv", trendHeaders, trendRecords(report.MonthlyTrend)},
		{"onboarding_dist.csv", bracketHeaders, bracketRecords(report.OnboardingDist)},
		{"activity_dist.csv", bracketHeaders, bracketRecords(report.ActivityDist)},
		{"cohorts.csv", cohortHeaders, cohortRecords(report.Cohorts)},
	}

	for _, table := range tables {
		if err := w.WriteTable(table.name, table.headers, table.records); err != nil {
			return err
		}
	}
	return nil
}

// WriteYTD writes the cross-year comparison table.
func (w *CSVWriter) WriteYTD(cmp ytd.Comparison) error {
	return w.WriteTable("ytd_comparison.csv", ytdHeaders, ytdRecords(cmp))
}

var (
	summaryHeaders = []string{"Metric", "Value"}
	funnelHeaders  = []string{"Stage", "Count", "PctOfTotal", "ConversionRate", "DropOff"}
	trendHeaders   = []string{"Month", "Registrations"}
	bracketHeaders = []string{"Bracket", "Count"}
	cohortHeaders  = []string{"CohortMonth", "Total", "Registered30d", "Registered90d", "Rate30d", "Rate90d", "Mature30d", "Mature90d"}
	ytdHeaders     = []string{"Year", "CumulativeToDay", "GrowthRate"}
)

func groupHeaders(keyName string) []string {
	return []string{keyName, "TotalAccounts", "Registered", "Active30Days", "WeeklyUsers",
		"RegistrationRate", "ActivationRate", "WeeklyUsageRate", "AvgDaysToOnboard"}
}

func summaryRecords(s adoption.Summary) [][]string {
	return [][]string{
		{"Total_Accounts", formatInt(s.TotalAccounts)},
		{"Eligible_Accounts", formatInt(s.EligibleAccounts)},
		{"Registered_Accounts", formatInt(s.RegisteredAccounts)},
		{"Already_Registered", formatInt(s.AlreadyRegistered)},
		{"Active_30_Days", formatInt(s.Active30Days)},
		{"Weekly_Users", formatInt(s.WeeklyUsers)},
		{"Monthly_Users", formatInt(s.MonthlyUsers)},
		{"Rejected_Records", formatInt(s.RejectedRecords)},
		{"Registration_Rate", formatRate(s.RegistrationRate)},
		{"Active_Rate", formatRate(s.ActiveRate)},
		{"Quick_Onboard_Rate", formatRate(s.QuickOnboardRate)},
		{"Avg_Days_to_Onboard", formatRate(s.AvgDaysToOnboard)},
	}
}

func groupRecords(rows []adoption.GroupMetrics) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Name,
			formatInt(row.TotalAccounts),
			formatInt(row.Registered),
			formatInt(row.Active30Days),
			formatInt(row.WeeklyUsers),
			formatRate(row.RegistrationRate),
			formatRate(row.ActivationRate),
			formatRate(row.WeeklyUsageRate),
			formatRate(row.AvgDaysToOnboard),
		})
	}
	return records
}

func funnelRecords(stages []adoption.FunnelStage) [][]string {
	records := make([][]string, 0, len(stages))
	for _, stage := range stages {
		records = append(records, []string{
			stage.Stage,
			formatInt(stage.Count),
			formatRate(stage.PctOfTotal),
			formatRate(stage.ConversionRate),
			formatRate(stage.DropOff),
		})
	}
	return records
}

func trendRecords(points []adoption.TrendPoint) [][]string {
	records := make([][]string, 0, len(points))
	for _, point := range points {
		records = append(records, []string{point.Month, formatInt(point.Registrations)})
	}
	return records
}

func bracketRecords(rows []adoption.BracketCount) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{row.Bracket, formatInt(row.Count)})
	}
	return records
}

func cohortRecords(rows []adoption.CohortRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Month,
			formatInt(row.Total),
			formatInt(row.Registered30),
			formatInt(row.Registered90),
			formatRate(row.Rate30),
			formatRate(row.Rate90),
			formatBool(row.Mature30),
			formatBool(row.Mature90),
		})
	}
	return records
}

func ytdRecords(cmp ytd.Comparison) [][]string {
	records := make([][]string, 0, len(cmp.Rows))
	for _, row := range cmp.Rows {
		records = append(records, []string{
			formatInt(int64(row.Year)),
			formatInt(row.Cumulative),
			formatRate(row.GrowthRate),
		})
	}
	return records
}
