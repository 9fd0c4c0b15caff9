package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ntbcli/internal/adoption"
	"ntbcli/internal/ingest"
	"ntbcli/internal/ytd"
)

func sampleReport() *adoption.Report {
	agg := adoption.NewPartial()
	agg.Total = 100
	agg.Eligible = 80
	agg.Registered = 50
	agg.AlreadyRegistered = 10
	agg.Active30Days = 30
	agg.WeeklyUsers = 12
	agg.OnboardCount = 50
	agg.OnboardDaysSum = 600
	agg.Regions["North"] = &adoption.GroupStats{Total: 60, Registered: 40, Active30Days: 20, WeeklyUsers: 8, OnboardCount: 40, OnboardDaysSum: 480}
	agg.Regions["South"] = &adoption.GroupStats{Total: 40, Registered: 20, Active30Days: 10}
	agg.MonthlyTrend["2024-01"] = 30
	agg.MonthlyTrend["2024-02"] = 30
	agg.Cohorts["2024-01"] = &adoption.CohortStats{Total: 50, Registered30: 25, Registered90: 40}
	return adoption.Finalize(agg, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
}

func readCSV(t *testing.T, path string) (header []string, rows [][]string, bom bool) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	bom = bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records[0], records[1:], bom
}

func TestCSVWriter_WriteReport(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	require.NoError(t, w.WriteReport(sampleReport()))

	wantFiles := []string{
		"summary.csv", "region_metrics.csv", "rgm_metrics.csv", "funnel.csv",
		"monthly_trend.csv", "onboarding_dist.csv", "activity_dist.csv", "cohorts.csv",
	}
	for _, name := range wantFiles {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	header, rows, bom := readCSV(t, filepath.Join(dir, "summary.csv"))
	assert.True(t, bom)
	assert.Equal(t, []string{"Metric", "Value"}, header)
	require.Len(t, rows, 12)
	assert.Equal(t, []string{"Total_Accounts", "100"}, rows[0])
	assert.Equal(t, []string{"Registration_Rate", "60.00"}, rows[8])

	_, funnel, _ := readCSV(t, filepath.Join(dir, "funnel.csv"))
	require.Len(t, funnel, 4)
	assert.Equal(t, []string{"Account Opening", "100", "100.00", "100.00", "0.00"}, funnel[0])
	assert.Equal(t, []string{"Mobile Registration", "60", "60.00", "60.00", "40.00"}, funnel[1])
}

func TestCSVWriter_UndefinedRatesAreEmptyCells(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	empty := adoption.Finalize(adoption.NewPartial(), time.Now())
	require.NoError(t, w.WriteReport(empty))

	_, rows, _ := readCSV(t, filepath.Join(dir, "summary.csv"))
	byMetric := make(map[string]string, len(rows))
	for _, row := range rows {
		byMetric[row[0]] = row[1]
	}
	assert.Equal(t, "", byMetric["Registration_Rate"], "undefined rate must be blank, not 0.00")
	assert.Equal(t, "", byMetric["Avg_Days_to_Onboard"])
	assert.Equal(t, "0", byMetric["Total_Accounts"])
}

func TestCSVWriter_NoBOM(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)
	w.BOMPrefix = false

	require.NoError(t, w.WriteTable("plain.csv", []string{"A"}, [][]string{{"1"}}))
	_, _, bom := readCSV(t, filepath.Join(dir, "plain.csv"))
	assert.False(t, bom)
}

func TestCSVWriter_WriteYTD(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	growth := 20.0
	cmp := ytd.Comparison{
		ReferenceDay: 140,
		Rows: []ytd.Row{
			{Year: 2023, Cumulative: 5000},
			{Year: 2024, Cumulative: 6000, GrowthRate: &growth},
		},
	}
	require.NoError(t, w.WriteYTD(cmp))

	header, rows, _ := readCSV(t, filepath.Join(dir, "ytd_comparison.csv"))
	assert.Equal(t, []string{"Year", "CumulativeToDay", "GrowthRate"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2023", "5000", ""}, rows[0])
	assert.Equal(t, []string{"2024", "6000", "20.00"}, rows[1])
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()

	doc := ReportDocument{
		Metadata: RunMetadata{
			RunID:         "run-123",
			GeneratedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			ReferenceTime: report.ReferenceTime,
			ReadStats:     ingest.ReadStats{RowsRead: 100, DroppedRows: 2},
		},
		Report: report,
	}
	require.NoError(t, WriteJSON(dir, "report.json", doc, nil))

	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)

	var decoded ReportDocument
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-123", decoded.Metadata.RunID)
	assert.Equal(t, int64(100), decoded.Metadata.ReadStats.RowsRead)
	require.NotNil(t, decoded.Report)
	assert.Equal(t, int64(100), decoded.Report.Summary.TotalAccounts)
	assert.Nil(t, decoded.YTD)
}

func TestExcelWriter_WriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	w := NewExcelWriter(dir, nil)

	growth := 20.0
	cmp := &ytd.Comparison{ReferenceDay: 140, Rows: []ytd.Row{
		{Year: 2023, Cumulative: 5000},
		{Year: 2024, Cumulative: 6000, GrowthRate: &growth},
	}}
	require.NoError(t, w.WriteWorkbook("report.xlsx", sampleReport(), cmp))

	f, err := excelize.OpenFile(filepath.Join(dir, "report.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	wantSheets := []string{"Summary", "Regions", "RGMs", "Funnel", "Monthly Trend",
		"Onboarding", "Activity", "Cohorts", "YTD"}
	assert.ElementsMatch(t, wantSheets, f.GetSheetList())

	rows, err := f.GetRows("Funnel")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 5)
	assert.Equal(t, "Account Opening", rows[1][0])

	value, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Metric", value)
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "", formatRate(nil))
	v := 12.345
	assert.Equal(t, "12.35", formatRate(&v))
}
