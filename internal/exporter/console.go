package exporter

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"ntbcli/internal/adoption"
	"ntbcli/internal/ytd"
)

// RenderSummary prints the headline counters as a console table.
func RenderSummary(w io.Writer, s adoption.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	for _, rec := range summaryRecords(s) {
		t.AppendRow(table.Row{rec[0], rec[1]})
	}
	t.Render()
}

// RenderFunnel prints the customer-journey funnel as a console table.
func RenderFunnel(w io.Writer, stages []adoption.FunnelStage) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Count", "% of Total", "Conversion", "Drop-off"})
	for _, stage := range stages {
		t.AppendRow(table.Row{
			stage.Stage,
			stage.Count,
			formatRate(stage.PctOfTotal),
			formatRate(stage.ConversionRate),
			formatRate(stage.DropOff),
		})
	}
	t.Render()
}

// RenderGroups prints a region or RGM metric table.
func RenderGroups(w io.Writer, keyName string, rows []adoption.GroupMetrics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{keyName, "Accounts", "Registered", "Active 30d", "Weekly", "Reg Rate", "Act Rate", "Avg Onboard"})
	for _, row := range rows {
		t.AppendRow(table.Row{
			row.Name,
			row.TotalAccounts,
			row.Registered,
			row.Active30Days,
			row.WeeklyUsers,
			formatRate(row.RegistrationRate),
			formatRate(row.ActivationRate),
			formatRate(row.AvgDaysToOnboard),
		})
	}
	t.Render()
}

// RenderYTD prints the cross-year comparison table.
func RenderYTD(w io.Writer, cmp ytd.Comparison) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Year", "Cumulative to Day", "Growth"})
	for _, row := range cmp.Rows {
		growth := formatRate(row.GrowthRate)
		if growth != "" {
			growth += "%"
		}
		t.AppendRow(table.Row{row.Year, row.Cumulative, growth})
	}
	t.Render()
}
