package adoption

import (
	"sort"
	"time"

	"ntbcli/pkg/contracts/domain"
)

// Rate returns num/den*100, or nil when the denominator is zero. A zero
// denominator is an undefined rate, never 0%.
func Rate(num, den int64) *float64 {
	if den == 0 {
		return nil
	}
	r := float64(num) / float64(den) * 100
	return &r
}

// Mean returns sum/count, or nil when count is zero.
func Mean(sum float64, count int64) *float64 {
	if count == 0 {
		return nil
	}
	m := sum / float64(count)
	return &m
}

// Summary holds the run-wide headline counters and rates.
type Summary struct {
	TotalAccounts      int64    `json:"total_accounts"`
	EligibleAccounts   int64    `json:"eligible_accounts"`
	RegisteredAccounts int64    `json:"registered_accounts"`
	AlreadyRegistered  int64    `json:"already_registered"`
	Active30Days       int64    `json:"active_30_days"`
	WeeklyUsers        int64    `json:"weekly_users"`
	MonthlyUsers       int64    `json:"monthly_users"`
	RejectedRecords    int64    `json:"rejected_records"`
	RegistrationRate   *float64 `json:"registration_rate"`
	ActiveRate         *float64 `json:"active_rate"`
	QuickOnboardRate   *float64 `json:"quick_onboard_rate"`
	AvgDaysToOnboard   *float64 `json:"avg_days_to_onboard"`
}

// GroupMetrics is one row of the region or RGM metric tables.
type GroupMetrics struct {
	Name             string   `json:"name"`
	TotalAccounts    int64    `json:"total_accounts"`
	Registered       int64    `json:"registered"`
	Active30Days     int64    `json:"active_30_days"`
	WeeklyUsers      int64    `json:"weekly_users"`
	RegistrationRate *float64 `json:"registration_rate"`
	ActivationRate   *float64 `json:"activation_rate"`
	WeeklyUsageRate  *float64 `json:"weekly_usage_rate"`
	AvgDaysToOnboard *float64 `json:"avg_days_to_onboard"`
}

// FunnelStage is one row of the customer-journey funnel.
type FunnelStage struct {
	Stage          string   `json:"stage"`
	Count          int64    `json:"count"`
	PctOfTotal     *float64 `json:"pct_of_total"`
	ConversionRate *float64 `json:"conversion_rate"`
	DropOff        *float64 `json:"drop_off"`
}

// TrendPoint is one month of the registration time series.
type TrendPoint struct {
	Month         string `json:"month"`
	Registrations int64  `json:"registrations"`
}

// BracketCount is one row of a distribution table.
type BracketCount struct {
	Bracket string `json:"bracket"`
	Count   int64  `json:"count"`
}

// CohortRow is one open-month cohort with its registration-window rates.
// Mature30/Mature90 are required outputs: an immature cohort's rate is
// reported at face value but flagged provisional.
type CohortRow struct {
	Month        string   `json:"month"`
	Total        int64    `json:"total"`
	Registered30 int64    `json:"registered_30d"`
	Registered90 int64    `json:"registered_90d"`
	Rate30       *float64 `json:"rate_30d"`
	Rate90       *float64 `json:"rate_90d"`
	Mature30     bool     `json:"mature_30d"`
	Mature90     bool     `json:"mature_90d"`
}

// Report is the full set of output tables derived from one completed
// aggregate. Read-only once built.
type Report struct {
	ReferenceTime  time.Time      `json:"reference_time"`
	Summary        Summary        `json:"summary"`
	RegionMetrics  []GroupMetrics `json:"region_metrics"`
	RGMMetrics     []GroupMetrics `json:"rgm_metrics"`
	Funnel         []FunnelStage  `json:"funnel"`
	MonthlyTrend   []TrendPoint   `json:"monthly_trend"`
	OnboardingDist []BracketCount `json:"onboarding_dist"`
	ActivityDist   []BracketCount `json:"activity_dist"`
	Cohorts        []CohortRow    `json:"cohorts"`
}

// funnelStageNames is the fixed customer-journey stage ordering.
var funnelStageNames = []string{
	"Account Opening",
	"Mobile Registration",
	"Active in Last 30 Days",
	"Weekly Active Users",
}

// onboardingBracketOrder fixes distribution table ordering.
var onboardingBracketOrder = []domain.OnboardingBracket{
	domain.OnboardWithin5Days,
	domain.Onboard6To10Days,
	domain.Onboard11To30Days,
	domain.Onboard1To6Months,
	domain.OnboardOver6Months,
	domain.OnboardAlreadyRegistered,
	domain.OnboardNotRegistered,
}

// activityBracketOrder fixes distribution table ordering.
var activityBracketOrder = []domain.ActivityBracket{
	domain.ActivityWeekly,
	domain.ActivityBiweekly,
	domain.ActivityMonthly,
	domain.ActivityQuarterly,
	domain.ActivitySemiAnnual,
	domain.ActivityAnnual,
	domain.ActivityMoreThanYear,
	domain.ActivityInactive,
	domain.ActivityNotRegistered,
}

// Finalize derives the ratio metrics and report tables from a completed
// aggregate. All divisions are guarded; undefined rates stay nil.
func Finalize(agg *Partial, ref time.Time) *Report {
	allRegistered := agg.Registered + agg.AlreadyRegistered
	quick := agg.OnboardingDist[domain.OnboardWithin5Days] + agg.OnboardingDist[domain.Onboard6To10Days]

	report := &Report{
		ReferenceTime: ref,
		Summary: Summary{
			TotalAccounts:      agg.Total,
			EligibleAccounts:   agg.Eligible,
			RegisteredAccounts: allRegistered,
			AlreadyRegistered:  agg.AlreadyRegistered,
			Active30Days:       agg.Active30Days,
			WeeklyUsers:        agg.WeeklyUsers,
			MonthlyUsers:       agg.MonthlyUsers,
			RejectedRecords:    agg.RejectedRecords,
			RegistrationRate:   Rate(allRegistered, agg.Total),
			ActiveRate:         Rate(agg.Active30Days, allRegistered),
			QuickOnboardRate:   Rate(quick, allRegistered),
			AvgDaysToOnboard:   Mean(agg.OnboardDaysSum, agg.OnboardCount),
		},
		RegionMetrics:  groupTable(agg.Regions),
		RGMMetrics:     groupTable(agg.RGMs),
		Funnel:         buildFunnel([]int64{agg.Total, allRegistered, agg.Active30Days, agg.WeeklyUsers}),
		MonthlyTrend:   trendTable(agg.MonthlyTrend),
		OnboardingDist: onboardingTable(agg.OnboardingDist),
		ActivityDist:   activityTable(agg.ActivityDist),
		Cohorts:        cohortTable(agg.Cohorts, ref),
	}
	return report
}

func groupTable(groups map[string]*GroupStats) []GroupMetrics {
	rows := make([]GroupMetrics, 0, len(groups))
	for name, g := range groups {
		rows = append(rows, GroupMetrics{
			Name:             name,
			TotalAccounts:    g.Total,
			Registered:       g.Registered,
			Active30Days:     g.Active30Days,
			WeeklyUsers:      g.WeeklyUsers,
			RegistrationRate: Rate(g.Registered, g.Total),
			ActivationRate:   Rate(g.Active30Days, g.Registered),
			WeeklyUsageRate:  Rate(g.WeeklyUsers, g.Active30Days),
			AvgDaysToOnboard: Mean(g.OnboardDaysSum, g.OnboardCount),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// buildFunnel computes conversion and drop-off between consecutive stages.
// The first stage is the baseline: conversion 100, drop-off 0 by convention.
func buildFunnel(counts []int64) []FunnelStage {
	stages := make([]FunnelStage, len(counts))
	var total int64
	if len(counts) > 0 {
		total = counts[0]
	}
	for i, count := range counts {
		stage := FunnelStage{
			Stage:      funnelStageNames[i],
			Count:      count,
			PctOfTotal: Rate(count, total),
		}
		if i == 0 {
			conv, drop := 100.0, 0.0
			stage.ConversionRate = &conv
			stage.DropOff = &drop
		} else if conv := Rate(count, counts[i-1]); conv != nil {
			drop := 100 - *conv
			stage.ConversionRate = conv
			stage.DropOff = &drop
		}
		stages[i] = stage
	}
	return stages
}

func trendTable(trend map[string]int64) []TrendPoint {
	points := make([]TrendPoint, 0, len(trend))
	for month, count := range trend {
		points = append(points, TrendPoint{Month: month, Registrations: count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month < points[j].Month })
	return points
}

func onboardingTable(dist map[domain.OnboardingBracket]int64) []BracketCount {
	rows := make([]BracketCount, 0, len(onboardingBracketOrder))
	for _, bracket := range onboardingBracketOrder {
		rows = append(rows, BracketCount{Bracket: string(bracket), Count: dist[bracket]})
	}
	return rows
}

func activityTable(dist map[domain.ActivityBracket]int64) []BracketCount {
	rows := make([]BracketCount, 0, len(activityBracketOrder))
	for _, bracket := range activityBracketOrder {
		rows = append(rows, BracketCount{Bracket: string(bracket), Count: dist[bracket]})
	}
	return rows
}

// cohortTable builds the cohort rows. A cohort is mature for a window only
// when every account in it has had the full window elapse: the month must
// have ended at least window days before the reference time.
func cohortTable(cohorts map[string]*CohortStats, ref time.Time) []CohortRow {
	rows := make([]CohortRow, 0, len(cohorts))
	for month, c := range cohorts {
		row := CohortRow{
			Month:        month,
			Total:        c.Total,
			Registered30: c.Registered30,
			Registered90: c.Registered90,
			Rate30:       Rate(c.Registered30, c.Total),
			Rate90:       Rate(c.Registered90, c.Total),
		}
		if start, err := time.Parse("2006-01", month); err == nil {
			monthEnd := start.AddDate(0, 1, 0)
			row.Mature30 = !ref.Before(monthEnd.AddDate(0, 0, 30))
			row.Mature90 = !ref.Before(monthEnd.AddDate(0, 0, 90))
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows
}
