package adoption

import (
	"ntbcli/pkg/contracts/domain"
)

// GroupStats is the (count, sum) accumulator for one region or RGM group.
// Sums are carried alongside counts so that merging two partials stays
// exact; means are only computed at finalization.
type GroupStats struct {
	Total          int64   `json:"total"`
	Registered     int64   `json:"registered"`
	Active30Days   int64   `json:"active_30_days"`
	WeeklyUsers    int64   `json:"weekly_users"`
	OnboardCount   int64   `json:"onboard_count"`
	OnboardDaysSum float64 `json:"onboard_days_sum"`
}

func (g *GroupStats) merge(other *GroupStats) {
	g.Total += other.Total
	g.Registered += other.Registered
	g.Active30Days += other.Active30Days
	g.WeeklyUsers += other.WeeklyUsers
	g.OnboardCount += other.OnboardCount
	g.OnboardDaysSum += other.OnboardDaysSum
}

// CohortStats is the accumulator for one open-month cohort.
type CohortStats struct {
	Total        int64 `json:"total"`
	Registered30 int64 `json:"registered_30d"`
	Registered90 int64 `json:"registered_90d"`
}

func (c *CohortStats) merge(other *CohortStats) {
	c.Total += other.Total
	c.Registered30 += other.Registered30
	c.Registered90 += other.Registered90
}

// Partial is the aggregate accumulated from one chunk of derived records.
// Folding Partials with Merge is associative and commutative, which is what
// makes batch size a pure memory/performance knob.
type Partial struct {
	Total             int64 `json:"total"`
	Eligible          int64 `json:"eligible"`
	Registered        int64 `json:"registered"`
	AlreadyRegistered int64 `json:"already_registered"`
	Active30Days      int64 `json:"active_30_days"`
	WeeklyUsers       int64 `json:"weekly_users"`
	MonthlyUsers      int64 `json:"monthly_users"`
	RejectedRecords   int64 `json:"rejected_records"`

	OnboardCount   int64   `json:"onboard_count"`
	OnboardDaysSum float64 `json:"onboard_days_sum"`

	Regions map[string]*GroupStats `json:"regions"`
	RGMs    map[string]*GroupStats `json:"rgms"`

	// MonthlyTrend counts registrations by registration month ("2006-01").
	MonthlyTrend map[string]int64 `json:"monthly_trend"`

	// Cohorts is keyed by the account's open month ("2006-01").
	Cohorts map[string]*CohortStats `json:"cohorts"`

	OnboardingDist map[domain.OnboardingBracket]int64 `json:"onboarding_dist"`
	ActivityDist   map[domain.ActivityBracket]int64   `json:"activity_dist"`

	// DayOfYear holds per-calendar-year opening curves: year -> 1-based
	// day-of-year -> count.
	DayOfYear map[int]map[int]int64 `json:"day_of_year"`
}

// NewPartial creates an empty accumulator.
func NewPartial() *Partial {
	return &Partial{
		Regions:        make(map[string]*GroupStats),
		RGMs:           make(map[string]*GroupStats),
		MonthlyTrend:   make(map[string]int64),
		Cohorts:        make(map[string]*CohortStats),
		OnboardingDist: make(map[domain.OnboardingBracket]int64),
		ActivityDist:   make(map[domain.ActivityBracket]int64),
		DayOfYear:      make(map[int]map[int]int64),
	}
}

// Add folds one derived record into the accumulator. The record is not
// retained.
func (p *Partial) Add(d *domain.DerivedAccount) {
	p.Total++
	if d.Eligible {
		p.Eligible++
	}

	registered := d.IsRegistered()
	switch d.RegistrationStatus {
	case domain.StatusRegistered:
		p.Registered++
	case domain.StatusAlreadyRegistered:
		p.AlreadyRegistered++
	}

	active30 := d.DaysSinceLastActivity != nil && *d.DaysSinceLastActivity <= activityMonthly
	if active30 {
		p.Active30Days++
	}
	switch d.ActivityBracket {
	case domain.ActivityWeekly:
		p.WeeklyUsers++
	case domain.ActivityMonthly:
		p.MonthlyUsers++
	}

	if d.DaysToOnboard != nil {
		p.OnboardCount++
		p.OnboardDaysSum += float64(*d.DaysToOnboard)
	}

	p.addGroup(p.Regions, d.RegionDesc, d, registered, active30)
	p.addGroup(p.RGMs, d.RGM, d, registered, active30)

	if d.RegistrationDate != nil {
		p.MonthlyTrend[d.RegistrationDate.Format("2006-01")]++
	}

	cohortKey := d.CohortMonth()
	cohort := p.Cohorts[cohortKey]
	if cohort == nil {
		cohort = &CohortStats{}
		p.Cohorts[cohortKey] = cohort
	}
	cohort.Total++
	if d.DaysToOnboard != nil {
		if *d.DaysToOnboard <= 30 {
			cohort.Registered30++
		}
		if *d.DaysToOnboard <= 90 {
			cohort.Registered90++
		}
	}

	p.OnboardingDist[d.OnboardingBracket]++
	p.ActivityDist[d.ActivityBracket]++

	curve := p.DayOfYear[d.OpenYear]
	if curve == nil {
		curve = make(map[int]int64)
		p.DayOfYear[d.OpenYear] = curve
	}
	curve[d.OpenDayOfYear]++
}

func (p *Partial) addGroup(groups map[string]*GroupStats, key string, d *domain.DerivedAccount, registered, active30 bool) {
	if key == "" {
		key = "Unknown"
	}
	g := groups[key]
	if g == nil {
		g = &GroupStats{}
		groups[key] = g
	}
	g.Total++
	if registered {
		g.Registered++
	}
	if active30 {
		g.Active30Days++
	}
	if d.ActivityBracket == domain.ActivityWeekly {
		g.WeeklyUsers++
	}
	if d.DaysToOnboard != nil {
		g.OnboardCount++
		g.OnboardDaysSum += float64(*d.DaysToOnboard)
	}
}

// AddRejected tallies a record excluded by the derivation engine.
func (p *Partial) AddRejected() {
	p.RejectedRecords++
}

// Merge folds other into p: dictionary union with numeric addition on
// collisions. Associative and commutative over group keys.
func (p *Partial) Merge(other *Partial) {
	p.Total += other.Total
	p.Eligible += other.Eligible
	p.Registered += other.Registered
	p.AlreadyRegistered += other.AlreadyRegistered
	p.Active30Days += other.Active30Days
	p.WeeklyUsers += other.WeeklyUsers
	p.MonthlyUsers += other.MonthlyUsers
	p.RejectedRecords += other.RejectedRecords
	p.OnboardCount += other.OnboardCount
	p.OnboardDaysSum += other.OnboardDaysSum

	for key, g := range other.Regions {
		if existing := p.Regions[key]; existing != nil {
			existing.merge(g)
		} else {
			copied := *g
			p.Regions[key] = &copied
		}
	}
	for key, g := range other.RGMs {
		if existing := p.RGMs[key]; existing != nil {
			existing.merge(g)
		} else {
			copied := *g
			p.RGMs[key] = &copied
		}
	}
	for month, count := range other.MonthlyTrend {
		p.MonthlyTrend[month] += count
	}
	for key, c := range other.Cohorts {
		if existing := p.Cohorts[key]; existing != nil {
			existing.merge(c)
		} else {
			copied := *c
			p.Cohorts[key] = &copied
		}
	}
	for bracket, count := range other.OnboardingDist {
		p.OnboardingDist[bracket] += count
	}
	for bracket, count := range other.ActivityDist {
		p.ActivityDist[bracket] += count
	}
	for year, curve := range other.DayOfYear {
		existing := p.DayOfYear[year]
		if existing == nil {
			existing = make(map[int]int64, len(curve))
			p.DayOfYear[year] = existing
		}
		for doy, count := range curve {
			existing[doy] += count
		}
	}
}
