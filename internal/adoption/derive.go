// Package adoption holds the analytics core: the per-record derivation
// engine, the mergeable partial aggregates, and the finalizer that turns a
// completed aggregate into the report tables.
package adoption

import (
	"time"

	apperrors "ntbcli/internal/errors"
	"ntbcli/pkg/contracts/domain"
)

// Activity ladder thresholds in days, ascending.
const (
	activityWeekly     = 7
	activityBiweekly   = 14
	activityMonthly    = 30
	activityQuarterly  = 90
	activitySemiAnnual = 180
	activityAnnual     = 365
)

// statusRule is one row of the ordered registration-status rule table.
// Rules are evaluated top to bottom; the first match wins.
type statusRule struct {
	matches func(rec *domain.AccountRecord) bool
	status  domain.RegistrationStatus
}

// statusRules is the classification precedence for registration status.
// Order is load-bearing: a registration predating the account opening must
// be recognized before the general registered case.
var statusRules = []statusRule{
	{
		matches: func(rec *domain.AccountRecord) bool {
			return rec.RegistrationDate == nil
		},
		status: domain.StatusNotRegistered,
	},
	{
		matches: func(rec *domain.AccountRecord) bool {
			return rec.RegistrationDate.Before(*rec.OpenDate)
		},
		status: domain.StatusAlreadyRegistered,
	},
	{
		matches: func(rec *domain.AccountRecord) bool {
			return true
		},
		status: domain.StatusRegistered,
	},
}

// Derive classifies one ledger record against the reference timestamp.
// It is a pure function of its inputs: no cross-record state, so batch
// boundaries and ordering never affect the result.
//
// A record without an open date cannot be classified and is a hard error
// for that record; it must be excluded from all aggregates.
func Derive(rec domain.AccountRecord, ref time.Time) (domain.DerivedAccount, error) {
	if rec.OpenDate == nil {
		return domain.DerivedAccount{}, apperrors.New(apperrors.CodeRecordRejected,
			"record has no open date")
	}

	d := domain.DerivedAccount{AccountRecord: rec}

	for _, rule := range statusRules {
		if rule.matches(&rec) {
			d.RegistrationStatus = rule.status
			break
		}
	}

	switch d.RegistrationStatus {
	case domain.StatusRegistered:
		days := floorDays(rec.RegistrationDate.Sub(*rec.OpenDate))
		d.DaysToOnboard = &days
		d.OnboardingBracket = onboardingBracket(days)
	case domain.StatusAlreadyRegistered:
		d.OnboardingBracket = domain.OnboardAlreadyRegistered
	default:
		d.OnboardingBracket = domain.OnboardNotRegistered
	}

	if rec.LastActivityDate != nil {
		days := floorDays(ref.Sub(*rec.LastActivityDate))
		if days < 0 {
			days = 0
		}
		d.DaysSinceLastActivity = &days
		d.ActivityBracket = activityBracket(days)
	} else if d.RegistrationStatus == domain.StatusNotRegistered {
		d.ActivityBracket = domain.ActivityNotRegistered
	} else {
		// Registered but no recorded activity: an explicit bracket, never
		// collapsed into Not Registered.
		d.ActivityBracket = domain.ActivityInactive
	}

	d.OpenYear = rec.OpenDate.Year()
	d.OpenMonth = int(rec.OpenDate.Month())
	d.OpenDayOfYear = rec.OpenDate.YearDay()

	return d, nil
}

// onboardingBracket buckets a non-negative onboarding latency in days.
func onboardingBracket(days int) domain.OnboardingBracket {
	switch {
	case days <= 5:
		return domain.OnboardWithin5Days
	case days <= 10:
		return domain.Onboard6To10Days
	case days <= 30:
		return domain.Onboard11To30Days
	case days <= 180:
		return domain.Onboard1To6Months
	default:
		return domain.OnboardOver6Months
	}
}

// activityBracket buckets days since last activity on the fixed ascending
// threshold ladder.
func activityBracket(days int) domain.ActivityBracket {
	switch {
	case days <= activityWeekly:
		return domain.ActivityWeekly
	case days <= activityBiweekly:
		return domain.ActivityBiweekly
	case days <= activityMonthly:
		return domain.ActivityMonthly
	case days <= activityQuarterly:
		return domain.ActivityQuarterly
	case days <= activitySemiAnnual:
		return domain.ActivitySemiAnnual
	case days <= activityAnnual:
		return domain.ActivityAnnual
	default:
		return domain.ActivityMoreThanYear
	}
}

// floorDays converts a duration to whole days, rounding toward negative
// infinity so partial days never inflate the count.
func floorDays(d time.Duration) int {
	days := d.Hours() / 24
	floored := int(days)
	if days < 0 && days != float64(floored) {
		floored--
	}
	return floored
}
