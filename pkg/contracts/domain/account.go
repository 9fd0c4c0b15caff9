package domain

import (
	"time"
)

// AccountRecord represents one row of the customer-account ledger.
// Nullable source columns are pointers; a nil pointer means the source
// field was empty or failed to parse.
type AccountRecord struct {
	CustomerNo       string     `json:"customer_no" csv:"CUSTOMER_NO"`
	AccountNo        string     `json:"account_no" csv:"CUST_AC_NO"`
	RegionDesc       string     `json:"region_desc" csv:"REGION_DESC"`
	BranchName       string     `json:"branch_name" csv:"BRANCH_NAME"`
	RGM              string     `json:"rgm" csv:"RGM"`
	Segment          string     `json:"segment" csv:"SEGMENT"`
	OpenDate         *time.Time `json:"open_date" csv:"AC_OPEN_DATE"`
	RegistrationDate *time.Time `json:"registration_date" csv:"MOBILE_APP_REGISTRATION_DATE"`
	LastActivityDate *time.Time `json:"last_activity_date" csv:"LAST_LOGIN_DATE"`
	Eligible         bool       `json:"eligible" csv:"INET_ELIGIBLE"`
}

// RegistrationStatus classifies whether and how an account holder
// enrolled in the mobile app.
type RegistrationStatus string

const (
	// StatusNotRegistered means no registration event exists for the account.
	StatusNotRegistered RegistrationStatus = "Not Registered"
	// StatusAlreadyRegistered means the registration event predates the
	// account opening (pre-existing app user); onboarding latency is
	// meaningless for these accounts.
	StatusAlreadyRegistered RegistrationStatus = "Already Registered"
	// StatusRegistered means the holder registered on or after account opening.
	StatusRegistered RegistrationStatus = "Registered"
)

// OnboardingBracket buckets the days between account opening and app
// registration. The sentinel brackets keep non-registered and
// already-registered accounts out of the numeric buckets.
type OnboardingBracket string

const (
	OnboardWithin5Days       OnboardingBracket = "5 days or less"
	Onboard6To10Days         OnboardingBracket = "6-10 days"
	Onboard11To30Days        OnboardingBracket = "11-30 days"
	Onboard1To6Months        OnboardingBracket = "1-6 months"
	OnboardOver6Months       OnboardingBracket = "More than 6 months"
	OnboardNotRegistered     OnboardingBracket = "Not Registered"
	OnboardAlreadyRegistered OnboardingBracket = "Already Registered"
)

// ActivityBracket buckets days since the last recorded app activity.
type ActivityBracket string

const (
	ActivityWeekly       ActivityBracket = "Weekly"
	ActivityBiweekly     ActivityBracket = "Biweekly"
	ActivityMonthly      ActivityBracket = "Monthly"
	ActivityQuarterly    ActivityBracket = "Quarterly"
	ActivitySemiAnnual   ActivityBracket = "Semi-Annual"
	ActivityAnnual       ActivityBracket = "Annual"
	ActivityMoreThanYear ActivityBracket = "More than a Year"
	// ActivityInactive marks registered accounts with no recorded activity,
	// kept distinct from ActivityNotRegistered.
	ActivityInactive      ActivityBracket = "No Recorded Activity"
	ActivityNotRegistered ActivityBracket = "Not Registered"
)

// DerivedAccount is an AccountRecord plus the derived classification and
// calendar fields. It is produced once per record and is immutable.
type DerivedAccount struct {
	AccountRecord

	RegistrationStatus RegistrationStatus `json:"registration_status"`
	// DaysToOnboard is defined iff RegistrationStatus == StatusRegistered.
	DaysToOnboard     *int              `json:"days_to_onboard,omitempty"`
	OnboardingBracket OnboardingBracket `json:"onboarding_bracket"`
	// DaysSinceLastActivity is defined iff LastActivityDate is non-nil.
	DaysSinceLastActivity *int            `json:"days_since_last_activity,omitempty"`
	ActivityBracket       ActivityBracket `json:"activity_bracket"`

	// Calendar fields derived from OpenDate.
	OpenYear      int `json:"open_year"`
	OpenMonth     int `json:"open_month"`
	OpenDayOfYear int `json:"open_day_of_year"`
}

// IsRegistered reports whether the account has any registration event,
// regardless of whether it predates the account opening.
func (d *DerivedAccount) IsRegistered() bool {
	return d.RegistrationStatus == StatusRegistered || d.RegistrationStatus == StatusAlreadyRegistered
}

// CohortMonth returns the account's cohort key, the calendar month of the
// account opening in "2006-01" form.
func (d *DerivedAccount) CohortMonth() string {
	if d.OpenDate == nil {
		return ""
	}
	return d.OpenDate.Format("2006-01")
}
