package adoption

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ntbcli/internal/errors"
	"ntbcli/pkg/contracts/domain"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestDerive_RegistrationStatus(t *testing.T) {
	ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		open         *time.Time
		registration *time.Time
		wantStatus   domain.RegistrationStatus
		wantBracket  domain.OnboardingBracket
		wantDays     *int
	}{
		{
			name:        "no registration date",
			open:        date(2024, 1, 1),
			wantStatus:  domain.StatusNotRegistered,
			wantBracket: domain.OnboardNotRegistered,
		},
		{
			name:         "registration predates opening",
			open:         date(2024, 1, 1),
			registration: date(2023, 12, 20),
			wantStatus:   domain.StatusAlreadyRegistered,
			wantBracket:  domain.OnboardAlreadyRegistered,
		},
		{
			name:         "registered three days after opening",
			open:         date(2024, 1, 1),
			registration: date(2024, 1, 4),
			wantStatus:   domain.StatusRegistered,
			wantBracket:  domain.OnboardWithin5Days,
			wantDays:     intPtr(3),
		},
		{
			name:         "registered same day",
			open:         date(2024, 1, 1),
			registration: date(2024, 1, 1),
			wantStatus:   domain.StatusRegistered,
			wantBracket:  domain.OnboardWithin5Days,
			wantDays:     intPtr(0),
		},
		{
			name:         "registered after seven days",
			open:         date(2024, 1, 1),
			registration: date(2024, 1, 8),
			wantStatus:   domain.StatusRegistered,
			wantBracket:  domain.Onboard6To10Days,
			wantDays:     intPtr(7),
		},
		{
			name:         "registered after three weeks",
			open:         date(2024, 1, 1),
			registration: date(2024, 1, 22),
			wantStatus:   domain.StatusRegistered,
			wantBracket:  domain.Onboard11To30Days,
			wantDays:     intPtr(21),
		},
		{
			name:         "registered after four months",
			open:         date(2024, 1, 1),
			registration: date(2024, 5, 1),
			wantStatus:   domain.StatusRegistered,
			wantBracket:  domain.Onboard1To6Months,
			wantDays:     intPtr(121),
		},
		{
			name:         "registered after a year",
			open:         date(2023, 1, 1),
			registration: date(2024, 1, 1),
			wantStatus:   domain.StatusRegistered,
			wantBracket:  domain.OnboardOver6Months,
			wantDays:     intPtr(365),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := domain.AccountRecord{
				CustomerNo:       "C001",
				OpenDate:         tt.open,
				RegistrationDate: tt.registration,
			}
			got, err := Derive(rec, ref)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got.RegistrationStatus)
			assert.Equal(t, tt.wantBracket, got.OnboardingBracket)
			if tt.wantDays == nil {
				assert.Nil(t, got.DaysToOnboard, "days to onboard must be undefined")
			} else {
				require.NotNil(t, got.DaysToOnboard)
				assert.Equal(t, *tt.wantDays, *got.DaysToOnboard)
			}
		})
	}
}

func TestDerive_ActivityBracket(t *testing.T) {
	ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		lastActivity *time.Time
		registration *time.Time
		want         domain.ActivityBracket
	}{
		{"active yesterday", date(2024, 5, 31), date(2024, 1, 2), domain.ActivityWeekly},
		{"active ten days ago", date(2024, 5, 22), date(2024, 1, 2), domain.ActivityBiweekly},
		{"active three weeks ago", date(2024, 5, 11), date(2024, 1, 2), domain.ActivityMonthly},
		{"active two months ago", date(2024, 4, 1), date(2024, 1, 2), domain.ActivityQuarterly},
		{"active five months ago", date(2024, 1, 2), date(2024, 1, 2), domain.ActivitySemiAnnual},
		{"active eleven months ago", date(2023, 7, 1), date(2023, 6, 1), domain.ActivityAnnual},
		{"active two years ago", date(2022, 6, 1), date(2022, 5, 1), domain.ActivityMoreThanYear},
		{"registered with no recorded activity", nil, date(2024, 1, 2), domain.ActivityInactive},
		{"never registered", nil, nil, domain.ActivityNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := domain.AccountRecord{
				CustomerNo:       "C001",
				OpenDate:         date(2022, 1, 1),
				RegistrationDate: tt.registration,
				LastActivityDate: tt.lastActivity,
			}
			got, err := Derive(rec, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ActivityBracket)
		})
	}
}

func TestDerive_MissingOpenDateRejected(t *testing.T) {
	rec := domain.AccountRecord{
		CustomerNo:       "C001",
		RegistrationDate: date(2024, 1, 4),
	}
	_, err := Derive(rec, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRecordRejected, apperrors.CodeOf(err))
}

func TestDerive_CalendarFields(t *testing.T) {
	rec := domain.AccountRecord{CustomerNo: "C001", OpenDate: date(2024, 5, 20)}
	got, err := Derive(rec, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 2024, got.OpenYear)
	assert.Equal(t, 5, got.OpenMonth)
	assert.Equal(t, 141, got.OpenDayOfYear) // 2024 is a leap year
	assert.Equal(t, "2024-05", got.CohortMonth())
}

func TestDerive_PureAndExhaustive(t *testing.T) {
	ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	records := []domain.AccountRecord{
		{CustomerNo: "A", OpenDate: date(2024, 1, 1)},
		{CustomerNo: "B", OpenDate: date(2024, 1, 1), RegistrationDate: date(2023, 1, 1)},
		{CustomerNo: "C", OpenDate: date(2024, 1, 1), RegistrationDate: date(2024, 2, 1)},
		{CustomerNo: "D", OpenDate: date(2024, 1, 1), RegistrationDate: date(2024, 2, 1), LastActivityDate: date(2024, 5, 30)},
	}

	for _, rec := range records {
		first, err := Derive(rec, ref)
		require.NoError(t, err)
		second, err := Derive(rec, ref)
		require.NoError(t, err)

		// Identical inputs yield identical outputs.
		assert.Equal(t, first, second)

		// Exactly one classification per dimension, never empty.
		assert.NotEmpty(t, first.RegistrationStatus)
		assert.NotEmpty(t, first.OnboardingBracket)
		assert.NotEmpty(t, first.ActivityBracket)

		// The sentinel brackets and registration status stay in lockstep.
		assert.Equal(t,
			first.RegistrationStatus == domain.StatusAlreadyRegistered,
			first.OnboardingBracket == domain.OnboardAlreadyRegistered)
		assert.Equal(t,
			first.RegistrationStatus == domain.StatusRegistered,
			first.DaysToOnboard != nil)
	}
}

func TestFloorDays(t *testing.T) {
	assert.Equal(t, 0, floorDays(6*time.Hour))
	assert.Equal(t, 1, floorDays(36*time.Hour))
	assert.Equal(t, 3, floorDays(72*time.Hour))
	assert.Equal(t, -1, floorDays(-6*time.Hour))
}

func intPtr(v int) *int { return &v }
