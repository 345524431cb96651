package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleWeekdays(t *testing.T) {
	s := &Schedule{DaysOfWeek: "Mon, Wed ,Fri"}
	days := s.Weekdays()
	assert.Len(t, days, 3)
	assert.True(t, days[time.Monday])
	assert.True(t, days[time.Wednesday])
	assert.True(t, days[time.Friday])
	assert.False(t, days[time.Sunday])
}

func TestScheduleWeekdaysIgnoresUnknownTokens(t *testing.T) {
	s := &Schedule{DaysOfWeek: "Mon,Funday,,Tue"}
	days := s.Weekdays()
	assert.Len(t, days, 2)
	assert.True(t, days[time.Monday])
	assert.True(t, days[time.Tuesday])
}

func TestScheduleScheduledFor(t *testing.T) {
	s := &Schedule{DaysOfWeek: "Sat,Sun"}
	sat := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC) // a Saturday
	mon := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	assert.True(t, s.ScheduledFor(sat))
	assert.False(t, s.ScheduledFor(mon))
}

func TestScheduleClockTime(t *testing.T) {
	cases := []struct {
		in        string
		hour, min int
		ok        bool
	}{
		{"08:30", 8, 30, true},
		{"23:59", 23, 59, true},
		{"08:30:00", 8, 30, true}, // MySQL TIME scan format
		{"8:30", 0, 0, false},
		{"25:00", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, c := range cases {
		s := &Schedule{TimeOfDay: c.in}
		h, m, ok := s.ClockTime()
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		if c.ok {
			assert.Equal(t, c.hour, h, "input %q", c.in)
			assert.Equal(t, c.min, m, "input %q", c.in)
		}
	}
}

func TestScheduleLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, (&Schedule{}).Location())
	assert.Equal(t, time.UTC, (&Schedule{Timezone: "Not/AZone"}).Location())

	loc := (&Schedule{Timezone: "America/New_York"}).Location()
	require.NotNil(t, loc)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestScheduleValidate(t *testing.T) {
	s := &Schedule{MedicationID: 7, TimeOfDay: "09:00", DaysOfWeek: AllDays, Timezone: "UTC"}
	assert.Empty(t, s.Validate())

	bad := &Schedule{TimeOfDay: "nine", DaysOfWeek: "Blursday", Timezone: "Mars/Olympus"}
	errs := bad.Validate()
	assert.Contains(t, errs, "medication")
	assert.Contains(t, errs, "time_of_day")
	assert.Contains(t, errs, "days_of_week")
	assert.Contains(t, errs, "timezone")
}
