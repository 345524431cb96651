package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/medication-adherence/internal/model"
)

func TestPlanOccurrencesDaily(t *testing.T) {
	s := &model.Schedule{TimeOfDay: "08:00", DaysOfWeek: model.AllDays, Timezone: "UTC"}
	// Monday 2025-06-02 06:00 UTC, before the daily dose.
	now := time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)

	occs := PlanOccurrences(s, now, 7)
	require.Len(t, occs, 7)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), occs[0])
	assert.Equal(t, time.Date(2025, 6, 8, 8, 0, 0, 0, time.UTC), occs[6])
}

func TestPlanOccurrencesSkipsPassedTime(t *testing.T) {
	s := &model.Schedule{TimeOfDay: "08:00", DaysOfWeek: model.AllDays, Timezone: "UTC"}
	// 09:00, today's dose has already passed.
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	occs := PlanOccurrences(s, now, 7)
	require.Len(t, occs, 6)
	assert.Equal(t, time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC), occs[0])
}

func TestPlanOccurrencesWeekdaySubset(t *testing.T) {
	s := &model.Schedule{TimeOfDay: "20:00", DaysOfWeek: "Mon,Thu", Timezone: "UTC"}
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // Monday

	occs := PlanOccurrences(s, now, 14)
	require.Len(t, occs, 4)
	for _, occ := range occs {
		wd := occ.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Thursday, "unexpected weekday %s", wd)
	}
}

func TestPlanOccurrencesTimezone(t *testing.T) {
	s := &model.Schedule{TimeOfDay: "08:00", DaysOfWeek: model.AllDays, Timezone: "America/New_York"}
	// 11:00 UTC is 07:00 in New York during DST, so today's dose is still ahead.
	now := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

	occs := PlanOccurrences(s, now, 1)
	require.Len(t, occs, 1)
	// 08:00 EDT is 12:00 UTC.
	assert.Equal(t, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), occs[0])
	assert.Equal(t, time.UTC, occs[0].Location())
}

func TestPlanOccurrencesBadClock(t *testing.T) {
	s := &model.Schedule{TimeOfDay: "morning", DaysOfWeek: model.AllDays}
	assert.Nil(t, PlanOccurrences(s, time.Now(), 7))
}
