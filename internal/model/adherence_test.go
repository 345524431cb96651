package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAt(scheduled time.Time, actualOffset time.Duration) *AdherenceRecord {
	actual := scheduled.Add(actualOffset)
	return &AdherenceRecord{ScheduledTime: scheduled, ActualTime: &actual}
}

func TestComputeLateness(t *testing.T) {
	sched := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	r := recordAt(sched, 45*time.Minute)
	r.ComputeLateness()
	require.NotNil(t, r.MinutesLate)
	assert.Equal(t, 45, *r.MinutesLate)
	assert.True(t, r.IsLate)

	// Exactly at the threshold is still on time.
	r = recordAt(sched, 30*time.Minute)
	r.ComputeLateness()
	require.NotNil(t, r.MinutesLate)
	assert.Equal(t, 30, *r.MinutesLate)
	assert.False(t, r.IsLate)

	// Early doses keep their negative lateness.
	r = recordAt(sched, -20*time.Minute)
	r.ComputeLateness()
	require.NotNil(t, r.MinutesLate)
	assert.Equal(t, -20, *r.MinutesLate)
	assert.False(t, r.IsLate)
}

func TestComputeLatenessWithoutActualTime(t *testing.T) {
	r := &AdherenceRecord{ScheduledTime: time.Now()}
	r.ComputeLateness()
	assert.Nil(t, r.MinutesLate)
	assert.False(t, r.IsLate)
}

func TestStreakUpdateSequence(t *testing.T) {
	s := &AdherenceStreak{}

	s.Update(AdherenceTaken)
	s.Update(AdherenceTaken)
	s.Update(AdherenceTaken)
	assert.Equal(t, 3, s.CurrentTakenStreak)
	assert.Equal(t, 3, s.LongestTakenStreak)
	assert.Equal(t, 0, s.CurrentMissedStreak)

	s.Update(AdherenceMissed)
	assert.Equal(t, 0, s.CurrentTakenStreak)
	assert.Equal(t, 1, s.CurrentMissedStreak)
	assert.Equal(t, 3, s.LongestTakenStreak)

	// Skipped counts against the streak like a miss.
	s.Update(AdherenceSkipped)
	assert.Equal(t, 2, s.CurrentMissedStreak)
	assert.Equal(t, 2, s.LongestMissedStreak)

	s.Update(AdherenceTaken)
	assert.Equal(t, 1, s.CurrentTakenStreak)
	assert.Equal(t, 0, s.CurrentMissedStreak)
	assert.Equal(t, 3, s.LongestTakenStreak)

	assert.Equal(t, 4, s.TotalTaken)
	assert.Equal(t, 2, s.TotalMissed)
	assert.Equal(t, 6, s.TotalScheduled)
}

func TestStreakUpdateIgnoresPending(t *testing.T) {
	s := &AdherenceStreak{}
	s.Update(AdherencePending)
	// A pending outcome still counts as a scheduled dose but moves no streak.
	assert.Equal(t, 0, s.CurrentTakenStreak)
	assert.Equal(t, 0, s.CurrentMissedStreak)
	assert.Equal(t, 1, s.TotalScheduled)
}

func TestStreakInvariants(t *testing.T) {
	s := &AdherenceStreak{}
	for _, st := range []string{
		AdherenceTaken, AdherenceTaken, AdherenceMissed,
		AdherenceTaken, AdherenceSkipped, AdherenceMissed, AdherenceTaken,
	} {
		s.Update(st)
		// At most one of the current streaks may be nonzero.
		assert.False(t, s.CurrentTakenStreak > 0 && s.CurrentMissedStreak > 0)
		assert.GreaterOrEqual(t, s.LongestTakenStreak, s.CurrentTakenStreak)
		assert.GreaterOrEqual(t, s.LongestMissedStreak, s.CurrentMissedStreak)
		assert.Equal(t, s.TotalScheduled, s.TotalTaken+s.TotalMissed)
	}
}

func TestAdherencePercentage(t *testing.T) {
	assert.Equal(t, 0.0, (&AdherenceStreak{}).AdherencePercentage())

	s := &AdherenceStreak{TotalTaken: 2, TotalScheduled: 3}
	assert.Equal(t, 66.67, s.AdherencePercentage())

	s = &AdherenceStreak{TotalTaken: 5, TotalScheduled: 5}
	assert.Equal(t, 100.0, s.AdherencePercentage())
}

func TestStatusValidators(t *testing.T) {
	assert.True(t, ValidAdherenceStatus(AdherencePending))
	assert.True(t, ValidAdherenceStatus(AdherenceTaken))
	assert.False(t, ValidAdherenceStatus("late"))

	assert.True(t, ValidResponseStatus(AdherenceSkipped))
	assert.False(t, ValidResponseStatus(AdherencePending))
	assert.False(t, ValidResponseStatus(""))
}
