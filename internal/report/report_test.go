package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/medication-adherence/internal/model"
)

func rec(id, medID uint64, status string, scheduled time.Time) model.AdherenceRecord {
	return model.AdherenceRecord{
		ID:            id,
		MedicationID:  medID,
		ReminderID:    id,
		Status:        status,
		ScheduledTime: scheduled,
	}
}

func TestBuildOverallStatistics(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -4)
	day := func(d int, hour int) time.Time {
		return time.Date(2025, 6, 6+d, hour, 0, 0, 0, time.UTC)
	}

	records := []model.AdherenceRecord{
		rec(1, 1, model.AdherenceTaken, day(0, 8)),
		rec(2, 1, model.AdherenceTaken, day(1, 8)),
		rec(3, 1, model.AdherenceMissed, day(2, 8)),
		rec(4, 2, model.AdherenceSkipped, day(2, 20)),
		rec(5, 2, model.AdherencePending, day(3, 8)),  // overdue by more than 2h
		rec(6, 2, model.AdherencePending, day(4, 11)), // due an hour ago, not overdue
	}
	names := map[uint64]string{1: "Aspirin", 2: "Metformin"}

	r := Build(records, names, nil, start, now, now, 5)

	o := r.OverallStatistics
	assert.Equal(t, 6, o.TotalScheduledDoses)
	assert.Equal(t, 2, o.DosesTaken)
	assert.Equal(t, 1, o.DosesMissed)
	assert.Equal(t, 1, o.DosesSkipped)
	assert.Equal(t, 2, o.PendingResponses)
	assert.Equal(t, 1, o.OverdueResponses)
	// 2 taken of 4 resolved, 4 resolved of 6 total.
	assert.Equal(t, 50.0, o.OverallAdherenceRate)
	assert.Equal(t, 66.67, o.CompletionRate)

	assert.Equal(t, "2025-06-06", r.ReportPeriod.StartDate)
	assert.Equal(t, "2025-06-10", r.ReportPeriod.EndDate)
	assert.Equal(t, 5, r.ReportPeriod.DaysCovered)
}

func TestBuildDailyCoversEmptyDays(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -4)
	records := []model.AdherenceRecord{
		rec(1, 1, model.AdherenceTaken, time.Date(2025, 6, 6, 8, 0, 0, 0, time.UTC)),
		rec(2, 1, model.AdherenceMissed, time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)),
	}

	r := Build(records, nil, nil, start, now, now, 5)

	require.Len(t, r.DailyAdherence, 5)
	assert.Equal(t, "2025-06-06", r.DailyAdherence[0].Date)
	assert.Equal(t, 1, r.DailyAdherence[0].Taken)
	assert.Equal(t, 100.0, r.DailyAdherence[0].AdherenceRate)

	// Days with no records still appear, zeroed.
	for _, d := range r.DailyAdherence[1:3] {
		assert.Equal(t, 0, d.Total)
		assert.Equal(t, 0.0, d.AdherenceRate)
	}

	assert.Equal(t, 1, r.DailyAdherence[3].Missed)
	assert.Equal(t, 0.0, r.DailyAdherence[3].AdherenceRate)
}

func TestBuildMedicationBreakdown(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	records := []model.AdherenceRecord{
		rec(1, 2, model.AdherenceTaken, now.Add(-48*time.Hour)),
		rec(2, 1, model.AdherenceMissed, now.Add(-24*time.Hour)),
		rec(3, 2, model.AdherencePending, now.Add(-1*time.Hour)),
	}
	names := map[uint64]string{1: "Aspirin", 2: "Metformin"}
	streaks := map[uint64]model.AdherenceStreak{
		2: {CurrentTakenStreak: 4, LongestTakenStreak: 9},
	}

	r := Build(records, names, streaks, now.AddDate(0, 0, -6), now, now, 7)

	require.Len(t, r.MedicationBreakdown, 2)
	// First-encounter order, not id order.
	met := r.MedicationBreakdown[0]
	assert.Equal(t, "Metformin", met.MedicationName)
	assert.Equal(t, 2, met.TotalDoses)
	assert.Equal(t, 1, met.Pending)
	// Pending doses are excluded from the denominator.
	assert.Equal(t, 100.0, met.AdherenceRate)
	assert.Equal(t, 4, met.CurrentTakenStreak)
	assert.Equal(t, 9, met.LongestTakenStreak)

	asp := r.MedicationBreakdown[1]
	assert.Equal(t, "Aspirin", asp.MedicationName)
	assert.Equal(t, 0.0, asp.AdherenceRate)
	// No streak row yet, snapshot fields stay zero.
	assert.Equal(t, 0, asp.CurrentTakenStreak)
}

func TestBuildHourlyExcludesPending(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	records := []model.AdherenceRecord{
		rec(1, 1, model.AdherenceTaken, time.Date(2025, 6, 8, 8, 0, 0, 0, time.UTC)),
		rec(2, 1, model.AdherenceSkipped, time.Date(2025, 6, 9, 8, 30, 0, 0, time.UTC)),
		rec(3, 1, model.AdherencePending, time.Date(2025, 6, 9, 8, 45, 0, 0, time.UTC)),
		rec(4, 1, model.AdherenceTaken, time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC)),
	}

	r := Build(records, nil, nil, now.AddDate(0, 0, -6), now, now, 7)

	require.Len(t, r.TimeOfDayAnalysis, 24)
	h8 := r.TimeOfDayAnalysis[8]
	assert.Equal(t, 2, h8.Total)
	assert.Equal(t, 1, h8.Taken)
	assert.Equal(t, 1, h8.Missed) // skipped counts as missed here
	assert.Equal(t, 50.0, h8.AdherenceRate)

	h20 := r.TimeOfDayAnalysis[20]
	assert.Equal(t, 100.0, h20.AdherenceRate)

	require.NotNil(t, r.Insights.BestTimeOfDay)
	assert.Equal(t, 20, *r.Insights.BestTimeOfDay)
}

func TestBuildWeeklyTrends(t *testing.T) {
	now := time.Date(2025, 6, 28, 12, 0, 0, 0, time.UTC)
	records := []model.AdherenceRecord{
		// Most recent week: 2/2 taken.
		rec(1, 1, model.AdherenceTaken, now.Add(-2*24*time.Hour)),
		rec(2, 1, model.AdherenceTaken, now.Add(-5*24*time.Hour)),
		// Week before: 1/2 taken.
		rec(3, 1, model.AdherenceTaken, now.Add(-9*24*time.Hour)),
		rec(4, 1, model.AdherenceMissed, now.Add(-12*24*time.Hour)),
	}

	r := Build(records, nil, nil, now.AddDate(0, 0, -27), now, now, 28)

	require.Len(t, r.WeeklyTrends, 4)
	assert.Equal(t, 1, r.WeeklyTrends[0].WeekNumber)
	assert.Equal(t, 2, r.WeeklyTrends[0].TotalDoses)
	assert.Equal(t, 100.0, r.WeeklyTrends[0].AdherenceRate)
	assert.Equal(t, 50.0, r.WeeklyTrends[1].AdherenceRate)
	assert.Equal(t, 0, r.WeeklyTrends[3].TotalDoses)

	assert.Equal(t, "improving", r.Insights.ImprovementTrend)
}

func TestBuildTrendStableWithoutTwoWeeksOfData(t *testing.T) {
	now := time.Date(2025, 6, 28, 12, 0, 0, 0, time.UTC)
	records := []model.AdherenceRecord{
		rec(1, 1, model.AdherenceTaken, now.Add(-2*24*time.Hour)),
	}
	r := Build(records, nil, nil, now.AddDate(0, 0, -27), now, now, 28)
	assert.Equal(t, "stable", r.Insights.ImprovementTrend)
}

func TestBuildAttentionLists(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	records := []model.AdherenceRecord{
		rec(1, 1, model.AdherenceMissed, now.Add(-3*24*time.Hour)),
		rec(2, 1, model.AdherenceSkipped, now.Add(-1*24*time.Hour)),
		// Too old for the recent-missed list.
		rec(3, 1, model.AdherenceMissed, now.Add(-9*24*time.Hour)),
		rec(4, 1, model.AdherencePending, now.Add(-6*time.Hour)),
		rec(5, 1, model.AdherencePending, now.Add(-30*time.Hour)),
		// Pending but not yet due.
		rec(6, 1, model.AdherencePending, now.Add(2*time.Hour)),
	}
	names := map[uint64]string{1: "Aspirin"}

	r := Build(records, names, nil, now.AddDate(0, 0, -13), now.Add(3*time.Hour), now, 14)

	require.Len(t, r.RecentMissedDoses, 2)
	// Newest first.
	assert.Equal(t, uint64(2), r.RecentMissedDoses[0].ID)
	assert.Equal(t, uint64(1), r.RecentMissedDoses[1].ID)
	assert.Equal(t, "Aspirin", r.RecentMissedDoses[0].MedicationName)

	require.Len(t, r.PendingResponses, 2)
	// Oldest first.
	assert.Equal(t, uint64(5), r.PendingResponses[0].ID)
	assert.Equal(t, uint64(4), r.PendingResponses[1].ID)
}

func TestBuildInsightsBestAndWorstMedication(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	records := []model.AdherenceRecord{
		rec(1, 1, model.AdherenceTaken, now.Add(-24*time.Hour)),
		rec(2, 1, model.AdherenceTaken, now.Add(-48*time.Hour)),
		rec(3, 2, model.AdherenceTaken, now.Add(-24*time.Hour)),
		rec(4, 2, model.AdherenceMissed, now.Add(-48*time.Hour)),
	}
	names := map[uint64]string{1: "Aspirin", 2: "Metformin"}

	r := Build(records, names, nil, now.AddDate(0, 0, -6), now, now, 7)

	require.NotNil(t, r.Insights.BestAdherenceMedication)
	require.NotNil(t, r.Insights.WorstAdherenceMedication)
	assert.Equal(t, "Aspirin", *r.Insights.BestAdherenceMedication)
	assert.Equal(t, "Metformin", *r.Insights.WorstAdherenceMedication)
}

func TestBuildEmptyWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	r := Build(nil, nil, nil, now.AddDate(0, 0, -6), now, now, 7)

	assert.Equal(t, 0, r.OverallStatistics.TotalScheduledDoses)
	assert.Equal(t, 0.0, r.OverallStatistics.OverallAdherenceRate)
	assert.Len(t, r.DailyAdherence, 7)
	assert.Empty(t, r.MedicationBreakdown)
	assert.Nil(t, r.Insights.BestAdherenceMedication)
	assert.Nil(t, r.Insights.BestTimeOfDay)
	assert.Equal(t, "stable", r.Insights.ImprovementTrend)
}
