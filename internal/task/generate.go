package task

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/medication-adherence/internal/model"
)

// PlanOccurrences expands a schedule into the concrete UTC instants it
// fires at over the next horizonDays calendar days, starting today in
// the schedule's own timezone.  An occurrence whose wall-clock time has
// already passed is skipped, so the planner never emits instants in the
// past.  A schedule with an unparseable time of day plans nothing.
func PlanOccurrences(s *model.Schedule, now time.Time, horizonDays int) []time.Time {
	hour, min, ok := s.ClockTime()
	if !ok {
		return nil
	}
	loc := s.Location()
	local := now.In(loc)
	out := make([]time.Time, 0, horizonDays)
	for d := 0; d < horizonDays; d++ {
		day := local.AddDate(0, 0, d)
		if !s.ScheduledFor(day) {
			continue
		}
		occ := time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, loc)
		if !occ.After(now) {
			continue
		}
		out = append(out, occ.UTC())
	}
	return out
}

// DeactivateExpiredSchedules clears the active flag on schedules whose
// medication has passed its end date, returning how many rows changed.
func (s *Sweeper) DeactivateExpiredSchedules(ctx context.Context) (int64, error) {
	return s.schedules.DeactivateExpired(ctx)
}

// GenerateForSchedule plans occurrences for one schedule and inserts a
// pending reminder for each planned day that does not already have one.
// Returns the number of reminders created.
func (s *Sweeper) GenerateForSchedule(ctx context.Context, sch *model.Schedule, now time.Time, horizonDays int) (int, error) {
	created := 0
	for _, occ := range PlanOccurrences(sch, now, horizonDays) {
		exists, err := s.reminders.ExistsForScheduleDate(ctx, sch.ID, occ)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		rem := &model.Reminder{
			ScheduleID:   sch.ID,
			MedicationID: sch.MedicationID,
			ScheduledAt:  occ,
		}
		if err := s.reminders.Create(ctx, rem); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// GenerateAll tops up reminders for every effectively active schedule.
// Per-schedule failures are logged and skipped so one bad schedule does
// not starve the rest.
func (s *Sweeper) GenerateAll(ctx context.Context, now time.Time, horizonDays int) (int, error) {
	active, err := s.schedules.ListEffectivelyActive(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for i := range active {
		n, err := s.GenerateForSchedule(ctx, &active[i], now, horizonDays)
		created += n
		if err != nil {
			log.Printf("task: generate for schedule %d failed: %v", active[i].ID, err)
		}
	}
	return created, nil
}

// RegenerateForSchedule discards the schedule's future pending reminders
// and plans afresh.  Used after a schedule edit so the new time of day
// and weekday set take effect immediately.
func (s *Sweeper) RegenerateForSchedule(ctx context.Context, sch *model.Schedule, now time.Time) (int, error) {
	if _, err := s.reminders.DeleteFuturePending(ctx, sch.ID); err != nil {
		return 0, err
	}
	return s.GenerateForSchedule(ctx, sch, now, RegenHorizonDays)
}

// RegenerateAll is RegenerateForSchedule over every effectively active
// schedule.
func (s *Sweeper) RegenerateAll(ctx context.Context, now time.Time) (int, error) {
	active, err := s.schedules.ListEffectivelyActive(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for i := range active {
		n, err := s.RegenerateForSchedule(ctx, &active[i], now)
		created += n
		if err != nil {
			log.Printf("task: regenerate for schedule %d failed: %v", active[i].ID, err)
		}
	}
	return created, nil
}
