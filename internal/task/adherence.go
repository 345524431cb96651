package task

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/repository"
)

// AutoMarkMissed escalates every unanswered reminder more than the
// cutoff past its dose time: the paired adherence record is forced to
// missed with an explanatory note, the streak aggregate absorbs the
// miss, and the reminder is driven to failed.  Each reminder is handled
// in its own transaction, oldest dose first, so one failure cannot roll
// back the whole backlog.  Returns how many reminders were escalated.
func (s *Sweeper) AutoMarkMissed(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.reminders.ListOverdueUnresolved(ctx, EscalationCutoff)
	if err != nil {
		return 0, err
	}
	escalated := 0
	for i := range overdue {
		ok, err := s.escalate(ctx, &overdue[i], now)
		if err != nil {
			log.Printf("task: escalate reminder %d failed: %v", overdue[i].ID, err)
			continue
		}
		if ok {
			escalated++
		}
	}
	return escalated, nil
}

func (s *Sweeper) escalate(ctx context.Context, o *repository.OverdueReminder, now time.Time) (bool, error) {
	tx, err := s.adherence.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.adherence.GetOrCreateForReminderTx(ctx, tx, o.UserID, &o.Reminder)
	if err != nil {
		return false, err
	}
	// The record is locked FOR UPDATE; if a user response resolved it
	// between the listing and here, their answer stands and the reminder
	// keeps its state.  The overdue listing excludes resolved records,
	// so the reminder is not picked up again.
	if rec.Status != model.AdherencePending {
		return false, nil
	}
	resp := now
	rec.Status = model.AdherenceMissed
	rec.ResponseTime = &resp
	rec.Notes = missedNote
	if err := s.adherence.ResolveTx(ctx, tx, rec); err != nil {
		return false, err
	}
	st, err := s.streaks.GetOrCreateForUpdateTx(ctx, tx, o.UserID, o.MedicationID)
	if err != nil {
		return false, err
	}
	st.Update(model.AdherenceMissed)
	if err := s.streaks.SaveTx(ctx, tx, st); err != nil {
		return false, err
	}
	if err := s.reminders.MarkFailedTx(ctx, tx, o.ID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}
