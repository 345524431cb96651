package task

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/medication-adherence/internal/queue"
)

// ProcessDueReminders hands every due pending reminder to the delivery
// channel.  Each reminder is first claimed with a guarded pending→sent
// update so concurrent sweeps cannot deliver it twice; when the event
// publish then fails the reminder is driven to failed so the retry
// sweep can pick it up.  Per-item failures are logged and skipped.
func (s *Sweeper) ProcessDueReminders(ctx context.Context, now time.Time) (sent, failed int, err error) {
	due, err := s.reminders.ListDueDetailed(ctx, DueWindow)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range due {
		ok, err := s.reminders.MarkSent(ctx, d.ID, now)
		if err != nil {
			log.Printf("task: mark reminder %d sent failed: %v", d.ID, err)
			continue
		}
		if !ok {
			// Another sweep got there first.
			continue
		}
		ev := queue.ReminderDueEvent{
			ReminderID:     d.ID,
			UserID:         d.UserID,
			ScheduleID:     d.ScheduleID,
			MedicationID:   d.MedicationID,
			MedicationName: d.MedicationName,
			DosageAmount:   d.DosageAmount,
			DosageUnit:     d.DosageUnit,
			ScheduledAt:    d.ScheduledAt.UTC().Format(time.RFC3339),
			SentAt:         now.UTC().Format(time.RFC3339),
		}
		if err := s.publish(ctx, ev); err != nil {
			log.Printf("task: publish reminder %d failed: %v", d.ID, err)
			if err := s.reminders.MarkFailed(ctx, d.ID); err != nil {
				log.Printf("task: mark reminder %d failed errored: %v", d.ID, err)
			}
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}

// RetryFailed flips recently failed reminders back to pending so the
// due sweep can attempt delivery again.  Failures older than the retry
// window stay failed.
func (s *Sweeper) RetryFailed(ctx context.Context) (int64, error) {
	return s.reminders.ResetRecentFailed(ctx, RetryWindow)
}

// CleanupOldReminders purges sent and failed reminders past the
// retention age.
func (s *Sweeper) CleanupOldReminders(ctx context.Context) (int64, error) {
	return s.reminders.DeleteOldResolved(ctx, RetentionAge)
}
