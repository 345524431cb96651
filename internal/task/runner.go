package task

import (
	"context"
	"log"
	"time"
)

// RunCycle executes one full sweep pass in dependency order: expiry
// before generation so dead schedules plan nothing, generation before
// delivery, escalation before retry so resolved reminders are not
// resurrected.  Individual sweep failures are logged; the cycle always
// runs to the end.
func (s *Sweeper) RunCycle(ctx context.Context) {
	now := time.Now().UTC()

	if n, err := s.DeactivateExpiredSchedules(ctx); err != nil {
		log.Printf("task: deactivate expired schedules failed: %v", err)
	} else if n > 0 {
		log.Printf("task: deactivated %d expired schedules", n)
	}

	if n, err := s.GenerateAll(ctx, now, RegenHorizonDays); err != nil {
		log.Printf("task: reminder generation failed: %v", err)
	} else if n > 0 {
		log.Printf("task: generated %d reminders", n)
	}

	if sent, failed, err := s.ProcessDueReminders(ctx, now); err != nil {
		log.Printf("task: due sweep failed: %v", err)
	} else if sent > 0 || failed > 0 {
		log.Printf("task: due sweep sent=%d failed=%d", sent, failed)
	}

	if n, err := s.AutoMarkMissed(ctx, now); err != nil {
		log.Printf("task: escalation sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("task: escalated %d unanswered reminders", n)
	}

	if n, err := s.RetryFailed(ctx); err != nil {
		log.Printf("task: retry sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("task: reset %d failed reminders for retry", n)
	}

	if n, err := s.CleanupOldReminders(ctx); err != nil {
		log.Printf("task: cleanup sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("task: purged %d old reminders", n)
	}
}

// Start runs RunCycle every interval until the context is cancelled.
// One cycle runs immediately on start so a freshly booted server does
// not wait a full interval before catching up.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	s.RunCycle(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}
