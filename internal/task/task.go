// Package task implements the background sweeps that keep the reminder
// and adherence tables moving: schedule expiry, reminder generation, due
// delivery, retry, retention, and missed-dose escalation.  Every sweep
// is safe to run repeatedly and from the HTTP trigger endpoints as well
// as the periodic runner.
package task

import (
	"context"
	"time"

	"github.com/iliyamo/medication-adherence/internal/queue"
	"github.com/iliyamo/medication-adherence/internal/repository"
	queue_publisher "github.com/iliyamo/medication-adherence/internal/service"
)

const (
	// FirstGenHorizonDays is how far ahead reminders are planned when a
	// schedule is first created.
	FirstGenHorizonDays = 14

	// RegenHorizonDays is the horizon for periodic top-ups and for
	// regeneration after a schedule edit.
	RegenHorizonDays = 7

	// DueWindow is the tolerance around now within which a pending
	// reminder counts as due for delivery.
	DueWindow = 5 * time.Minute

	// EscalationCutoff is how long after the scheduled time an
	// unanswered reminder is forced to missed.
	EscalationCutoff = time.Hour

	// RetryWindow bounds the failed→pending retry: failures whose dose
	// time is older than this stay failed.
	RetryWindow = 24 * time.Hour

	// RetentionAge is how long sent and failed reminders are kept
	// before the cleanup sweep purges them.  Pending reminders are
	// never purged.
	RetentionAge = 30 * 24 * time.Hour
)

// missedNote is written on records the escalation sweep resolves.
const missedNote = "Automatically marked as missed - no response within 1 hour"

// Sweeper bundles the repositories the sweeps operate on.  The publish
// hook is swappable so tests can capture delivery events instead of
// dialing a broker.
type Sweeper struct {
	schedules *repository.ScheduleRepo
	reminders *repository.ReminderRepo
	adherence *repository.AdherenceRepo
	streaks   *repository.StreakRepo

	publish func(ctx context.Context, ev queue.ReminderDueEvent) error
}

// NewSweeper returns a Sweeper publishing delivery events to RabbitMQ.
func NewSweeper(
	schedules *repository.ScheduleRepo,
	reminders *repository.ReminderRepo,
	adherence *repository.AdherenceRepo,
	streaks *repository.StreakRepo,
) *Sweeper {
	return &Sweeper{
		schedules: schedules,
		reminders: reminders,
		adherence: adherence,
		streaks:   streaks,
		publish:   queue_publisher.PublishReminderDue,
	}
}
