package model

import "time"

// Reminder statuses.  A reminder starts out pending, moves to sent when
// the due sweep hands it to the notification collaborator, and to failed
// when the escalation sweep gives up on it.  The retry sweep moves
// recently failed reminders back to pending.
const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
)

// Reminder is one concrete dose instance expanded from a Schedule.  The
// medication reference is denormalized so adherence records and sweeps do
// not have to join through schedules.  Reminders are only ever deleted by
// the retention sweep (sent/failed older than 30 days) or by schedule
// regeneration (future pending ones).
//
// Fields:
//  ID           – primary key identifier.
//  ScheduleID   – schedule that produced this reminder.
//  MedicationID – medication the reminder is for (denormalized).
//  ScheduledAt  – absolute instant the dose is due, stored UTC.
//  SentAt       – when the reminder was handed off for delivery, nil until sent.
//  Status       – pending, sent or failed.
//  CreatedAt    – creation timestamp.
type Reminder struct {
	ID           uint64     `json:"id"`            // reminders.id
	ScheduleID   uint64     `json:"schedule_id"`   // reminders.schedule_id
	MedicationID uint64     `json:"medication_id"` // reminders.medication_id
	ScheduledAt  time.Time  `json:"scheduled_at"`  // reminders.scheduled_at
	SentAt       *time.Time `json:"sent_at"`       // reminders.sent_at (nullable)
	Status       string     `json:"status"`        // reminders.status
	CreatedAt    time.Time  `json:"created_at"`    // reminders.created_at
}

// ValidReminderStatus reports whether s is a recognised reminder status.
func ValidReminderStatus(s string) bool {
	switch s {
	case ReminderPending, ReminderSent, ReminderFailed:
		return true
	}
	return false
}

// Validate checks field-level constraints for a reminder supplied by a
// sync client.  The schedule ownership check is performed separately by
// the repository because it needs database access.
func (r *Reminder) Validate() map[string]string {
	errs := map[string]string{}
	if r.ScheduleID == 0 {
		errs["schedule"] = "schedule is required"
	}
	if r.ScheduledAt.IsZero() {
		errs["scheduled_at"] = "scheduled_at is required"
	}
	if r.Status != "" && !ValidReminderStatus(r.Status) {
		errs["status"] = "status must be one of pending, sent, failed"
	}
	return errs
}
