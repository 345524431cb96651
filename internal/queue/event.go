// Package queue defines message payloads exchanged over the message broker.
package queue

// ReminderDueEvent is published when a reminder enters its delivery window
// and is handed off to the notification channel. It carries enough detail
// for downstream consumers to log or notify without querying the primary
// database.
type ReminderDueEvent struct {
	ReminderID     uint64  `json:"reminder_id"`
	UserID         uint64  `json:"user_id"`
	ScheduleID     uint64  `json:"schedule_id"`
	MedicationID   uint64  `json:"medication_id"`
	MedicationName string  `json:"medication_name"`
	DosageAmount   float64 `json:"dosage_amount"`
	DosageUnit     string  `json:"dosage_unit"`
	ScheduledAt    string  `json:"scheduled_at"`
	SentAt         string  `json:"sent_at"`
}
