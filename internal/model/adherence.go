package model

import (
	"math"
	"time"
)

// Adherence statuses.  A record starts pending and is resolved exactly
// once, either by the user (taken/missed/skipped) or by the escalation
// sweep (missed).
const (
	AdherencePending = "pending"
	AdherenceTaken   = "taken"
	AdherenceMissed  = "missed"
	AdherenceSkipped = "skipped"
)

// LateThresholdMinutes is the tolerance for a taken dose: anything more
// than this many minutes after the scheduled time counts as late.
const LateThresholdMinutes = 30

// AdherenceRecord is the outcome of one reminder, tied 1:1 to it via a
// uniqueness constraint on (user_id, reminder_id).  Records are created
// lazily on first touch: either by the user responding or by the
// escalation sweep materializing an overdue reminder.  Once resolved out
// of pending a record is immutable except for sync-driven correction.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owner of the record.
//  MedicationID  – medication the dose belongs to.
//  ReminderID    – reminder this record resolves (unique per user).
//  Status        – pending, taken, missed or skipped.
//  ScheduledTime – when the dose was supposed to be taken (copied from the reminder).
//  ActualTime    – when it was actually taken, nil unless taken.
//  ResponseTime  – when the user (or sweep) responded.
//  IsLate        – taken more than 30 minutes after the scheduled time.
//  MinutesLate   – signed lateness in whole minutes; negative for early doses.
//  Notes         – user notes about taking or missing the dose.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type AdherenceRecord struct {
	ID            uint64     `json:"id"`             // adherence_records.id
	UserID        uint64     `json:"user_id"`        // adherence_records.user_id
	MedicationID  uint64     `json:"medication_id"`  // adherence_records.medication_id
	ReminderID    uint64     `json:"reminder_id"`    // adherence_records.reminder_id
	Status        string     `json:"status"`         // adherence_records.status
	ScheduledTime time.Time  `json:"scheduled_time"` // adherence_records.scheduled_time
	ActualTime    *time.Time `json:"actual_time"`    // adherence_records.actual_time (nullable)
	ResponseTime  *time.Time `json:"response_time"`  // adherence_records.response_time (nullable)
	IsLate        bool       `json:"is_late"`        // adherence_records.is_late
	MinutesLate   *int       `json:"minutes_late"`   // adherence_records.minutes_late (nullable)
	Notes         string     `json:"notes"`          // adherence_records.notes
	CreatedAt     time.Time  `json:"created_at"`     // adherence_records.created_at
	UpdatedAt     time.Time  `json:"updated_at"`     // adherence_records.updated_at
}

// ValidAdherenceStatus reports whether s is a recognised record status.
func ValidAdherenceStatus(s string) bool {
	switch s {
	case AdherencePending, AdherenceTaken, AdherenceMissed, AdherenceSkipped:
		return true
	}
	return false
}

// ValidResponseStatus reports whether s is a status a user may respond
// with.  pending is not a response.
func ValidResponseStatus(s string) bool {
	switch s {
	case AdherenceTaken, AdherenceMissed, AdherenceSkipped:
		return true
	}
	return false
}

// ComputeLateness fills MinutesLate and IsLate from ActualTime relative
// to ScheduledTime.  Lateness is floor((actual-scheduled)/1min), so an
// early dose yields a negative value which is preserved rather than
// clamped.  Exactly 30 minutes late is still on time.
func (a *AdherenceRecord) ComputeLateness() {
	if a.ActualTime == nil {
		return
	}
	mins := int(math.Floor(a.ActualTime.Sub(a.ScheduledTime).Seconds() / 60))
	a.MinutesLate = &mins
	a.IsLate = mins > LateThresholdMinutes
}

// AdherenceStreak is the running per-(user, medication) aggregate of
// consecutive and lifetime outcomes.  One row exists per pair, enforced
// by a unique key, and every mutation goes through Update inside the
// same transaction as the record transition that caused it.
//
// Fields:
//  ID                 – primary key identifier.
//  UserID             – owner of the aggregate.
//  MedicationID       – medication it aggregates.
//  CurrentTakenStreak – consecutive taken count, reset by a miss.
//  CurrentMissedStreak– consecutive missed/skipped count, reset by a take.
//  LongestTakenStreak – all-time best taken streak.
//  LongestMissedStreak– all-time worst missed streak.
//  TotalTaken         – lifetime taken count.
//  TotalMissed        – lifetime missed+skipped count.
//  TotalScheduled     – lifetime resolved dose count.
//  LastUpdated        – last mutation timestamp.
//  CreatedAt          – creation timestamp.
type AdherenceStreak struct {
	ID                  uint64    `json:"id"`                    // adherence_streaks.id
	UserID              uint64    `json:"user_id"`               // adherence_streaks.user_id
	MedicationID        uint64    `json:"medication_id"`         // adherence_streaks.medication_id
	CurrentTakenStreak  int       `json:"current_taken_streak"`  // adherence_streaks.current_taken_streak
	CurrentMissedStreak int       `json:"current_missed_streak"` // adherence_streaks.current_missed_streak
	LongestTakenStreak  int       `json:"longest_taken_streak"`  // adherence_streaks.longest_taken_streak
	LongestMissedStreak int       `json:"longest_missed_streak"` // adherence_streaks.longest_missed_streak
	TotalTaken          int       `json:"total_taken"`           // adherence_streaks.total_taken
	TotalMissed         int       `json:"total_missed"`          // adherence_streaks.total_missed
	TotalScheduled      int       `json:"total_scheduled"`       // adherence_streaks.total_scheduled
	LastUpdated         time.Time `json:"last_updated"`          // adherence_streaks.last_updated
	CreatedAt           time.Time `json:"created_at"`            // adherence_streaks.created_at
}

// Update applies one resolved dose outcome to the aggregate.  taken
// extends the taken streak and resets the missed streak; missed and
// skipped do the opposite.  total_scheduled grows on every call.
func (s *AdherenceStreak) Update(status string) {
	switch status {
	case AdherenceTaken:
		s.CurrentTakenStreak++
		s.CurrentMissedStreak = 0
		s.TotalTaken++
		if s.CurrentTakenStreak > s.LongestTakenStreak {
			s.LongestTakenStreak = s.CurrentTakenStreak
		}
	case AdherenceMissed, AdherenceSkipped:
		s.CurrentMissedStreak++
		s.CurrentTakenStreak = 0
		s.TotalMissed++
		if s.CurrentMissedStreak > s.LongestMissedStreak {
			s.LongestMissedStreak = s.CurrentMissedStreak
		}
	}
	s.TotalScheduled++
}

// AdherencePercentage returns 100*total_taken/total_scheduled rounded to
// two decimals, and 0 when nothing has been scheduled yet.  The value is
// always derived, never stored, so it cannot drift from the counters.
func (s *AdherenceStreak) AdherencePercentage() float64 {
	if s.TotalScheduled == 0 {
		return 0
	}
	return math.Round(float64(s.TotalTaken)/float64(s.TotalScheduled)*100*100) / 100
}
