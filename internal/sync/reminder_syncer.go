package sync

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/repository"
)

type reminderPayload struct {
	ScheduleID   *uint64 `json:"schedule_id"`
	MedicationID *uint64 `json:"medication_id"`
	ScheduledAt  *string `json:"scheduled_at"`
	SentAt       *string `json:"sent_at"`
	Status       *string `json:"status"`
}

func (p *reminderPayload) apply(r *model.Reminder) map[string]string {
	errs := map[string]string{}
	if p.ScheduleID != nil {
		r.ScheduleID = *p.ScheduleID
	}
	if p.MedicationID != nil {
		r.MedicationID = *p.MedicationID
	}
	if p.ScheduledAt != nil {
		if t, ok := parseInstant(*p.ScheduledAt); ok {
			r.ScheduledAt = t
		} else {
			errs["scheduled_at"] = "must be an RFC3339 timestamp"
		}
	}
	if p.SentAt != nil {
		if *p.SentAt == "" {
			r.SentAt = nil
		} else if t, ok := parseInstant(*p.SentAt); ok {
			r.SentAt = &t
		} else {
			errs["sent_at"] = "must be an RFC3339 timestamp"
		}
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return errs
}

// ReminderSyncer binds reminders into the batch reconciler.  Creating a
// reminder requires the target schedule to belong to the caller; a
// schedule owned by someone else fails the item with a forbidden error
// and, like every error, rolls back the whole batch.
type ReminderSyncer struct {
	Reminders *repository.ReminderRepo
	Schedules *repository.ScheduleRepo
}

// NewReminderSyncer returns a syncer over the given repositories.
func NewReminderSyncer(reminders *repository.ReminderRepo, schedules *repository.ScheduleRepo) *ReminderSyncer {
	return &ReminderSyncer{Reminders: reminders, Schedules: schedules}
}

func (s *ReminderSyncer) Create(ctx context.Context, tx *sql.Tx, userID uint64, payload json.RawMessage) (uint64, error) {
	var p reminderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, repository.NewValidationError(map[string]string{"body": "malformed reminder object"})
	}
	rem := model.Reminder{Status: model.ReminderPending}
	fieldErrs := p.apply(&rem)
	for k, v := range rem.Validate() {
		fieldErrs[k] = v
	}
	if len(fieldErrs) > 0 {
		return 0, repository.NewValidationError(fieldErrs)
	}
	// The schedule must exist and belong to the caller before a reminder
	// may be attached to it.
	sched, err := s.Schedules.GetByIDForUserTx(ctx, tx, rem.ScheduleID, userID)
	if err == sql.ErrNoRows {
		return 0, repository.ErrForbidden
	}
	if err != nil {
		return 0, err
	}
	if rem.MedicationID == 0 {
		rem.MedicationID = sched.MedicationID
	}
	if err := s.Reminders.CreateTx(ctx, tx, &rem); err != nil {
		return 0, err
	}
	return rem.ID, nil
}

func (s *ReminderSyncer) Update(ctx context.Context, tx *sql.Tx, userID, id uint64, payload json.RawMessage) error {
	rem, err := s.Reminders.GetByIDForUserTx(ctx, tx, id, userID)
	if err != nil {
		return err
	}
	var p reminderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return repository.NewValidationError(map[string]string{"body": "malformed reminder object"})
	}
	fieldErrs := p.apply(rem)
	for k, v := range rem.Validate() {
		fieldErrs[k] = v
	}
	if len(fieldErrs) > 0 {
		return repository.NewValidationError(fieldErrs)
	}
	// Moving a reminder onto a different schedule still requires that
	// schedule to be the caller's own.
	if _, err := s.Schedules.GetByIDForUserTx(ctx, tx, rem.ScheduleID, userID); err == sql.ErrNoRows {
		return repository.ErrForbidden
	} else if err != nil {
		return err
	}
	return s.Reminders.UpdateTx(ctx, tx, rem)
}

func (s *ReminderSyncer) Delete(ctx context.Context, tx *sql.Tx, userID, id uint64) error {
	return s.Reminders.DeleteByIDForUserTx(ctx, tx, id, userID)
}
