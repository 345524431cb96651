package sync

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/repository"
)

type adherencePayload struct {
	MedicationID  *uint64 `json:"medication_id"`
	ReminderID    *uint64 `json:"reminder_id"`
	Status        *string `json:"status"`
	ScheduledTime *string `json:"scheduled_time"`
	ActualTime    *string `json:"actual_time"`
	ResponseTime  *string `json:"response_time"`
	Notes         *string `json:"notes"`
}

func (p *adherencePayload) apply(a *model.AdherenceRecord) map[string]string {
	errs := map[string]string{}
	if p.MedicationID != nil {
		a.MedicationID = *p.MedicationID
	}
	if p.ReminderID != nil {
		a.ReminderID = *p.ReminderID
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ScheduledTime != nil {
		if t, ok := parseInstant(*p.ScheduledTime); ok {
			a.ScheduledTime = t
		} else {
			errs["scheduled_time"] = "must be an RFC3339 timestamp"
		}
	}
	if p.ActualTime != nil {
		if *p.ActualTime == "" {
			a.ActualTime = nil
		} else if t, ok := parseInstant(*p.ActualTime); ok {
			a.ActualTime = &t
		} else {
			errs["actual_time"] = "must be an RFC3339 timestamp"
		}
	}
	if p.ResponseTime != nil {
		if *p.ResponseTime == "" {
			a.ResponseTime = nil
		} else if t, ok := parseInstant(*p.ResponseTime); ok {
			a.ResponseTime = &t
		} else {
			errs["response_time"] = "must be an RFC3339 timestamp"
		}
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	return errs
}

func (p *adherencePayload) validate(a *model.AdherenceRecord) map[string]string {
	errs := map[string]string{}
	if a.ReminderID == 0 {
		errs["reminder"] = "reminder is required"
	}
	if a.Status != "" && !model.ValidAdherenceStatus(a.Status) {
		errs["status"] = "status must be one of pending, taken, missed, skipped"
	}
	if len(a.Notes) > 500 {
		errs["notes"] = "notes must be at most 500 characters"
	}
	return errs
}

// AdherenceSyncer binds adherence records into the batch reconciler.
// Sync is the one channel allowed to correct a record that has already
// been resolved, so Update bypasses the pending-only guard that the
// live response path enforces.
type AdherenceSyncer struct {
	Records   *repository.AdherenceRepo
	Reminders *repository.ReminderRepo
}

// NewAdherenceSyncer returns a syncer over the given repositories.
func NewAdherenceSyncer(records *repository.AdherenceRepo, reminders *repository.ReminderRepo) *AdherenceSyncer {
	return &AdherenceSyncer{Records: records, Reminders: reminders}
}

func (s *AdherenceSyncer) Create(ctx context.Context, tx *sql.Tx, userID uint64, payload json.RawMessage) (uint64, error) {
	var p adherencePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, repository.NewValidationError(map[string]string{"body": "malformed adherence record object"})
	}
	rec := model.AdherenceRecord{UserID: userID, Status: model.AdherencePending}
	fieldErrs := p.apply(&rec)
	for k, v := range p.validate(&rec) {
		fieldErrs[k] = v
	}
	if len(fieldErrs) > 0 {
		return 0, repository.NewValidationError(fieldErrs)
	}
	// The referenced reminder must belong to the caller; medication and
	// scheduled time default from it when the client omits them.
	rem, err := s.Reminders.GetByIDForUserTx(ctx, tx, rec.ReminderID, userID)
	if err == sql.ErrNoRows {
		return 0, repository.ErrForbidden
	}
	if err != nil {
		return 0, err
	}
	if rec.MedicationID == 0 {
		rec.MedicationID = rem.MedicationID
	}
	if rec.ScheduledTime.IsZero() {
		rec.ScheduledTime = rem.ScheduledAt
	}
	if err := s.Records.CreateTx(ctx, tx, &rec); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (s *AdherenceSyncer) Update(ctx context.Context, tx *sql.Tx, userID, id uint64, payload json.RawMessage) error {
	rec, err := s.Records.GetByIDForUserTx(ctx, tx, id, userID)
	if err != nil {
		return err
	}
	var p adherencePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return repository.NewValidationError(map[string]string{"body": "malformed adherence record object"})
	}
	fieldErrs := p.apply(rec)
	for k, v := range p.validate(rec) {
		fieldErrs[k] = v
	}
	if len(fieldErrs) > 0 {
		return repository.NewValidationError(fieldErrs)
	}
	return s.Records.UpdateTx(ctx, tx, rec)
}

func (s *AdherenceSyncer) Delete(ctx context.Context, tx *sql.Tx, userID, id uint64) error {
	return s.Records.DeleteTx(ctx, tx, id, userID)
}
