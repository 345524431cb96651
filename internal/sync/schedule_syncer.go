package sync

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/repository"
)

type schedulePayload struct {
	MedicationID *uint64 `json:"medication_id"`
	TimeOfDay    *string `json:"time_of_day"`
	DaysOfWeek   *string `json:"days_of_week"`
	Timezone     *string `json:"timezone"`
	Active       *bool   `json:"active"`
}

func (p *schedulePayload) apply(s *model.Schedule) {
	if p.MedicationID != nil {
		s.MedicationID = *p.MedicationID
	}
	if p.TimeOfDay != nil {
		s.TimeOfDay = *p.TimeOfDay
	}
	if p.DaysOfWeek != nil {
		s.DaysOfWeek = *p.DaysOfWeek
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.Active != nil {
		s.Active = *p.Active
	}
}

// ScheduleSyncer binds schedules into the batch reconciler.  Persistence
// goes through ScheduleRepo, which enforces the medication-expiry
// invariant on every save, so a synced schedule can never come back
// effectively active for an expired medication.
type ScheduleSyncer struct {
	Schedules *repository.ScheduleRepo
}

// NewScheduleSyncer returns a syncer over the given repository.
func NewScheduleSyncer(schedules *repository.ScheduleRepo) *ScheduleSyncer {
	return &ScheduleSyncer{Schedules: schedules}
}

func (s *ScheduleSyncer) Create(ctx context.Context, tx *sql.Tx, userID uint64, payload json.RawMessage) (uint64, error) {
	var p schedulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, repository.NewValidationError(map[string]string{"body": "malformed schedule object"})
	}
	sched := model.Schedule{UserID: userID, DaysOfWeek: model.AllDays, Timezone: "UTC", Active: true}
	p.apply(&sched)
	if fieldErrs := sched.Validate(); len(fieldErrs) > 0 {
		return 0, repository.NewValidationError(fieldErrs)
	}
	if err := s.Schedules.CreateTx(ctx, tx, &sched); err != nil {
		return 0, err
	}
	return sched.ID, nil
}

func (s *ScheduleSyncer) Update(ctx context.Context, tx *sql.Tx, userID, id uint64, payload json.RawMessage) error {
	sched, err := s.Schedules.GetByIDForUserTx(ctx, tx, id, userID)
	if err != nil {
		return err
	}
	var p schedulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return repository.NewValidationError(map[string]string{"body": "malformed schedule object"})
	}
	p.apply(sched)
	if fieldErrs := sched.Validate(); len(fieldErrs) > 0 {
		return repository.NewValidationError(fieldErrs)
	}
	return s.Schedules.UpdateTx(ctx, tx, sched)
}

func (s *ScheduleSyncer) Delete(ctx context.Context, tx *sql.Tx, userID, id uint64) error {
	return s.Schedules.DeleteTx(ctx, tx, id, userID)
}
