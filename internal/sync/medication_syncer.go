package sync

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/repository"
)

// medicationPayload mirrors the client-facing medication fields.  Pointer
// fields distinguish "absent" from "zero value" so updates stay partial.
// end_date additionally treats an empty string as an explicit clear.
type medicationPayload struct {
	Name         *string  `json:"name"`
	Directions   *string  `json:"directions"`
	SideEffects  *string  `json:"side_effects"`
	Purpose      *string  `json:"purpose"`
	Warnings     *string  `json:"warnings"`
	Notes        *string  `json:"notes"`
	DosageAmount *float64 `json:"dosage_amount"`
	DosageUnit   *string  `json:"dosage_unit"`
	Frequency    *string  `json:"frequency"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
}

// apply copies the supplied fields onto the model and reports date
// parsing failures as field errors.
func (p *medicationPayload) apply(m *model.Medication) map[string]string {
	errs := map[string]string{}
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Directions != nil {
		m.Directions = *p.Directions
	}
	if p.SideEffects != nil {
		m.SideEffects = *p.SideEffects
	}
	if p.Purpose != nil {
		m.Purpose = *p.Purpose
	}
	if p.Warnings != nil {
		m.Warnings = *p.Warnings
	}
	if p.Notes != nil {
		m.Notes = *p.Notes
	}
	if p.DosageAmount != nil {
		m.DosageAmount = *p.DosageAmount
	}
	if p.DosageUnit != nil {
		m.DosageUnit = *p.DosageUnit
	}
	if p.Frequency != nil {
		m.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		if d, ok := parseDate(*p.StartDate); ok {
			m.StartDate = d
		} else {
			errs["start_date"] = "must be a YYYY-MM-DD date"
		}
	}
	if p.EndDate != nil {
		if *p.EndDate == "" {
			m.EndDate = nil
		} else if d, ok := parseDate(*p.EndDate); ok {
			m.EndDate = &d
		} else {
			errs["end_date"] = "must be a YYYY-MM-DD date"
		}
	}
	return errs
}

// MedicationSyncer binds medications into the batch reconciler.
type MedicationSyncer struct {
	Meds *repository.MedicationRepo
}

// NewMedicationSyncer returns a syncer over the given repository.
func NewMedicationSyncer(meds *repository.MedicationRepo) *MedicationSyncer {
	return &MedicationSyncer{Meds: meds}
}

func (s *MedicationSyncer) Create(ctx context.Context, tx *sql.Tx, userID uint64, payload json.RawMessage) (uint64, error) {
	var p medicationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, repository.NewValidationError(map[string]string{"body": "malformed medication object"})
	}
	m := model.Medication{UserID: userID, DosageAmount: 1, DosageUnit: model.UnitPills}
	fieldErrs := p.apply(&m)
	for k, v := range m.Validate() {
		fieldErrs[k] = v
	}
	if len(fieldErrs) > 0 {
		return 0, repository.NewValidationError(fieldErrs)
	}
	if err := s.Meds.CreateTx(ctx, tx, &m); err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (s *MedicationSyncer) Update(ctx context.Context, tx *sql.Tx, userID, id uint64, payload json.RawMessage) error {
	m, err := s.Meds.GetByIDForUserTx(ctx, tx, id, userID)
	if err != nil {
		return err
	}
	var p medicationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return repository.NewValidationError(map[string]string{"body": "malformed medication object"})
	}
	fieldErrs := p.apply(m)
	for k, v := range m.Validate() {
		fieldErrs[k] = v
	}
	if len(fieldErrs) > 0 {
		return repository.NewValidationError(fieldErrs)
	}
	return s.Meds.UpdateTx(ctx, tx, m)
}

func (s *MedicationSyncer) Delete(ctx context.Context, tx *sql.Tx, userID, id uint64) error {
	return s.Meds.DeleteTx(ctx, tx, id, userID)
}
