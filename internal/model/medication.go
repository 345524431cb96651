package model

import (
	"regexp"
	"time"
)

// Dosage units accepted for a medication.  The set mirrors the
// dosage_unit enumeration in the medications table.
const (
	UnitMG    = "mg"
	UnitG     = "g"
	UnitML    = "ml"
	UnitPills = "pills"
)

// medNamePattern restricts medication names to letters, digits, spaces,
// hyphens and periods.  Anything else is rejected at validation time.
var medNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.]+$`)

// Medication represents one prescribed medication as stored in the
// `medications` table.  Free-text guidance fields (directions, side
// effects, purpose, warnings, notes) are optional.  The dosing window is
// bounded by StartDate and the optional EndDate; schedules attached to a
// medication whose EndDate has passed must not generate reminders.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – owner of the medication.
//  Name         – display name (letters, digits, spaces, hyphens, periods).
//  Directions   – how to take the medication.
//  SideEffects  – potential side effects.
//  Purpose      – what the medication is for.
//  Warnings     – important warnings and precautions.
//  Notes        – free-form user notes.
//  DosageAmount – dose quantity, must be greater than zero.
//  DosageUnit   – one of mg, g, ml, pills.
//  Frequency    – free-text frequency label, e.g. "Once daily".
//  StartDate    – first day the medication applies (date only).
//  EndDate      – last day the medication applies, nil when open-ended.
//  CreatedAt    – creation timestamp.
type Medication struct {
	ID           uint64     `json:"id"`            // medications.id
	UserID       uint64     `json:"user_id"`       // medications.user_id
	Name         string     `json:"name"`          // medications.name
	Directions   string     `json:"directions"`    // medications.directions
	SideEffects  string     `json:"side_effects"`  // medications.side_effects
	Purpose      string     `json:"purpose"`       // medications.purpose
	Warnings     string     `json:"warnings"`      // medications.warnings
	Notes        string     `json:"notes"`         // medications.notes
	DosageAmount float64    `json:"dosage_amount"` // medications.dosage_amount
	DosageUnit   string     `json:"dosage_unit"`   // medications.dosage_unit
	Frequency    string     `json:"frequency"`     // medications.frequency
	StartDate    time.Time  `json:"start_date"`    // medications.start_date (date component only)
	EndDate      *time.Time `json:"end_date"`      // medications.end_date (nullable, date only)
	CreatedAt    time.Time  `json:"created_at"`    // medications.created_at
}

// ValidUnit reports whether u is an accepted dosage unit.
func ValidUnit(u string) bool {
	switch u {
	case UnitMG, UnitG, UnitML, UnitPills:
		return true
	}
	return false
}

// Validate checks field-level constraints and returns a map keyed by field
// name with a human-readable message per violation.  An empty map means
// the medication is valid.  Ownership is not checked here; that is the
// repository's concern.
func (m *Medication) Validate() map[string]string {
	errs := map[string]string{}
	if m.Name == "" {
		errs["name"] = "name is required"
	} else if len(m.Name) > 200 {
		errs["name"] = "name must be at most 200 characters"
	} else if !medNamePattern.MatchString(m.Name) {
		errs["name"] = "name can only contain letters, numbers, spaces, hyphens, and periods"
	}
	if m.DosageAmount <= 0 {
		errs["dosage_amount"] = "dosage must be greater than 0"
	}
	if m.DosageUnit != "" && !ValidUnit(m.DosageUnit) {
		errs["dosage_unit"] = "dosage unit must be one of mg, g, ml, pills"
	}
	if m.EndDate != nil && !m.StartDate.IsZero() && !m.EndDate.After(m.StartDate) {
		errs["end_date"] = "end date must be after start date"
	}
	return errs
}

// Expired reports whether the medication's end date has passed relative
// to the given day.  Medications without an end date never expire.
// Comparison is by calendar date, matching the DATE column in MySQL.
func (m *Medication) Expired(today time.Time) bool {
	if m.EndDate == nil {
		return false
	}
	y, mo, d := today.Date()
	day := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	ey, emo, ed := m.EndDate.Date()
	end := time.Date(ey, emo, ed, 0, 0, 0, 0, time.UTC)
	return day.After(end)
}
