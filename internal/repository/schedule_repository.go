package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/medication-adherence/internal/model"
)

// ScheduleRepo provides data access to the schedules table.  Saving a
// schedule enforces the expiry invariant: a schedule whose medication
// end date has passed is persisted with active = 0 regardless of the
// flag supplied by the caller, so an expired schedule can never be
// effectively active on disk.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// DB exposes the underlying handle for transaction management.
func (r *ScheduleRepo) DB() *sql.DB { return r.db }

const scheduleColumns = `id, user_id, medication_id, TIME_FORMAT(time_of_day, '%H:%i'), days_of_week, timezone, active, created_at`

func scanSchedule(row interface{ Scan(...interface{}) error }) (*model.Schedule, error) {
	var s model.Schedule
	err := row.Scan(&s.ID, &s.UserID, &s.MedicationID, &s.TimeOfDay, &s.DaysOfWeek, &s.Timezone, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// medicationExpired reports whether the schedule's medication has an end
// date in the past.  Used to clear the active flag on save.
func (r *ScheduleRepo) medicationExpired(ctx context.Context, ex execer, medicationID, userID uint64) (bool, error) {
	var expired bool
	err := ex.QueryRowContext(ctx,
		`SELECT end_date IS NOT NULL AND end_date < CURDATE() FROM medications WHERE id = ? AND user_id = ?`,
		medicationID, userID).Scan(&expired)
	if err != nil {
		return false, err
	}
	return expired, nil
}

// Create inserts a schedule, clearing the active flag first when the
// referenced medication has already expired.  sql.ErrNoRows is returned
// when the medication does not exist or belongs to another user.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	return r.create(ctx, r.db, s)
}

// CreateTx is Create inside an existing transaction.
func (r *ScheduleRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Schedule) error {
	return r.create(ctx, tx, s)
}

func (r *ScheduleRepo) create(ctx context.Context, ex execer, s *model.Schedule) error {
	expired, err := r.medicationExpired(ctx, ex, s.MedicationID, s.UserID)
	if err != nil {
		return err
	}
	if expired {
		s.Active = false
	}
	if s.DaysOfWeek == "" {
		s.DaysOfWeek = model.AllDays
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO schedules (user_id, medication_id, time_of_day, days_of_week, timezone, active)
         VALUES (?, ?, ?, ?, ?, ?)`,
		s.UserID, s.MedicationID, s.TimeOfDay, s.DaysOfWeek, s.Timezone, s.Active)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByIDForUser returns a schedule owned by the user, or sql.ErrNoRows.
func (r *ScheduleRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Schedule, error) {
	return r.getByIDForUser(ctx, r.db, id, userID)
}

// GetByIDForUserTx is GetByIDForUser inside an existing transaction.
func (r *ScheduleRepo) GetByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Schedule, error) {
	return r.getByIDForUser(ctx, tx, id, userID)
}

func (r *ScheduleRepo) getByIDForUser(ctx context.Context, ex execer, id, userID uint64) (*model.Schedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ? AND user_id = ?`
	return scanSchedule(ex.QueryRowContext(ctx, q, id, userID))
}

// ListByUser returns all schedules for the user, newest first.
func (r *ScheduleRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Schedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM schedules WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, userID)
}

// ListEffectivelyActive returns schedules that are flagged active and
// whose medication has not expired.  Only these schedules may generate
// reminders.
func (r *ScheduleRepo) ListEffectivelyActive(ctx context.Context) ([]model.Schedule, error) {
	q := `SELECT ` + scheduleColumnsPrefixed("s") + `
          FROM schedules s
          JOIN medications m ON m.id = s.medication_id
          WHERE s.active = 1 AND (m.end_date IS NULL OR m.end_date >= CURDATE())`
	return r.list(ctx, q)
}

func scheduleColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.user_id, ` + alias + `.medication_id, TIME_FORMAT(` + alias + `.time_of_day, '%H:%i'), ` +
		alias + `.days_of_week, ` + alias + `.timezone, ` + alias + `.active, ` + alias + `.created_at`
}

func (r *ScheduleRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update persists the mutable fields of a schedule, re-applying the
// expiry invariant the same way Create does.
func (r *ScheduleRepo) Update(ctx context.Context, s *model.Schedule) error {
	return r.updateSchedule(ctx, r.db, s)
}

// UpdateTx is Update inside an existing transaction.
func (r *ScheduleRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Schedule) error {
	return r.updateSchedule(ctx, tx, s)
}

func (r *ScheduleRepo) updateSchedule(ctx context.Context, ex execer, s *model.Schedule) error {
	expired, err := r.medicationExpired(ctx, ex, s.MedicationID, s.UserID)
	if err != nil {
		return err
	}
	if expired {
		s.Active = false
	}
	res, err := ex.ExecContext(ctx,
		`UPDATE schedules SET medication_id = ?, time_of_day = ?, days_of_week = ?, timezone = ?, active = ?
         WHERE id = ? AND user_id = ?`,
		s.MedicationID, s.TimeOfDay, s.DaysOfWeek, s.Timezone, s.Active, s.ID, s.UserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		if err := ex.QueryRowContext(ctx, `SELECT 1 FROM schedules WHERE id = ? AND user_id = ?`, s.ID, s.UserID).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a schedule owned by the user.  sql.ErrNoRows when the
// row is missing or not owned.
func (r *ScheduleRepo) Delete(ctx context.Context, id, userID uint64) error {
	return r.deleteSchedule(ctx, r.db, id, userID)
}

// DeleteTx is Delete inside an existing transaction.
func (r *ScheduleRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id, userID uint64) error {
	return r.deleteSchedule(ctx, tx, id, userID)
}

func (r *ScheduleRepo) deleteSchedule(ctx context.Context, ex execer, id, userID uint64) error {
	res, err := ex.ExecContext(ctx, `DELETE FROM schedules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeactivateExpired clears the active flag on every schedule whose
// medication end date has passed and returns how many rows changed.
// This is the bulk form run by the expiry sweep; per-row enforcement
// still happens on every save.
func (r *ScheduleRepo) DeactivateExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE schedules s
         JOIN medications m ON m.id = s.medication_id
         SET s.active = 0
         WHERE s.active = 1 AND m.end_date IS NOT NULL AND m.end_date < CURDATE()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
