package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/medication-adherence/internal/model"
)

// MedicationRepo provides CRUD operations for the medications table.
// Every query is scoped to the owning user; a lookup for a medication
// the caller does not own behaves exactly like a missing row and yields
// sql.ErrNoRows.  Date columns are DATE in MySQL and are compared by
// calendar day, never by instant.
type MedicationRepo struct {
	db *sql.DB
}

// NewMedicationRepo returns a new MedicationRepo bound to the given database.
func NewMedicationRepo(db *sql.DB) *MedicationRepo { return &MedicationRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *MedicationRepo) DB() *sql.DB { return r.db }

const medicationColumns = `id, user_id, name, directions, side_effects, purpose, warnings, notes,
       dosage_amount, dosage_unit, frequency, start_date, end_date, created_at`

// scanMedication reads one row into a model.Medication.  It is shared by
// every SELECT in this repository so the column order has a single home.
func scanMedication(row interface{ Scan(...interface{}) error }) (*model.Medication, error) {
	var m model.Medication
	var endDate sql.NullTime
	err := row.Scan(
		&m.ID, &m.UserID, &m.Name, &m.Directions, &m.SideEffects, &m.Purpose, &m.Warnings, &m.Notes,
		&m.DosageAmount, &m.DosageUnit, &m.Frequency, &m.StartDate, &endDate, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		d := endDate.Time
		m.EndDate = &d
	}
	return &m, nil
}

// Create inserts a medication and populates the generated ID.
func (r *MedicationRepo) Create(ctx context.Context, m *model.Medication) error {
	return r.create(ctx, r.db, m)
}

// CreateTx is Create inside an existing transaction; the caller must
// commit or roll back.
func (r *MedicationRepo) CreateTx(ctx context.Context, tx *sql.Tx, m *model.Medication) error {
	return r.create(ctx, tx, m)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *MedicationRepo) create(ctx context.Context, ex execer, m *model.Medication) error {
	const q = `INSERT INTO medications
               (user_id, name, directions, side_effects, purpose, warnings, notes,
                dosage_amount, dosage_unit, frequency, start_date, end_date)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var end interface{}
	if m.EndDate != nil {
		end = m.EndDate.Format("2006-01-02")
	}
	if m.StartDate.IsZero() {
		m.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	res, err := ex.ExecContext(ctx, q,
		m.UserID, m.Name, m.Directions, m.SideEffects, m.Purpose, m.Warnings, m.Notes,
		m.DosageAmount, m.DosageUnit, m.Frequency, m.StartDate.Format("2006-01-02"), end,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// GetByIDForUser returns a single medication owned by the given user.
// sql.ErrNoRows is returned when the row is missing or owned by someone
// else.
func (r *MedicationRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Medication, error) {
	return r.getByIDForUser(ctx, r.db, id, userID)
}

// GetByIDForUserTx is GetByIDForUser inside an existing transaction.
func (r *MedicationRepo) GetByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Medication, error) {
	return r.getByIDForUser(ctx, tx, id, userID)
}

func (r *MedicationRepo) getByIDForUser(ctx context.Context, ex execer, id, userID uint64) (*model.Medication, error) {
	q := `SELECT ` + medicationColumns + ` FROM medications WHERE id = ? AND user_id = ?`
	return scanMedication(ex.QueryRowContext(ctx, q, id, userID))
}

// ListByUser returns all medications for the user ordered by name.
func (r *MedicationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Medication, error) {
	q := `SELECT ` + medicationColumns + ` FROM medications WHERE user_id = ? ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Update persists every mutable field of the medication.  The row must
// already belong to the user embedded in the model; callers load it with
// GetByIDForUser first, apply changes, then save.
func (r *MedicationRepo) Update(ctx context.Context, m *model.Medication) error {
	return r.update(ctx, r.db, m)
}

// UpdateTx is Update inside an existing transaction.
func (r *MedicationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, m *model.Medication) error {
	return r.update(ctx, tx, m)
}

func (r *MedicationRepo) update(ctx context.Context, ex execer, m *model.Medication) error {
	const q = `UPDATE medications
               SET name = ?, directions = ?, side_effects = ?, purpose = ?, warnings = ?, notes = ?,
                   dosage_amount = ?, dosage_unit = ?, frequency = ?, start_date = ?, end_date = ?
               WHERE id = ? AND user_id = ?`
	var end interface{}
	if m.EndDate != nil {
		end = m.EndDate.Format("2006-01-02")
	}
	res, err := ex.ExecContext(ctx, q,
		m.Name, m.Directions, m.SideEffects, m.Purpose, m.Warnings, m.Notes,
		m.DosageAmount, m.DosageUnit, m.Frequency, m.StartDate.Format("2006-01-02"), end,
		m.ID, m.UserID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// RowsAffected is zero both for a missing row and for a no-op update,
	// so re-check existence before reporting not found.
	if n == 0 {
		var one int
		if err := ex.QueryRowContext(ctx, `SELECT 1 FROM medications WHERE id = ? AND user_id = ?`, m.ID, m.UserID).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a medication owned by the user.  Schedules, reminders
// and adherence rows cascade at the database level.  sql.ErrNoRows is
// returned when nothing was deleted.
func (r *MedicationRepo) Delete(ctx context.Context, id, userID uint64) error {
	return r.delete(ctx, r.db, id, userID)
}

// DeleteTx is Delete inside an existing transaction.
func (r *MedicationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id, userID uint64) error {
	return r.delete(ctx, tx, id, userID)
}

func (r *MedicationRepo) delete(ctx context.Context, ex execer, id, userID uint64) error {
	res, err := ex.ExecContext(ctx, `DELETE FROM medications WHERE id = ? AND user_id = ?`, id, userID)
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
