package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/medication-adherence/internal/model"
)

// AdherenceRepo provides data access to the adherence_records table.
// The table carries a unique key on (user_id, reminder_id) which backs
// the lazy one-to-one relationship between reminders and their outcome:
// the record is materialized on first touch, by either a user response
// or the escalation sweep, never by implicit traversal.
type AdherenceRepo struct {
	db *sql.DB
}

// NewAdherenceRepo returns a new AdherenceRepo bound to the given database.
func NewAdherenceRepo(db *sql.DB) *AdherenceRepo { return &AdherenceRepo{db: db} }

// DB exposes the underlying handle for transaction management.
func (r *AdherenceRepo) DB() *sql.DB { return r.db }

const adherenceColumns = `id, user_id, medication_id, reminder_id, status, scheduled_time,
       actual_time, response_time, is_late, minutes_late, notes, created_at, updated_at`

func scanAdherence(row interface{ Scan(...interface{}) error }) (*model.AdherenceRecord, error) {
	var a model.AdherenceRecord
	var actual, response sql.NullTime
	var minsLate sql.NullInt64
	err := row.Scan(
		&a.ID, &a.UserID, &a.MedicationID, &a.ReminderID, &a.Status, &a.ScheduledTime,
		&actual, &response, &a.IsLate, &minsLate, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if actual.Valid {
		t := actual.Time
		a.ActualTime = &t
	}
	if response.Valid {
		t := response.Time
		a.ResponseTime = &t
	}
	if minsLate.Valid {
		m := int(minsLate.Int64)
		a.MinutesLate = &m
	}
	return &a, nil
}

func fmtNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// GetOrCreateForReminderTx fetches the record paired with the reminder,
// creating a pending one when none exists yet.  The returned row is
// locked with FOR UPDATE for the remainder of the transaction so
// concurrent transitions against the same reminder serialize here.
func (r *AdherenceRepo) GetOrCreateForReminderTx(ctx context.Context, tx *sql.Tx, userID uint64, rem *model.Reminder) (*model.AdherenceRecord, error) {
	q := `SELECT ` + adherenceColumns + ` FROM adherence_records
          WHERE user_id = ? AND reminder_id = ? FOR UPDATE`
	rec, err := scanAdherence(tx.QueryRowContext(ctx, q, userID, rem.ID))
	if err == nil {
		return rec, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO adherence_records (user_id, medication_id, reminder_id, status, scheduled_time)
         VALUES (?, ?, ?, 'pending', ?)`,
		userID, rem.MedicationID, rem.ID, rem.ScheduledAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		// A concurrent transaction may have inserted the row between our
		// select and insert; re-read under lock in that case.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return scanAdherence(tx.QueryRowContext(ctx, q, userID, rem.ID))
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.AdherenceRecord{
		ID:            uint64(id),
		UserID:        userID,
		MedicationID:  rem.MedicationID,
		ReminderID:    rem.ID,
		Status:        model.AdherencePending,
		ScheduledTime: rem.ScheduledAt,
	}, nil
}

// ResolveTx persists a transition out of pending.  The WHERE guard on
// status makes the write a no-op when the record was already resolved;
// that case surfaces as ErrAlreadyRecorded so the caller rolls back.
func (r *AdherenceRepo) ResolveTx(ctx context.Context, tx *sql.Tx, rec *model.AdherenceRecord) error {
	var minsLate interface{}
	if rec.MinutesLate != nil {
		minsLate = *rec.MinutesLate
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE adherence_records
         SET status = ?, actual_time = ?, response_time = ?, is_late = ?, minutes_late = ?, notes = ?
         WHERE id = ? AND status = 'pending'`,
		rec.Status, fmtNullTime(rec.ActualTime), fmtNullTime(rec.ResponseTime),
		rec.IsLate, minsLate, rec.Notes, rec.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRecorded
	}
	return nil
}

// GetByIDForUser returns a record owned by the user, or sql.ErrNoRows.
func (r *AdherenceRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.AdherenceRecord, error) {
	return r.getByIDForUser(ctx, r.db, id, userID)
}

// GetByIDForUserTx is GetByIDForUser inside an existing transaction.
func (r *AdherenceRepo) GetByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.AdherenceRecord, error) {
	return r.getByIDForUser(ctx, tx, id, userID)
}

func (r *AdherenceRepo) getByIDForUser(ctx context.Context, ex execer, id, userID uint64) (*model.AdherenceRecord, error) {
	q := `SELECT ` + adherenceColumns + ` FROM adherence_records WHERE id = ? AND user_id = ?`
	return scanAdherence(ex.QueryRowContext(ctx, q, id, userID))
}

// ListByUserWindow returns the user's records with scheduled_time inside
// [start, end], newest first.  This is the report aggregator's input.
func (r *AdherenceRepo) ListByUserWindow(ctx context.Context, userID uint64, start, end time.Time) ([]model.AdherenceRecord, error) {
	q := `SELECT ` + adherenceColumns + ` FROM adherence_records
          WHERE user_id = ? AND scheduled_time >= ? AND scheduled_time <= ?
          ORDER BY scheduled_time DESC, id DESC`
	return r.list(ctx, q, userID,
		start.UTC().Format("2006-01-02 15:04:05"), end.UTC().Format("2006-01-02 15:04:05"))
}

// ListRecent returns up to limit records scheduled since the given
// instant, newest first.  Used by the summary endpoint.
func (r *AdherenceRepo) ListRecent(ctx context.Context, userID uint64, since time.Time, limit int) ([]model.AdherenceRecord, error) {
	q := `SELECT ` + adherenceColumns + ` FROM adherence_records
          WHERE user_id = ? AND scheduled_time >= ?
          ORDER BY scheduled_time DESC, id DESC LIMIT ?`
	return r.list(ctx, q, userID, since.UTC().Format("2006-01-02 15:04:05"), limit)
}

// ListPendingByUser returns records still awaiting a response.
func (r *AdherenceRepo) ListPendingByUser(ctx context.Context, userID uint64) ([]model.AdherenceRecord, error) {
	q := `SELECT ` + adherenceColumns + ` FROM adherence_records
          WHERE user_id = ? AND status = 'pending'
          ORDER BY scheduled_time DESC, id DESC`
	return r.list(ctx, q, userID)
}

// ListOverdueByUser returns pending records whose scheduled_time is more
// than the cutoff behind now.
func (r *AdherenceRepo) ListOverdueByUser(ctx context.Context, userID uint64, cutoff time.Duration) ([]model.AdherenceRecord, error) {
	q := `SELECT ` + adherenceColumns + ` FROM adherence_records
          WHERE user_id = ? AND status = 'pending'
            AND scheduled_time < UTC_TIMESTAMP() - INTERVAL ? SECOND
          ORDER BY scheduled_time DESC, id DESC`
	return r.list(ctx, q, userID, int64(cutoff.Seconds()))
}

// CountPendingByUser returns how many of the user's records are pending
// and how many of those are more than overdueCutoff behind now.
func (r *AdherenceRepo) CountPendingByUser(ctx context.Context, userID uint64, overdueCutoff time.Duration) (pending, overdue int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
                COALESCE(SUM(scheduled_time < UTC_TIMESTAMP() - INTERVAL ? SECOND), 0)
         FROM adherence_records WHERE user_id = ? AND status = 'pending'`,
		int64(overdueCutoff.Seconds()), userID).Scan(&pending, &overdue)
	return pending, overdue, err
}

func (r *AdherenceRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.AdherenceRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AdherenceRecord, 0)
	for rows.Next() {
		a, err := scanAdherence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CreateTx inserts a complete record supplied by a sync client inside the
// batch transaction.  Lateness fields are computed before insert so the
// stored row is self-consistent.
func (r *AdherenceRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *model.AdherenceRecord) error {
	if rec.Status == "" {
		rec.Status = model.AdherencePending
	}
	if rec.Status == model.AdherenceTaken {
		rec.ComputeLateness()
	}
	var minsLate interface{}
	if rec.MinutesLate != nil {
		minsLate = *rec.MinutesLate
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO adherence_records
         (user_id, medication_id, reminder_id, status, scheduled_time, actual_time, response_time, is_late, minutes_late, notes)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.MedicationID, rec.ReminderID, rec.Status,
		rec.ScheduledTime.UTC().Format("2006-01-02 15:04:05"),
		fmtNullTime(rec.ActualTime), fmtNullTime(rec.ResponseTime),
		rec.IsLate, minsLate, rec.Notes)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return nil
}

// UpdateTx persists a sync-driven correction of an existing record.  This
// is the one path allowed to mutate a record that is already resolved.
func (r *AdherenceRepo) UpdateTx(ctx context.Context, tx *sql.Tx, rec *model.AdherenceRecord) error {
	if rec.Status == model.AdherenceTaken {
		rec.ComputeLateness()
	}
	var minsLate interface{}
	if rec.MinutesLate != nil {
		minsLate = *rec.MinutesLate
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE adherence_records
         SET status = ?, scheduled_time = ?, actual_time = ?, response_time = ?, is_late = ?, minutes_late = ?, notes = ?
         WHERE id = ? AND user_id = ?`,
		rec.Status, rec.ScheduledTime.UTC().Format("2006-01-02 15:04:05"),
		fmtNullTime(rec.ActualTime), fmtNullTime(rec.ResponseTime),
		rec.IsLate, minsLate, rec.Notes, rec.ID, rec.UserID)
	return err
}

// DeleteTx removes a record owned by the user inside the batch
// transaction.  sql.ErrNoRows when nothing matched.
func (r *AdherenceRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id, userID uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM adherence_records WHERE id = ? AND user_id = ?`, id, userID)
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
