package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/medication-adherence/internal/model"
)

// ReminderRepo provides data access to the reminders table.  All
// timestamps are stored in UTC; sweeps compare against UTC_TIMESTAMP()
// on the database side so a skewed application clock cannot widen the
// processing windows.
type ReminderRepo struct {
	db *sql.DB
}

// NewReminderRepo returns a new ReminderRepo bound to the given database.
func NewReminderRepo(db *sql.DB) *ReminderRepo { return &ReminderRepo{db: db} }

// DB exposes the underlying handle for transaction management.
func (r *ReminderRepo) DB() *sql.DB { return r.db }

const reminderColumns = `id, schedule_id, medication_id, scheduled_at, sent_at, status, created_at`

func scanReminder(row interface{ Scan(...interface{}) error }) (*model.Reminder, error) {
	var rem model.Reminder
	var sentAt sql.NullTime
	err := row.Scan(&rem.ID, &rem.ScheduleID, &rem.MedicationID, &rem.ScheduledAt, &sentAt, &rem.Status, &rem.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		rem.SentAt = &t
	}
	return &rem, nil
}

// Create inserts a reminder.  Status defaults to pending when empty.
func (r *ReminderRepo) Create(ctx context.Context, rem *model.Reminder) error {
	return r.create(ctx, r.db, rem)
}

// CreateTx is Create inside an existing transaction.
func (r *ReminderRepo) CreateTx(ctx context.Context, tx *sql.Tx, rem *model.Reminder) error {
	return r.create(ctx, tx, rem)
}

func (r *ReminderRepo) create(ctx context.Context, ex execer, rem *model.Reminder) error {
	if rem.Status == "" {
		rem.Status = model.ReminderPending
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO reminders (schedule_id, medication_id, scheduled_at, status) VALUES (?, ?, ?, ?)`,
		rem.ScheduleID, rem.MedicationID, rem.ScheduledAt.UTC().Format("2006-01-02 15:04:05"), rem.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rem.ID = uint64(id)
	return nil
}

// ExistsForScheduleDate reports whether any reminder already exists for
// the schedule on the given calendar date.  Generation is idempotent per
// day, not per exact timestamp, so a schedule edit that shifts the time
// of day does not duplicate a day that already has a reminder.
func (r *ReminderRepo) ExistsForScheduleDate(ctx context.Context, scheduleID uint64, date time.Time) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM reminders WHERE schedule_id = ? AND DATE(scheduled_at) = ? LIMIT 1`,
		scheduleID, date.Format("2006-01-02")).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteFuturePending removes still-pending reminders for a schedule
// whose scheduled_at lies in the future.  Sent and failed reminders are
// history and stay untouched.  Used before regeneration.
func (r *ReminderRepo) DeleteFuturePending(ctx context.Context, scheduleID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE schedule_id = ? AND status = 'pending' AND scheduled_at > UTC_TIMESTAMP()`,
		scheduleID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByIDForUser returns a reminder whose schedule belongs to the given
// user, or sql.ErrNoRows when missing or unowned.
func (r *ReminderRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Reminder, error) {
	return r.getByIDForUser(ctx, r.db, id, userID)
}

// GetByIDForUserTx is GetByIDForUser inside an existing transaction.
func (r *ReminderRepo) GetByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Reminder, error) {
	return r.getByIDForUser(ctx, tx, id, userID)
}

func (r *ReminderRepo) getByIDForUser(ctx context.Context, ex execer, id, userID uint64) (*model.Reminder, error) {
	const q = `SELECT r.id, r.schedule_id, r.medication_id, r.scheduled_at, r.sent_at, r.status, r.created_at
               FROM reminders r
               JOIN schedules s ON s.id = r.schedule_id
               WHERE r.id = ? AND s.user_id = ?`
	return scanReminder(ex.QueryRowContext(ctx, q, id, userID))
}

// ListByUser returns the user's reminders, optionally restricted to
// pending ones scheduled in the future.  Ordered by scheduled_at.
func (r *ReminderRepo) ListByUser(ctx context.Context, userID uint64, upcomingOnly bool) ([]model.Reminder, error) {
	q := `SELECT r.id, r.schedule_id, r.medication_id, r.scheduled_at, r.sent_at, r.status, r.created_at
          FROM reminders r
          JOIN schedules s ON s.id = r.schedule_id
          WHERE s.user_id = ?`
	if upcomingOnly {
		q += ` AND r.status = 'pending' AND r.scheduled_at > UTC_TIMESTAMP()`
	}
	q += ` ORDER BY r.scheduled_at, r.id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reminder, 0)
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rem)
	}
	return out, rows.Err()
}

// DueReminder couples a due reminder with the owner and medication
// details the notification event needs, saving the sweep a second
// round-trip per reminder.
type DueReminder struct {
	model.Reminder
	UserID         uint64
	MedicationName string
	DosageAmount   float64
	DosageUnit     string
}

// ListDueDetailed returns pending reminders whose scheduled_at falls
// within ±window of now, joined with schedule owner and medication
// details for the delivery hand-off.  The lower bound keeps very old
// pending reminders out of the due sweep; those are the escalation
// sweep's business.
func (r *ReminderRepo) ListDueDetailed(ctx context.Context, window time.Duration) ([]DueReminder, error) {
	secs := int64(window.Seconds())
	const q = `SELECT r.id, r.schedule_id, r.medication_id, r.scheduled_at, r.sent_at, r.status, r.created_at,
                      s.user_id, m.name, m.dosage_amount, m.dosage_unit
               FROM reminders r
               JOIN schedules s ON s.id = r.schedule_id
               JOIN medications m ON m.id = r.medication_id
               WHERE r.status = 'pending'
                 AND r.scheduled_at <= UTC_TIMESTAMP() + INTERVAL ? SECOND
                 AND r.scheduled_at >= UTC_TIMESTAMP() - INTERVAL ? SECOND
               ORDER BY r.scheduled_at, r.id`
	rows, err := r.db.QueryContext(ctx, q, secs, secs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]DueReminder, 0)
	for rows.Next() {
		var d DueReminder
		var sentAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.ScheduleID, &d.MedicationID, &d.ScheduledAt, &sentAt, &d.Status, &d.CreatedAt,
			&d.UserID, &d.MedicationName, &d.DosageAmount, &d.DosageUnit); err != nil {
			return nil, err
		}
		if sentAt.Valid {
			t := sentAt.Time
			d.SentAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// OverdueReminder couples an unanswered reminder with its owner for the
// escalation sweep.
type OverdueReminder struct {
	model.Reminder
	UserID uint64
}

// ListOverdueUnresolved returns pending and sent reminders whose
// scheduled_at is more than the cutoff behind now and whose paired
// adherence record, if any, is still pending.  Oldest first; ordering by
// scheduled_at keeps streak updates applied in dose order when the
// escalation sweep resolves a backlog.
func (r *ReminderRepo) ListOverdueUnresolved(ctx context.Context, cutoff time.Duration) ([]OverdueReminder, error) {
	const q = `SELECT r.id, r.schedule_id, r.medication_id, r.scheduled_at, r.sent_at, r.status, r.created_at,
                      s.user_id
               FROM reminders r
               JOIN schedules s ON s.id = r.schedule_id
               WHERE r.status IN ('pending','sent')
                 AND r.scheduled_at < UTC_TIMESTAMP() - INTERVAL ? SECOND
                 AND NOT EXISTS (
                     SELECT 1 FROM adherence_records a
                     WHERE a.reminder_id = r.id AND a.status <> 'pending'
                 )
               ORDER BY r.scheduled_at, r.id`
	rows, err := r.db.QueryContext(ctx, q, int64(cutoff.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]OverdueReminder, 0)
	for rows.Next() {
		var o OverdueReminder
		var sentAt sql.NullTime
		if err := rows.Scan(
			&o.ID, &o.ScheduleID, &o.MedicationID, &o.ScheduledAt, &sentAt, &o.Status, &o.CreatedAt,
			&o.UserID,
		); err != nil {
			return nil, err
		}
		if sentAt.Valid {
			t := sentAt.Time
			o.SentAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkSent transitions a pending reminder to sent and stamps sent_at.
// The status guard makes the due sweep idempotent: a reminder another
// sweep already sent is simply not matched and ok is false.
func (r *ReminderRepo) MarkSent(ctx context.Context, id uint64, sentAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET status = 'sent', sent_at = ? WHERE id = ? AND status = 'pending'`,
		sentAt.UTC().Format("2006-01-02 15:04:05"), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkFailedTx drives a reminder to failed inside the escalation
// transaction.
func (r *ReminderRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return r.markFailed(ctx, tx, id)
}

// MarkFailed is MarkFailedTx without a transaction, used by the due
// sweep when the delivery hand-off cannot be published.
func (r *ReminderRepo) MarkFailed(ctx context.Context, id uint64) error {
	return r.markFailed(ctx, r.db, id)
}

func (r *ReminderRepo) markFailed(ctx context.Context, ex execer, id uint64) error {
	_, err := ex.ExecContext(ctx, `UPDATE reminders SET status = 'failed' WHERE id = ?`, id)
	return err
}

// ResetRecentFailed flips failed reminders scheduled within the last
// maxAge back to pending so the due sweep can retry them.  Older
// failures stay failed; retrying a dose from two days ago helps nobody.
// Reminders whose adherence record is already resolved are left failed,
// otherwise escalated reminders would bounce back to pending and never
// age out.
func (r *ReminderRepo) ResetRecentFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders r SET r.status = 'pending'
         WHERE r.status = 'failed' AND r.scheduled_at >= UTC_TIMESTAMP() - INTERVAL ? SECOND
           AND NOT EXISTS (
               SELECT 1 FROM adherence_records a
               WHERE a.reminder_id = r.id AND a.status <> 'pending'
           )`,
		int64(maxAge.Seconds()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOldResolved purges sent and failed reminders created more than
// maxAge ago.  Pending reminders are never purged regardless of age.
func (r *ReminderRepo) DeleteOldResolved(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders
         WHERE status IN ('sent','failed') AND created_at < UTC_TIMESTAMP() - INTERVAL ? SECOND`,
		int64(maxAge.Seconds()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ScheduleOwnedBy reports whether the schedule exists and belongs to the
// user.  Sync uses this to reject reminder creation against foreign
// schedules with ErrForbidden rather than a bare validation error.
func (r *ReminderRepo) ScheduleOwnedBy(ctx context.Context, ex execer, scheduleID, userID uint64) (bool, error) {
	var ownerID uint64
	err := ex.QueryRowContext(ctx, `SELECT user_id FROM schedules WHERE id = ?`, scheduleID).Scan(&ownerID)
	if err != nil {
		return false, err
	}
	return ownerID == userID, nil
}

// UpdateTx persists mutable reminder fields inside a transaction, used
// by sync partial updates after the handler merged the payload.
func (r *ReminderRepo) UpdateTx(ctx context.Context, tx *sql.Tx, rem *model.Reminder) error {
	var sentAt interface{}
	if rem.SentAt != nil {
		sentAt = rem.SentAt.UTC().Format("2006-01-02 15:04:05")
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE reminders SET schedule_id = ?, medication_id = ?, scheduled_at = ?, sent_at = ?, status = ? WHERE id = ?`,
		rem.ScheduleID, rem.MedicationID, rem.ScheduledAt.UTC().Format("2006-01-02 15:04:05"), sentAt, rem.Status, rem.ID)
	return err
}

// DeleteByIDForUserTx removes a reminder owned (through its schedule) by
// the user.  sql.ErrNoRows when nothing matched.
func (r *ReminderRepo) DeleteByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) error {
	res, err := tx.ExecContext(ctx,
		`DELETE r FROM reminders r JOIN schedules s ON s.id = r.schedule_id WHERE r.id = ? AND s.user_id = ?`,
		id, userID)
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
