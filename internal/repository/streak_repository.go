package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/medication-adherence/internal/model"
)

// StreakRepo provides data access to the adherence_streaks table.  One
// row exists per (user, medication), enforced by a unique key, and every
// counter mutation happens under a row lock inside the same transaction
// as the adherence record transition that caused it.  The lock is the
// serialization point the aggregate needs: two overlapping transitions
// for the same pair queue on the SELECT ... FOR UPDATE and apply their
// increments one after the other, so no update is lost.
type StreakRepo struct {
	db *sql.DB
}

// NewStreakRepo returns a new StreakRepo bound to the given database.
func NewStreakRepo(db *sql.DB) *StreakRepo { return &StreakRepo{db: db} }

const streakColumns = `id, user_id, medication_id, current_taken_streak, current_missed_streak,
       longest_taken_streak, longest_missed_streak, total_taken, total_missed, total_scheduled,
       last_updated, created_at`

func scanStreak(row interface{ Scan(...interface{}) error }) (*model.AdherenceStreak, error) {
	var s model.AdherenceStreak
	err := row.Scan(
		&s.ID, &s.UserID, &s.MedicationID, &s.CurrentTakenStreak, &s.CurrentMissedStreak,
		&s.LongestTakenStreak, &s.LongestMissedStreak, &s.TotalTaken, &s.TotalMissed, &s.TotalScheduled,
		&s.LastUpdated, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOrCreateForUpdateTx returns the streak row for (user, medication)
// locked FOR UPDATE, inserting a zeroed row first when none exists.  A
// duplicate-key race with a concurrent creator is resolved by re-reading
// under the lock.
func (r *StreakRepo) GetOrCreateForUpdateTx(ctx context.Context, tx *sql.Tx, userID, medicationID uint64) (*model.AdherenceStreak, error) {
	q := `SELECT ` + streakColumns + ` FROM adherence_streaks
          WHERE user_id = ? AND medication_id = ? FOR UPDATE`
	s, err := scanStreak(tx.QueryRowContext(ctx, q, userID, medicationID))
	if err == nil {
		return s, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO adherence_streaks (user_id, medication_id) VALUES (?, ?)`,
		userID, medicationID)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "1062") {
		return nil, err
	}
	return scanStreak(tx.QueryRowContext(ctx, q, userID, medicationID))
}

// SaveTx writes the counter fields back.  The row is expected to be held
// under the FOR UPDATE lock taken by GetOrCreateForUpdateTx.
func (r *StreakRepo) SaveTx(ctx context.Context, tx *sql.Tx, s *model.AdherenceStreak) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE adherence_streaks
         SET current_taken_streak = ?, current_missed_streak = ?,
             longest_taken_streak = ?, longest_missed_streak = ?,
             total_taken = ?, total_missed = ?, total_scheduled = ?
         WHERE id = ?`,
		s.CurrentTakenStreak, s.CurrentMissedStreak,
		s.LongestTakenStreak, s.LongestMissedStreak,
		s.TotalTaken, s.TotalMissed, s.TotalScheduled, s.ID)
	return err
}

// ListByUser returns all streak rows for the user ordered by medication.
func (r *StreakRepo) ListByUser(ctx context.Context, userID uint64) ([]model.AdherenceStreak, error) {
	q := `SELECT ` + streakColumns + ` FROM adherence_streaks WHERE user_id = ? ORDER BY medication_id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AdherenceStreak, 0)
	for rows.Next() {
		s, err := scanStreak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetByMedication returns the streak for one (user, medication) pair, or
// sql.ErrNoRows when no doses have resolved yet.
func (r *StreakRepo) GetByMedication(ctx context.Context, userID, medicationID uint64) (*model.AdherenceStreak, error) {
	q := `SELECT ` + streakColumns + ` FROM adherence_streaks WHERE user_id = ? AND medication_id = ?`
	return scanStreak(r.db.QueryRowContext(ctx, q, userID, medicationID))
}
