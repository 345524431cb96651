package task

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/medication-adherence/internal/repository"
)

func newSweeperMock(t *testing.T) (*Sweeper, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewSweeper(
		repository.NewScheduleRepo(db),
		repository.NewReminderRepo(db),
		repository.NewAdherenceRepo(db),
		repository.NewStreakRepo(db),
	)
	return s, mock
}

var overdueCols = []string{
	"id", "schedule_id", "medication_id", "scheduled_at", "sent_at", "status", "created_at", "user_id",
}

var recordCols = []string{
	"id", "user_id", "medication_id", "reminder_id", "status", "scheduled_time",
	"actual_time", "response_time", "is_late", "minutes_late", "notes", "created_at", "updated_at",
}

var streakCols = []string{
	"id", "user_id", "medication_id", "current_taken_streak", "current_missed_streak",
	"longest_taken_streak", "longest_missed_streak", "total_taken", "total_missed", "total_scheduled",
	"last_updated", "created_at",
}

// A fully overdue reminder is resolved in a single transaction: the
// record goes to missed with the explanatory note, the streak absorbs
// the miss, and the reminder is driven to failed.
func TestAutoMarkMissedEscalatesInOneTransaction(t *testing.T) {
	sw, mock := newSweeperMock(t)

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE r.status IN \('pending','sent'\)`).
		WithArgs(int64(3600)).
		WillReturnRows(sqlmock.NewRows(overdueCols).
			AddRow(11, 3, 7, sched, nil, "pending", sched, 1))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM adherence_records`).
		WithArgs(uint64(1), uint64(11)).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow(5, 1, 7, 11, "pending", sched, nil, nil, false, nil, "", sched, sched))
	mock.ExpectExec(`UPDATE adherence_records`).
		WithArgs("missed", nil, "2025-06-02 10:00:00", false, nil,
			"Automatically marked as missed - no response within 1 hour", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM adherence_streaks`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows(streakCols).
			AddRow(31, 1, 7, 2, 0, 4, 1, 6, 1, 7, sched, sched))
	mock.ExpectExec(`UPDATE adherence_streaks`).
		WithArgs(0, 1, 4, 1, 6, 2, 8, uint64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reminders SET status = 'failed'`).
		WithArgs(uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := sw.AutoMarkMissed(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// When no record exists yet the sweep materializes a pending one inside
// the same transaction before resolving it.
func TestAutoMarkMissedCreatesMissingRecord(t *testing.T) {
	sw, mock := newSweeperMock(t)

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE r.status IN \('pending','sent'\)`).
		WithArgs(int64(3600)).
		WillReturnRows(sqlmock.NewRows(overdueCols).
			AddRow(11, 3, 7, sched, nil, "pending", sched, 1))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM adherence_records`).
		WithArgs(uint64(1), uint64(11)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO adherence_records`).
		WithArgs(uint64(1), uint64(7), uint64(11), "2025-06-02 08:00:00").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(`UPDATE adherence_records`).
		WithArgs("missed", nil, "2025-06-02 10:00:00", false, nil,
			"Automatically marked as missed - no response within 1 hour", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM adherence_streaks`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows(streakCols).
			AddRow(31, 1, 7, 0, 0, 0, 0, 0, 0, 0, sched, sched))
	mock.ExpectExec(`UPDATE adherence_streaks`).
		WithArgs(0, 1, 0, 1, 0, 1, 1, uint64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reminders SET status = 'failed'`).
		WithArgs(uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := sw.AutoMarkMissed(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A record resolved by a user response between the listing and the row
// lock is left untouched, and so is its reminder.  The transaction
// rolls back without writing anything and the reminder is not counted.
func TestAutoMarkMissedSkipsConcurrentlyResolvedRecord(t *testing.T) {
	sw, mock := newSweeperMock(t)

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	resp := time.Date(2025, 6, 2, 8, 40, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE r.status IN \('pending','sent'\)`).
		WithArgs(int64(3600)).
		WillReturnRows(sqlmock.NewRows(overdueCols).
			AddRow(11, 3, 7, sched, nil, "sent", sched, 1))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM adherence_records`).
		WithArgs(uint64(1), uint64(11)).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow(5, 1, 7, 11, "taken", sched, resp, resp, true, 40, "", sched, resp))
	mock.ExpectRollback()

	n, err := sw.AutoMarkMissed(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A failing escalation rolls back and does not stop the rest of the
// backlog from being processed.
func TestAutoMarkMissedContinuesPastFailedItem(t *testing.T) {
	sw, mock := newSweeperMock(t)

	first := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	second := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE r.status IN \('pending','sent'\)`).
		WithArgs(int64(3600)).
		WillReturnRows(sqlmock.NewRows(overdueCols).
			AddRow(11, 3, 7, first, nil, "pending", first, 1).
			AddRow(12, 3, 7, second, nil, "pending", second, 1))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM adherence_records`).
		WithArgs(uint64(1), uint64(11)).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM adherence_records`).
		WithArgs(uint64(1), uint64(12)).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow(6, 1, 7, 12, "pending", second, nil, nil, false, nil, "", second, second))
	mock.ExpectExec(`UPDATE adherence_records`).
		WithArgs("missed", nil, "2025-06-02 11:00:00", false, nil,
			"Automatically marked as missed - no response within 1 hour", uint64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM adherence_streaks`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows(streakCols).
			AddRow(31, 1, 7, 0, 1, 2, 1, 2, 1, 3, second, second))
	mock.ExpectExec(`UPDATE adherence_streaks`).
		WithArgs(0, 2, 2, 2, 2, 2, 4, uint64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reminders SET status = 'failed'`).
		WithArgs(uint64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := sw.AutoMarkMissed(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
