package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/medication-adherence/internal/model"
)

var adherenceCols = []string{
	"id", "user_id", "medication_id", "reminder_id", "status", "scheduled_time",
	"actual_time", "response_time", "is_late", "minutes_late", "notes", "created_at", "updated_at",
}

func TestGetOrCreateForReminderTxExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAdherenceRepo(db)

	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(1), uint64(9)).
		WillReturnRows(sqlmock.NewRows(adherenceCols).
			AddRow(5, 1, 7, 9, "pending", at, nil, nil, false, nil, "", at, at))

	tx, err := db.Begin()
	require.NoError(t, err)

	rec, err := repo.GetOrCreateForReminderTx(context.Background(), tx, 1, &model.Reminder{ID: 9, MedicationID: 7, ScheduledAt: at})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.ID)
	assert.Equal(t, model.AdherencePending, rec.Status)
	assert.Nil(t, rec.ActualTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateForReminderTxCreates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAdherenceRepo(db)

	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(1), uint64(9)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO adherence_records`).
		WithArgs(uint64(1), uint64(7), uint64(9), "2025-06-02 08:00:00").
		WillReturnResult(sqlmock.NewResult(5, 1))

	tx, err := db.Begin()
	require.NoError(t, err)

	rec, err := repo.GetOrCreateForReminderTx(context.Background(), tx, 1, &model.Reminder{ID: 9, MedicationID: 7, ScheduledAt: at})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.ID)
	assert.Equal(t, model.AdherencePending, rec.Status)
	assert.Equal(t, at, rec.ScheduledTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveTxAlreadyRecorded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAdherenceRepo(db)

	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	actual := at.Add(10 * time.Minute)
	mins := 10

	mock.ExpectBegin()
	// Record already resolved: the pending guard matches nothing.
	mock.ExpectExec(`UPDATE adherence_records`).
		WithArgs("taken", "2025-06-02 08:10:00", "2025-06-02 08:10:00", false, 10, "", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	require.NoError(t, err)

	rec := &model.AdherenceRecord{
		ID: 5, Status: model.AdherenceTaken, ScheduledTime: at,
		ActualTime: &actual, ResponseTime: &actual, MinutesLate: &mins,
	}
	err = repo.ResolveTx(context.Background(), tx, rec)
	assert.ErrorIs(t, err, ErrAlreadyRecorded)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPendingByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAdherenceRepo(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(int64(3600), uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "overdue"}).AddRow(4, 2))

	pending, overdue, err := repo.CountPendingByUser(context.Background(), 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, pending)
	assert.Equal(t, 2, overdue)

	assert.NoError(t, mock.ExpectationsWereMet())
}
