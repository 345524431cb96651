package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/medication-adherence/internal/queue"
)

var dueCols = []string{
	"id", "schedule_id", "medication_id", "scheduled_at", "sent_at", "status", "created_at",
	"user_id", "name", "dosage_amount", "dosage_unit",
}

func TestProcessDueRemindersClaimsAndPublishes(t *testing.T) {
	sw, mock := newSweeperMock(t)

	var events []queue.ReminderDueEvent
	sw.publish = func(ctx context.Context, ev queue.ReminderDueEvent) error {
		events = append(events, ev)
		return nil
	}

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 8, 2, 0, 0, time.UTC)

	mock.ExpectQuery(`JOIN medications m ON m.id = r.medication_id`).
		WithArgs(int64(300), int64(300)).
		WillReturnRows(sqlmock.NewRows(dueCols).
			AddRow(21, 3, 7, sched, nil, "pending", sched, 1, "Metformin", 500.0, "mg"))
	mock.ExpectExec(`UPDATE reminders SET status = 'sent'`).
		WithArgs("2025-06-02 08:02:00", uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, failed, err := sw.ProcessDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, failed)

	require.Len(t, events, 1)
	assert.Equal(t, uint64(21), events[0].ReminderID)
	assert.Equal(t, uint64(1), events[0].UserID)
	assert.Equal(t, "Metformin", events[0].MedicationName)
	assert.Equal(t, "2025-06-02T08:00:00Z", events[0].ScheduledAt)
	assert.Equal(t, "2025-06-02T08:02:00Z", events[0].SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A reminder another sweep already claimed is skipped without a publish.
func TestProcessDueRemindersSkipsAlreadyClaimed(t *testing.T) {
	sw, mock := newSweeperMock(t)

	published := 0
	sw.publish = func(ctx context.Context, ev queue.ReminderDueEvent) error {
		published++
		return nil
	}

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 8, 2, 0, 0, time.UTC)

	mock.ExpectQuery(`JOIN medications m ON m.id = r.medication_id`).
		WithArgs(int64(300), int64(300)).
		WillReturnRows(sqlmock.NewRows(dueCols).
			AddRow(21, 3, 7, sched, nil, "pending", sched, 1, "Metformin", 500.0, "mg"))
	mock.ExpectExec(`UPDATE reminders SET status = 'sent'`).
		WithArgs("2025-06-02 08:02:00", uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sent, failed, err := sw.ProcessDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, published)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// When the event publish fails after the claim the reminder is driven
// to failed so the retry sweep can pick it up.
func TestProcessDueRemindersMarksFailedOnPublishError(t *testing.T) {
	sw, mock := newSweeperMock(t)

	sw.publish = func(ctx context.Context, ev queue.ReminderDueEvent) error {
		return errors.New("broker unavailable")
	}

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 8, 2, 0, 0, time.UTC)

	mock.ExpectQuery(`JOIN medications m ON m.id = r.medication_id`).
		WithArgs(int64(300), int64(300)).
		WillReturnRows(sqlmock.NewRows(dueCols).
			AddRow(21, 3, 7, sched, nil, "pending", sched, 1, "Metformin", 500.0, "mg"))
	mock.ExpectExec(`UPDATE reminders SET status = 'sent'`).
		WithArgs("2025-06-02 08:02:00", uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reminders SET status = 'failed'`).
		WithArgs(uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, failed, err := sw.ProcessDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryFailedUsesRetryWindow(t *testing.T) {
	sw, mock := newSweeperMock(t)

	mock.ExpectExec(`UPDATE reminders r SET r.status = 'pending'`).
		WithArgs(int64(86400)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := sw.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupOldRemindersUsesRetentionAge(t *testing.T) {
	sw, mock := newSweeperMock(t)

	mock.ExpectExec(`DELETE FROM reminders`).
		WithArgs(int64(2592000)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := sw.CleanupOldReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
