package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/medication-adherence/internal/repository"
)

func newAdherenceMock(t *testing.T) (*AdherenceHandler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h := NewAdherenceHandler(
		repository.NewAdherenceRepo(db),
		repository.NewReminderRepo(db),
		repository.NewStreakRepo(db),
		repository.NewMedicationRepo(db),
	)
	return h, mock
}

func respondContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/adherence/respond", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(1))
	return c, rec
}

// A record resolved between the row read and the guarded update rolls
// the response back and reports it as already recorded.
func TestRespondAlreadyRecordedRace(t *testing.T) {
	h, mock := newAdherenceMock(t)

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	remCols := []string{"id", "schedule_id", "medication_id", "scheduled_at", "sent_at", "status", "created_at"}
	recCols := []string{
		"id", "user_id", "medication_id", "reminder_id", "status", "scheduled_time",
		"actual_time", "response_time", "is_late", "minutes_late", "notes", "created_at", "updated_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM reminders r`).
		WithArgs(uint64(9), uint64(1)).
		WillReturnRows(sqlmock.NewRows(remCols).
			AddRow(9, 3, 7, sched, nil, "sent", sched))
	mock.ExpectQuery(`FROM adherence_records`).
		WithArgs(uint64(1), uint64(9)).
		WillReturnRows(sqlmock.NewRows(recCols).
			AddRow(5, 1, 7, 9, "pending", sched, nil, nil, false, nil, "", sched, sched))
	mock.ExpectExec(`UPDATE adherence_records`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	c, rec := respondContext(t, `{"reminder_id":9,"status":"taken"}`)
	require.NoError(t, h.Respond(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already recorded")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A record already resolved at read time gets the same answer without
// any write being attempted.
func TestRespondRejectsResolvedRecord(t *testing.T) {
	h, mock := newAdherenceMock(t)

	sched := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	resp := time.Date(2025, 6, 2, 8, 10, 0, 0, time.UTC)
	remCols := []string{"id", "schedule_id", "medication_id", "scheduled_at", "sent_at", "status", "created_at"}
	recCols := []string{
		"id", "user_id", "medication_id", "reminder_id", "status", "scheduled_time",
		"actual_time", "response_time", "is_late", "minutes_late", "notes", "created_at", "updated_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM reminders r`).
		WithArgs(uint64(9), uint64(1)).
		WillReturnRows(sqlmock.NewRows(remCols).
			AddRow(9, 3, 7, sched, nil, "sent", sched))
	mock.ExpectQuery(`FROM adherence_records`).
		WithArgs(uint64(1), uint64(9)).
		WillReturnRows(sqlmock.NewRows(recCols).
			AddRow(5, 1, 7, 9, "taken", sched, resp, resp, false, nil, "", sched, resp))
	mock.ExpectRollback()

	c, rec := respondContext(t, `{"reminder_id":9,"status":"missed"}`)
	require.NoError(t, h.Respond(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already recorded")
	assert.NoError(t, mock.ExpectationsWereMet())
}
