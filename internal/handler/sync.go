package handler

import (
	"database/sql"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/repository"
	"github.com/iliyamo/medication-adherence/internal/sync"
)

// SyncHandler serves the four batch sync endpoints.  Each accepts a JSON
// array of directives and applies them all-or-nothing: one failing item
// rolls the whole batch back and the response enumerates the failures.
type SyncHandler struct {
	Meds      *repository.MedicationRepo
	Scheds    *repository.ScheduleRepo
	Rems      *repository.ReminderRepo
	Adherence *repository.AdherenceRepo
}

func NewSyncHandler(m *repository.MedicationRepo, s *repository.ScheduleRepo, r *repository.ReminderRepo, a *repository.AdherenceRepo) *SyncHandler {
	if m == nil || s == nil || r == nil || a == nil {
		panic("nil repository passed to NewSyncHandler")
	}
	return &SyncHandler{Meds: m, Scheds: s, Rems: r, Adherence: a}
}

// Medications handles POST /v1/medications/sync.
func (h *SyncHandler) Medications(c echo.Context) error {
	return h.run(c, h.Meds.DB(), sync.NewMedicationSyncer(h.Meds))
}

// Schedules handles POST /v1/schedules/sync.
func (h *SyncHandler) Schedules(c echo.Context) error {
	return h.run(c, h.Scheds.DB(), sync.NewScheduleSyncer(h.Scheds))
}

// Reminders handles POST /v1/reminders/sync.
func (h *SyncHandler) Reminders(c echo.Context) error {
	return h.run(c, h.Rems.DB(), sync.NewReminderSyncer(h.Rems, h.Scheds))
}

// Adherence handles POST /v1/adherence/sync.
func (h *SyncHandler) AdherenceRecords(c echo.Context) error {
	return h.run(c, h.Adherence.DB(), sync.NewAdherenceSyncer(h.Adherence, h.Rems))
}

// run is the shared request flow: parse the array body, run the batch
// in one transaction, and shape the response.  Any failing item means
// nothing was persisted and the client gets a 400 with the per-item
// outcomes.
func (h *SyncHandler) run(c echo.Context, db *sql.DB, syncer sync.EntitySyncer) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	items, err := sync.ParseBatch(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	results, hasErrors, err := sync.Run(c.Request().Context(), db, userID, items, syncer)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync failed"})
	}
	if hasErrors {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "one or more items failed; no changes were applied",
			"details": results,
		})
	}
	return c.JSON(http.StatusOK, results)
}
