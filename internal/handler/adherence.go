package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/report"
	"github.com/iliyamo/medication-adherence/internal/repository"
)

// overdueResponseCutoff is how far past its dose time a pending record
// counts as overdue on the summary and overdue-list endpoints.  Matches
// the escalation sweep's cutoff.
const overdueResponseCutoff = time.Hour

// AdherenceHandler serves the adherence surface: responding to
// reminders, record listings, streaks, the summary and the analytics
// report.
type AdherenceHandler struct {
	Adherence *repository.AdherenceRepo
	Reminders *repository.ReminderRepo
	Streaks   *repository.StreakRepo
	Meds      *repository.MedicationRepo
}

func NewAdherenceHandler(a *repository.AdherenceRepo, r *repository.ReminderRepo, s *repository.StreakRepo, m *repository.MedicationRepo) *AdherenceHandler {
	if a == nil || r == nil || s == nil || m == nil {
		panic("nil repository passed to NewAdherenceHandler")
	}
	return &AdherenceHandler{Adherence: a, Reminders: r, Streaks: s, Meds: m}
}

type respondReq struct {
	ReminderID uint64 `json:"reminder_id"`
	Status     string `json:"status"`
	ActualTime string `json:"actual_time"`
	Notes      string `json:"notes"`
}

// parseInstant accepts RFC3339 or a bare "2006-01-02T15:04:05" local
// timestamp, normalised to UTC.
func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Respond handles POST /v1/adherence/respond.  The record transition
// and the streak update commit together or not at all.
func (h *AdherenceHandler) Respond(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req respondReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	errs := map[string]string{}
	if req.ReminderID == 0 {
		errs["reminder_id"] = "reminder_id is required"
	}
	if !model.ValidResponseStatus(req.Status) {
		errs["status"] = "status must be one of taken, missed, skipped"
	}
	if len(req.Notes) > 500 {
		errs["notes"] = "notes must be at most 500 characters"
	}
	var actual time.Time
	if req.ActualTime != "" {
		actual, err = parseInstant(req.ActualTime)
		if err != nil {
			errs["actual_time"] = "actual_time must be an ISO 8601 timestamp"
		}
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": errs})
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()

	tx, err := h.Adherence.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rem, err := h.Reminders.GetByIDForUserTx(ctx, tx, req.ReminderID, userID)
	if err != nil {
		return repoError(c, err, "reminder not found or does not belong to user")
	}
	rec, err := h.Adherence.GetOrCreateForReminderTx(ctx, tx, userID, rem)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	if rec.Status != model.AdherencePending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "response already recorded for this reminder"})
	}

	rec.Status = req.Status
	resp := now
	rec.ResponseTime = &resp
	rec.Notes = req.Notes
	if req.Status == model.AdherenceTaken {
		at := now
		if !actual.IsZero() {
			at = actual
		}
		rec.ActualTime = &at
		rec.ComputeLateness()
	}
	if err := h.Adherence.ResolveTx(ctx, tx, rec); err != nil {
		if errors.Is(err, repository.ErrAlreadyRecorded) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "response already recorded for this reminder"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}

	streak, err := h.Streaks.GetOrCreateForUpdateTx(ctx, tx, userID, rem.MedicationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	streak.Update(req.Status)
	if err := h.Streaks.SaveTx(ctx, tx, streak); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{
		"message":              "adherence recorded successfully",
		"adherence_record":     rec,
		"streak":               streak,
		"adherence_percentage": streak.AdherencePercentage(),
	})
}

// Records handles GET /v1/adherence/records?days=N (default 30).
func (h *AdherenceHandler) Records(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	days := windowDays(c.QueryParam("days"))
	now := time.Now().UTC()
	items, err := h.Adherence.ListByUserWindow(c.Request().Context(), userID, now.AddDate(0, 0, -days), now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Pending handles GET /v1/adherence/records/pending.
func (h *AdherenceHandler) Pending(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Adherence.ListPendingByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Overdue handles GET /v1/adherence/records/overdue: pending records more than
// an hour past their dose time.
func (h *AdherenceHandler) Overdue(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Adherence.ListOverdueByUser(c.Request().Context(), userID, overdueResponseCutoff)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Streaks handles GET /v1/adherence/streaks.
func (h *AdherenceHandler) StreakList(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Streaks.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Summary handles GET /v1/adherence/summary: aggregate counters, the
// last week of records and every streak for the caller.
func (h *AdherenceHandler) Summary(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	now := time.Now().UTC()

	streaks, err := h.Streaks.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	agg := model.AdherenceStreak{}
	for i := range streaks {
		agg.TotalTaken += streaks[i].TotalTaken
		agg.TotalScheduled += streaks[i].TotalScheduled
	}
	pending, overdue, err := h.Adherence.CountPendingByUser(ctx, userID, overdueResponseCutoff)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	recent, err := h.Adherence.ListRecent(ctx, userID, now.AddDate(0, 0, -7), 20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_medications":            len(streaks),
		"pending_responses":            pending,
		"overdue_responses":            overdue,
		"overall_adherence_percentage": agg.AdherencePercentage(),
		"recent_records":               recent,
		"streaks":                      streaks,
	})
}

// Report handles GET /v1/adherence/report?days=N (default 30).
func (h *AdherenceHandler) Report(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	days := windowDays(c.QueryParam("days"))
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -days)

	records, err := h.Adherence.ListByUserWindow(ctx, userID, start, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	meds, err := h.Meds.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	medNames := make(map[uint64]string, len(meds))
	for i := range meds {
		medNames[meds[i].ID] = meds[i].Name
	}
	streaks, err := h.Streaks.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	byMed := make(map[uint64]model.AdherenceStreak, len(streaks))
	for i := range streaks {
		byMed[streaks[i].MedicationID] = streaks[i]
	}

	return c.JSON(http.StatusOK, report.Build(records, medNames, byMed, start, now, now, days))
}

// windowDays parses the ?days query parameter; anything unparseable or
// non-positive falls back to 30.
func windowDays(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 30
	}
	return n
}
