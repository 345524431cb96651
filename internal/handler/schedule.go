package handler

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/repository"
	"github.com/iliyamo/medication-adherence/internal/task"
)

// ScheduleHandler serves the owner-scoped schedule CRUD endpoints.
// Create and update re-plan the schedule's reminders so edits take
// effect without waiting for the next sweep.
type ScheduleHandler struct {
	Schedules *repository.ScheduleRepo
	Sweeper   *task.Sweeper
}

func NewScheduleHandler(schedules *repository.ScheduleRepo, sweeper *task.Sweeper) *ScheduleHandler {
	if schedules == nil || sweeper == nil {
		panic("nil dependency passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Schedules: schedules, Sweeper: sweeper}
}

type scheduleReq struct {
	MedicationID *uint64 `json:"medication_id"`
	TimeOfDay    *string `json:"time_of_day"`
	DaysOfWeek   *string `json:"days_of_week"`
	Timezone     *string `json:"timezone"`
	Active       *bool   `json:"active"`
}

func (req *scheduleReq) apply(s *model.Schedule) {
	if req.MedicationID != nil {
		s.MedicationID = *req.MedicationID
	}
	if req.TimeOfDay != nil {
		s.TimeOfDay = strings.TrimSpace(*req.TimeOfDay)
	}
	if req.DaysOfWeek != nil {
		s.DaysOfWeek = strings.TrimSpace(*req.DaysOfWeek)
	}
	if req.Timezone != nil {
		s.Timezone = strings.TrimSpace(*req.Timezone)
	}
	if req.Active != nil {
		s.Active = *req.Active
	}
}

// Create handles POST /v1/schedules.  Reminders for the first two weeks
// are planned immediately; generation failures are logged, the next
// sweep catches up.
func (h *ScheduleHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req scheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sch := &model.Schedule{
		UserID:     userID,
		DaysOfWeek: model.AllDays,
		Timezone:   "UTC",
		Active:     true,
	}
	req.apply(sch)
	if errs := sch.Validate(); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": errs})
	}
	if err := h.Schedules.Create(c.Request().Context(), sch); err != nil {
		return repoError(c, err, "medication not found")
	}
	if sch.Active {
		if _, err := h.Sweeper.GenerateForSchedule(c.Request().Context(), sch, time.Now().UTC(), task.FirstGenHorizonDays); err != nil {
			log.Printf("schedule %d: initial reminder generation failed: %v", sch.ID, err)
		}
	}
	return c.JSON(http.StatusCreated, sch)
}

// List handles GET /v1/schedules.
func (h *ScheduleHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Schedules.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/schedules/:id.
func (h *ScheduleHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	sch, err := h.Schedules.GetByIDForUser(c.Request().Context(), id, userID)
	if err != nil {
		return repoError(c, err, "schedule not found")
	}
	return c.JSON(http.StatusOK, sch)
}

// Update handles PATCH /v1/schedules/:id.  Future pending reminders are
// re-planned under the edited rule.
func (h *ScheduleHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req scheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sch, err := h.Schedules.GetByIDForUser(c.Request().Context(), id, userID)
	if err != nil {
		return repoError(c, err, "schedule not found")
	}
	req.apply(sch)
	if errs := sch.Validate(); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": errs})
	}
	if err := h.Schedules.Update(c.Request().Context(), sch); err != nil {
		return repoError(c, err, "schedule not found")
	}
	if sch.Active {
		if _, err := h.Sweeper.RegenerateForSchedule(c.Request().Context(), sch, time.Now().UTC()); err != nil {
			log.Printf("schedule %d: reminder regeneration failed: %v", sch.ID, err)
		}
	}
	return c.JSON(http.StatusOK, sch)
}

// Delete handles DELETE /v1/schedules/:id.
func (h *ScheduleHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Schedules.Delete(c.Request().Context(), id, userID); err != nil {
		return repoError(c, err, "schedule not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// Regenerate handles POST /v1/schedules/:id/regenerate and re-plans the
// schedule's future reminders on demand.
func (h *ScheduleHandler) Regenerate(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	sch, err := h.Schedules.GetByIDForUser(c.Request().Context(), id, userID)
	if err != nil {
		return repoError(c, err, "schedule not found")
	}
	if !sch.Active {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule is not active"})
	}
	n, err := h.Sweeper.RegenerateForSchedule(c.Request().Context(), sch, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "regeneration failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"created": n})
}
