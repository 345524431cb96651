package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/task"
)

// TaskHandler exposes the background sweeps as on-demand trigger
// endpoints so an external scheduler (or an operator) can run them
// between ticks of the built-in runner.
type TaskHandler struct {
	Sweeper *task.Sweeper
}

func NewTaskHandler(sweeper *task.Sweeper) *TaskHandler {
	if sweeper == nil {
		panic("nil sweeper passed to NewTaskHandler")
	}
	return &TaskHandler{Sweeper: sweeper}
}

// ExpireSchedules handles POST /v1/tasks/expire-schedules.
func (h *TaskHandler) ExpireSchedules(c echo.Context) error {
	n, err := h.Sweeper.DeactivateExpiredSchedules(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"deactivated": n})
}

// GenerateReminders handles POST /v1/tasks/generate-reminders.
func (h *TaskHandler) GenerateReminders(c echo.Context) error {
	n, err := h.Sweeper.GenerateAll(c.Request().Context(), time.Now().UTC(), task.FirstGenHorizonDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"created": n})
}

// RegenerateReminders handles POST /v1/tasks/regenerate-reminders.
func (h *TaskHandler) RegenerateReminders(c echo.Context) error {
	n, err := h.Sweeper.RegenerateAll(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"created": n})
}

// ProcessDue handles POST /v1/tasks/process-due.
func (h *TaskHandler) ProcessDue(c echo.Context) error {
	sent, failed, err := h.Sweeper.ProcessDueReminders(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sent": sent, "failed": failed})
}

// RetryFailed handles POST /v1/tasks/retry-failed.
func (h *TaskHandler) RetryFailed(c echo.Context) error {
	n, err := h.Sweeper.RetryFailed(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reset": n})
}

// CleanupReminders handles POST /v1/tasks/cleanup-reminders.
func (h *TaskHandler) CleanupReminders(c echo.Context) error {
	n, err := h.Sweeper.CleanupOldReminders(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"purged": n})
}

// AutoMarkMissed handles POST /v1/tasks/auto-mark-missed.
func (h *TaskHandler) AutoMarkMissed(c echo.Context) error {
	n, err := h.Sweeper.AutoMarkMissed(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"escalated": n})
}
