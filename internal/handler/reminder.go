package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/repository"
)

// ReminderHandler serves read-only reminder endpoints.  Reminders are
// system-generated; clients only mutate them through the sync surface.
type ReminderHandler struct {
	Reminders *repository.ReminderRepo
}

func NewReminderHandler(reminders *repository.ReminderRepo) *ReminderHandler {
	if reminders == nil {
		panic("nil repository passed to NewReminderHandler")
	}
	return &ReminderHandler{Reminders: reminders}
}

// List handles GET /v1/reminders.  ?upcoming=true restricts to pending
// reminders scheduled in the future.
func (h *ReminderHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	upcoming := c.QueryParam("upcoming") == "true"
	items, err := h.Reminders.ListByUser(c.Request().Context(), userID, upcoming)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/reminders/:id.
func (h *ReminderHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	rem, err := h.Reminders.GetByIDForUser(c.Request().Context(), id, userID)
	if err != nil {
		return repoError(c, err, "reminder not found")
	}
	return c.JSON(http.StatusOK, rem)
}
