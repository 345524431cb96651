package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/model"
	"github.com/iliyamo/medication-adherence/internal/repository"
)

// MedicationHandler serves the owner-scoped medication CRUD endpoints.
type MedicationHandler struct {
	Meds *repository.MedicationRepo
}

func NewMedicationHandler(meds *repository.MedicationRepo) *MedicationHandler {
	if meds == nil {
		panic("nil repository passed to NewMedicationHandler")
	}
	return &MedicationHandler{Meds: meds}
}

// medicationReq is the bind target for create and update.  Pointer
// fields distinguish "absent" from "zero" so PATCH merges correctly.
type medicationReq struct {
	Name         *string  `json:"name"`
	Directions   *string  `json:"directions"`
	SideEffects  *string  `json:"side_effects"`
	Purpose      *string  `json:"purpose"`
	Warnings     *string  `json:"warnings"`
	Notes        *string  `json:"notes"`
	DosageAmount *float64 `json:"dosage_amount"`
	DosageUnit   *string  `json:"dosage_unit"`
	Frequency    *string  `json:"frequency"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
}

// parseDate accepts the YYYY-MM-DD wire format for date-only fields.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}

// apply merges the request into the medication, collecting date parse
// failures into the field error map.
func (req *medicationReq) apply(m *model.Medication) map[string]string {
	errs := map[string]string{}
	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.Directions != nil {
		m.Directions = *req.Directions
	}
	if req.SideEffects != nil {
		m.SideEffects = *req.SideEffects
	}
	if req.Purpose != nil {
		m.Purpose = *req.Purpose
	}
	if req.Warnings != nil {
		m.Warnings = *req.Warnings
	}
	if req.Notes != nil {
		m.Notes = *req.Notes
	}
	if req.DosageAmount != nil {
		m.DosageAmount = *req.DosageAmount
	}
	if req.DosageUnit != nil {
		m.DosageUnit = *req.DosageUnit
	}
	if req.Frequency != nil {
		m.Frequency = *req.Frequency
	}
	if req.StartDate != nil {
		t, err := parseDate(*req.StartDate)
		if err != nil {
			errs["start_date"] = "start date must be YYYY-MM-DD"
		} else {
			m.StartDate = t
		}
	}
	if req.EndDate != nil {
		if strings.TrimSpace(*req.EndDate) == "" {
			// Explicit empty string clears the end date.
			m.EndDate = nil
		} else {
			t, err := parseDate(*req.EndDate)
			if err != nil {
				errs["end_date"] = "end date must be YYYY-MM-DD"
			} else {
				m.EndDate = &t
			}
		}
	}
	return errs
}

// Create handles POST /v1/medications.
func (h *MedicationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req medicationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	med := &model.Medication{
		UserID:       userID,
		DosageAmount: 1,
		DosageUnit:   model.UnitPills,
		StartDate:    time.Now().UTC(),
	}
	errs := req.apply(med)
	for k, v := range med.Validate() {
		errs[k] = v
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": errs})
	}
	if err := h.Meds.Create(c.Request().Context(), med); err != nil {
		return repoError(c, err, "medication not found")
	}
	return c.JSON(http.StatusCreated, med)
}

// List handles GET /v1/medications.
func (h *MedicationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Meds.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/medications/:id.
func (h *MedicationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	med, err := h.Meds.GetByIDForUser(c.Request().Context(), id, userID)
	if err != nil {
		return repoError(c, err, "medication not found")
	}
	return c.JSON(http.StatusOK, med)
}

// Update handles PATCH /v1/medications/:id.
func (h *MedicationHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req medicationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	med, err := h.Meds.GetByIDForUser(c.Request().Context(), id, userID)
	if err != nil {
		return repoError(c, err, "medication not found")
	}
	errs := req.apply(med)
	for k, v := range med.Validate() {
		errs[k] = v
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": errs})
	}
	if err := h.Meds.Update(c.Request().Context(), med); err != nil {
		return repoError(c, err, "medication not found")
	}
	return c.JSON(http.StatusOK, med)
}

// Delete handles DELETE /v1/medications/:id.  Schedules and downstream
// reminders for the medication go with it via foreign keys.
func (h *MedicationHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Meds.Delete(c.Request().Context(), id, userID); err != nil {
		return repoError(c, err, "medication not found")
	}
	return c.NoContent(http.StatusNoContent)
}
