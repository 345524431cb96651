package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/handler"
	"github.com/iliyamo/medication-adherence/internal/middleware"
)

// APIHandlers bundles the domain handlers registered under /v1.
type APIHandlers struct {
	Medications *handler.MedicationHandler
	Schedules   *handler.ScheduleHandler
	Reminders   *handler.ReminderHandler
	Adherence   *handler.AdherenceHandler
	Sync        *handler.SyncHandler
	Tasks       *handler.TaskHandler
}

// RegisterAPI registers the owner-scoped domain endpoints under /v1.
// All routes require a valid JWT.  cacheMW, when non-nil, is applied to
// the read-heavy summary and report endpoints.
func RegisterAPI(e *echo.Echo, h APIHandlers, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// ---- Medications ----
	g.POST("/medications", h.Medications.Create)
	g.GET("/medications", h.Medications.List)
	g.GET("/medications/:id", h.Medications.Get)
	g.PUT("/medications/:id", h.Medications.Update)
	g.PATCH("/medications/:id", h.Medications.Update)
	g.DELETE("/medications/:id", h.Medications.Delete)
	g.POST("/medications/sync", h.Sync.Medications)

	// ---- Schedules ----
	g.POST("/schedules", h.Schedules.Create)
	g.GET("/schedules", h.Schedules.List)
	g.GET("/schedules/:id", h.Schedules.Get)
	g.PUT("/schedules/:id", h.Schedules.Update)
	g.PATCH("/schedules/:id", h.Schedules.Update)
	g.DELETE("/schedules/:id", h.Schedules.Delete)
	g.POST("/schedules/:id/regenerate", h.Schedules.Regenerate)
	g.POST("/schedules/sync", h.Sync.Schedules)

	// ---- Reminders ----
	g.GET("/reminders", h.Reminders.List)
	g.GET("/reminders/:id", h.Reminders.Get)
	g.POST("/reminders/sync", h.Sync.Reminders)

	// ---- Adherence ----
	g.POST("/adherence/respond", h.Adherence.Respond)
	g.GET("/adherence/records", h.Adherence.Records)
	g.GET("/adherence/records/pending", h.Adherence.Pending)
	g.GET("/adherence/records/overdue", h.Adherence.Overdue)
	g.GET("/adherence/streaks", h.Adherence.StreakList)
	g.POST("/adherence/sync", h.Sync.AdherenceRecords)
	if cacheMW != nil {
		g.GET("/adherence/summary", h.Adherence.Summary, cacheMW)
		g.GET("/adherence/report", h.Adherence.Report, cacheMW)
	} else {
		g.GET("/adherence/summary", h.Adherence.Summary)
		g.GET("/adherence/report", h.Adherence.Report)
	}

	// ---- Sweep triggers ----
	t := g.Group("/tasks")
	t.POST("/expire-schedules", h.Tasks.ExpireSchedules)
	t.POST("/generate-reminders", h.Tasks.GenerateReminders)
	t.POST("/regenerate-reminders", h.Tasks.RegenerateReminders)
	t.POST("/process-due", h.Tasks.ProcessDue)
	t.POST("/retry-failed", h.Tasks.RetryFailed)
	t.POST("/cleanup-reminders", h.Tasks.CleanupReminders)
	t.POST("/auto-mark-missed", h.Tasks.AutoMarkMissed)
}
