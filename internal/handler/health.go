package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint load balancers and monitoring probe.
// It deliberately touches no dependency: a database or broker outage
// should surface through the affected endpoints, not flap the instance
// out of rotation.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "medication-adherence"})
}
