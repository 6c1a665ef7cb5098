package health

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers health check routes. They sit outside the API
// prefix and ignore the browsing policy.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.Health)
	e.GET("/healthz", h.Healthz)
	e.GET("/ready", h.Ready)
	e.GET("/debug", h.Debug)
}
