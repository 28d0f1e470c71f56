package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/mauv0809/crispy-broccoli/internal/observability"
)

// RegisterRoutes mounts the health, metrics and admin endpoints.
func RegisterRoutes(e *echo.Echo, h *Handler, admin *AdminHandler) {
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	if admin == nil {
		return
	}

	g := e.Group("/admin")
	g.POST("/scan", admin.Scan)
	g.GET("/analyze/:symbol", admin.Analyze)
	g.POST("/universe/refresh", admin.RefreshUniverse)
	g.GET("/universe/status", admin.UniverseStatus)
}
