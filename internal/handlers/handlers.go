package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CrumbHolder exposes the provider session state.
type CrumbHolder interface {
	Crumb() string
}

type Handler struct {
	session CrumbHolder
}

func New(session CrumbHolder) *Handler {
	return &Handler{session: session}
}

// Health returns application health status
// @Summary Health check
// @Description Returns the health status of the application and whether the
// @Description provider session holds a crumb
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c echo.Context) error {
	if h.session == nil || h.session.Crumb() == "" {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"provider": "no crumb",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": "ready",
	})
}
