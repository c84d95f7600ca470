package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for provider health endpoints.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers provider health routes on the given group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.list)
	g.POST("/test", h.test)
}

// list returns the cached results from the last check run.
func (h *Handlers) list(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"healthy": h.service.Healthy(),
		"checks":  h.service.Checks(),
	})
}

// test runs connectivity checks immediately and returns the results.
func (h *Handlers) test(c echo.Context) error {
	results := h.service.RunChecks(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{
		"healthy": h.service.Healthy(),
		"checks":  results,
	})
}
