package scan

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for scan run status.
type Handlers struct {
	store *Store
}

// NewHandlers creates a new scan handlers instance.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers scan run routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListForRule)
	g.GET("/:id", h.Get)
}

// Get returns a scan run by ID.
// GET /api/v1/scans/:id
func (h *Handlers) Get(c echo.Context) error {
	run, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "scan run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// ListForRule returns a rule's recent scan runs.
// GET /api/v1/scans?ruleId=...
func (h *Handlers) ListForRule(c echo.Context) error {
	ruleID := c.QueryParam("ruleId")
	if ruleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ruleId is required")
	}
	limit := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		limit = l
	}

	runs, err := h.store.ListForRule(c.Request().Context(), ruleID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []*Run{}
	}
	return c.JSON(http.StatusOK, runs)
}
