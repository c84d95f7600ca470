package candidates

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// Handlers provides HTTP handlers for candidate review.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new candidates handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers candidate routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/review", h.Review)
}

// List returns candidates matching the query filters.
// GET /api/v1/candidates
func (h *Handlers) List(c echo.Context) error {
	opts := ListOptions{
		RuleID:       c.QueryParam("ruleId"),
		ScanRunID:    c.QueryParam("scanRunId"),
		MediaType:    media.Type(c.QueryParam("mediaType")),
		ReviewStatus: ReviewStatus(c.QueryParam("reviewStatus")),
	}
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if ps, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil && ps > 0 {
		opts.PageSize = ps
	}

	result, err := h.service.List(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// Get returns a single candidate, including its evaluation trace.
// GET /api/v1/candidates/:id
func (h *Handlers) Get(c echo.Context) error {
	candidate, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "candidate not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, candidate)
}

type reviewRequest struct {
	Status   ReviewStatus `json:"status"`
	Reviewer string       `json:"reviewer"`
}

// Review approves or rejects a pending candidate.
// POST /api/v1/candidates/:id/review
func (h *Handlers) Review(c echo.Context) error {
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	candidate, err := h.service.Review(c.Request().Context(), c.Param("id"), req.Status, req.Reviewer)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "candidate not found")
	}
	if errors.Is(err, ErrInvalidTransition) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, candidate)
}
