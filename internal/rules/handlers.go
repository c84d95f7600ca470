package rules

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for rule management.
type Handlers struct {
	service *Service

	// onRuleChanged is invoked after any successful mutation so the
	// caller can reconcile schedules. On delete the rule carries only
	// its ID.
	onRuleChanged func(rule *Rule, deleted bool)
}

// NewHandlers creates a new rules handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// SetOnRuleChanged registers a callback fired after create, update, and
// delete.
func (h *Handlers) SetOnRuleChanged(fn func(rule *Rule, deleted bool)) {
	h.onRuleChanged = fn
}

func (h *Handlers) notifyChanged(rule *Rule, deleted bool) {
	if h.onRuleChanged != nil {
		h.onRuleChanged(rule, deleted)
	}
}

// RegisterRoutes registers rule routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/validate", h.ValidateCriteria)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// List returns all rules.
// GET /api/v1/rules
func (h *Handlers) List(c echo.Context) error {
	result, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if result == nil {
		result = []*Rule{}
	}
	return c.JSON(http.StatusOK, result)
}

// Create creates a new rule.
// POST /api/v1/rules
func (h *Handlers) Create(c echo.Context) error {
	var input CreateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rule, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.notifyChanged(rule, false)
	return c.JSON(http.StatusCreated, rule)
}

// Get returns a single rule by ID.
// GET /api/v1/rules/:id
func (h *Handlers) Get(c echo.Context) error {
	rule, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rule)
}

// Update updates an existing rule.
// PUT /api/v1/rules/:id
func (h *Handlers) Update(c echo.Context) error {
	var input UpdateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rule, err := h.service.Update(c.Request().Context(), c.Param("id"), input)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.notifyChanged(rule, false)
	return c.JSON(http.StatusOK, rule)
}

// Delete removes a rule.
// DELETE /api/v1/rules/:id
func (h *Handlers) Delete(c echo.Context) error {
	err := h.service.Delete(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.notifyChanged(&Rule{ID: c.Param("id")}, true)
	return c.NoContent(http.StatusNoContent)
}

// ValidateCriteria checks a criteria payload without saving anything.
// POST /api/v1/rules/validate
func (h *Handlers) ValidateCriteria(c echo.Context) error {
	var input CreateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.service.ValidateCriteria(input.MediaType, input.Criteria); err != nil {
		return c.JSON(http.StatusOK, map[string]any{
			"valid": false,
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"valid": true})
}
