package fields

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// Handlers exposes the field catalog over HTTP so rule builders can
// discover queryable fields and their operators.
type Handlers struct {
	registry *Registry
}

// NewHandlers creates field catalog handlers.
func NewHandlers(registry *Registry) *Handlers {
	return &Handlers{registry: registry}
}

// RegisterRoutes registers field routes on the given group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:key", h.Get)
}

type categoryGroup struct {
	Category string  `json:"category"`
	Fields   []Field `json:"fields"`
}

// List returns catalog fields, optionally filtered by media type and
// grouped by category.
func (h *Handlers) List(c echo.Context) error {
	mt := media.Type(c.QueryParam("mediaType"))
	if mt != "" && !media.ValidType(mt) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown media type")
	}

	if c.QueryParam("grouped") == "true" {
		if mt == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "grouped listing requires mediaType")
		}
		grouped, order := h.registry.GroupedByCategory(mt)
		groups := make([]categoryGroup, 0, len(order))
		for _, category := range order {
			groups = append(groups, categoryGroup{Category: category, Fields: grouped[category]})
		}
		return c.JSON(http.StatusOK, groups)
	}

	if mt != "" {
		return c.JSON(http.StatusOK, h.registry.ForMediaType(mt))
	}
	return c.JSON(http.StatusOK, h.registry.All())
}

// Get returns a single field definition.
func (h *Handlers) Get(c echo.Context) error {
	field, ok := h.registry.Definition(c.Param("key"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "field not found")
	}
	return c.JSON(http.StatusOK, field)
}
