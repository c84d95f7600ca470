package scheduler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for scheduler introspection.
type Handlers struct {
	scheduler *Scheduler
}

// NewHandlers creates a new scheduler handlers instance.
func NewHandlers(sched *Scheduler) *Handlers {
	return &Handlers{scheduler: sched}
}

// RegisterRoutes registers scheduler routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/run", h.RunNow)
}

// List returns all registered tasks with their next run times.
// GET /api/v1/tasks
func (h *Handlers) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// Get returns a single task.
// GET /api/v1/tasks/:id
func (h *Handlers) Get(c echo.Context) error {
	info, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

// RunNow triggers a task immediately.
// POST /api/v1/tasks/:id/run
func (h *Handlers) RunNow(c echo.Context) error {
	if err := h.scheduler.RunNow(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}
