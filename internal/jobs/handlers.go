package jobs

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mchestr/plex-wrapped-sub005/internal/deletion"
	"github.com/mchestr/plex-wrapped-sub005/internal/scan"
)

// Handlers provides HTTP handlers that enqueue work.
type Handlers struct {
	manager *Manager
}

// NewHandlers creates a new jobs handlers instance.
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{manager: manager}
}

// RegisterRoutes registers job routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/scans", h.TriggerScan)
	g.POST("/deletions", h.TriggerDeletion)
	g.GET("/queues", h.QueueDepths)
}

type triggerScanRequest struct {
	RuleID string `json:"ruleId"`
}

// TriggerScan enqueues a manual scan of a rule.
// POST /api/v1/jobs/scans
func (h *Handlers) TriggerScan(c echo.Context) error {
	var req triggerScanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RuleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ruleId is required")
	}

	job, err := h.manager.EnqueueScan(req.RuleID, scan.TriggerManual)
	if errors.Is(err, ErrScanAlreadyQueued) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if errors.Is(err, ErrQueueFull) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, job)
}

// TriggerDeletion enqueues a deletion batch for the given candidates.
// POST /api/v1/jobs/deletions
func (h *Handlers) TriggerDeletion(c echo.Context) error {
	var req deletion.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.CandidateIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "candidateIds is required")
	}

	job, err := h.manager.EnqueueDeletion(req)
	if errors.Is(err, ErrQueueFull) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, job)
}

// QueueDepths reports how many jobs wait in each queue.
// GET /api/v1/jobs/queues
func (h *Handlers) QueueDepths(c echo.Context) error {
	scans, deletions := h.manager.QueueDepths()
	return c.JSON(http.StatusOK, map[string]int{
		"scans":     scans,
		"deletions": deletions,
	})
}
