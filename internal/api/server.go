// Package api wires every feature package into a single echo server
// and owns its middleware and lifecycle.
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/mchestr/plex-wrapped-sub005/internal/api/middleware"
	"github.com/mchestr/plex-wrapped-sub005/internal/candidates"
	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/deletion"
	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/health"
	"github.com/mchestr/plex-wrapped-sub005/internal/history"
	"github.com/mchestr/plex-wrapped-sub005/internal/jobs"
	"github.com/mchestr/plex-wrapped-sub005/internal/progress"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers/overseerr"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers/plex"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers/radarr"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers/sonarr"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers/tautulli"
	"github.com/mchestr/plex-wrapped-sub005/internal/rules"
	"github.com/mchestr/plex-wrapped-sub005/internal/scan"
	"github.com/mchestr/plex-wrapped-sub005/internal/scheduler"
	"github.com/mchestr/plex-wrapped-sub005/internal/startup"
	"github.com/mchestr/plex-wrapped-sub005/internal/websocket"
)

// Server handles HTTP requests for the maintenance API.
type Server struct {
	echo   *echo.Echo
	db     *sql.DB
	hub    *websocket.Hub
	logger zerolog.Logger
	cfg    *config.Config

	// Services
	registry         *fields.Registry
	rulesService     *rules.Service
	candidateService *candidates.Service
	scanStore        *scan.Store
	scanService      *scan.Service
	historyService   *history.Service
	deletionService  *deletion.Service
	healthService    *health.Service
	jobManager       *jobs.Manager
	scheduler        *scheduler.Scheduler
	ruleSync         *scheduler.RuleSync
	progressManager  *progress.Manager

	library  *plex.Client
	playback *tautulli.Client
	movies   *radarr.Client
	series   *sonarr.Client
	requests *overseerr.Client
}

// NewServer creates a new API server instance with all services wired.
func NewServer(db *sql.DB, hub *websocket.Hub, logs LogsProvider, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		db:     db,
		hub:    hub,
		logger: logger,
		cfg:    cfg,
	}

	registry, err := fields.Load()
	if err != nil {
		return nil, err
	}
	s.registry = registry

	// Provider clients
	s.library = plex.NewClient(cfg.Providers.Plex, logger)
	s.playback = tautulli.NewClient(cfg.Providers.Tautulli, logger)
	s.movies = radarr.NewClient(cfg.Providers.Radarr, logger)
	s.series = sonarr.NewClient(cfg.Providers.Sonarr, logger)
	s.requests = overseerr.NewClient(cfg.Providers.Overseerr, logger)

	// Core services
	s.rulesService = rules.NewService(db, registry, logger)
	s.candidateService = candidates.NewService(db, logger)
	s.historyService = history.NewService(db, logger)
	s.scanStore = scan.NewStore(db)
	s.scanService = scan.NewService(s.scanStore, s.rulesService, s.candidateService,
		s.historyService, registry, scan.Providers{
			Library:  s.library,
			Playback: s.playback,
			Movies:   s.movies,
			Series:   s.series,
			Requests: s.requests,
		}, cfg.Maintenance.YearTolerance, logger)
	s.deletionService = deletion.NewService(s.candidateService, s.historyService,
		deletion.Providers{
			Library: s.library,
			Movies:  s.movies,
			Series:  s.series,
		}, logger)

	// Provider connectivity checks
	s.healthService = health.NewService(logger)
	for _, c := range []health.Checker{s.library, s.playback, s.movies, s.series, s.requests} {
		s.healthService.Register(c)
	}
	s.healthService.SetBroadcaster(hub)

	// Progress activities are pushed to WebSocket clients.
	s.progressManager = progress.NewManager(hub, logger)

	// Job queues and rule scheduling
	s.jobManager = jobs.NewManager(jobs.Config{
		ScanWorkers:         cfg.Maintenance.ScanWorkers,
		DeletionWorkers:     cfg.Maintenance.DeletionWorkers,
		QueueSize:           cfg.Maintenance.QueueSize,
		ScanStartsPerMinute: cfg.Maintenance.ScanStartsPerMinute,
	}, s.scanService, s.deletionService, s.candidateService, s.progressManager, logger)

	sched, err := scheduler.New(logger)
	if err != nil {
		return nil, err
	}
	s.scheduler = sched
	s.ruleSync = scheduler.NewRuleSync(sched, s.rulesService, s.jobManager, logger)

	if err := scheduler.RegisterHistoryCleanupTask(sched, s.historyService, cfg.Maintenance.HistoryRetentionDays); err != nil {
		return nil, err
	}
	if err := scheduler.RegisterProviderCheckTask(sched, s.healthService); err != nil {
		return nil, err
	}
	if err := scheduler.RegisterAutoActionTask(sched, s.jobManager); err != nil {
		return nil, err
	}

	s.setupMiddleware()
	s.setupRoutes(logs)

	return s, nil
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes(logs LogsProvider) {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	// WebSocket endpoint for progress and log streaming
	s.echo.GET("/ws", s.hub.HandleWebSocket)

	// API v1 group
	api := s.echo.Group("/api/v1")

	api.GET("/system/status", s.getStatus)
	api.GET("/activities", s.getActivities)

	healthHandlers := health.NewHandlers(s.healthService)
	healthHandlers.RegisterRoutes(api.Group("/system/providers"))

	fieldHandlers := fields.NewHandlers(s.registry)
	fieldHandlers.RegisterRoutes(api.Group("/fields"))

	ruleHandlers := rules.NewHandlers(s.rulesService)
	ruleHandlers.RegisterRoutes(api.Group("/rules"))

	// Keep the scheduler in lockstep with rule mutations.
	ruleHandlers.SetOnRuleChanged(s.onRuleChanged)

	candidateHandlers := candidates.NewHandlers(s.candidateService)
	candidateHandlers.RegisterRoutes(api.Group("/candidates"))

	scanHandlers := scan.NewHandlers(s.scanStore)
	scanHandlers.RegisterRoutes(api.Group("/scans"))

	jobHandlers := jobs.NewHandlers(s.jobManager)
	jobHandlers.RegisterRoutes(api.Group("/jobs"))

	historyHandlers := history.NewHandlers(s.historyService)
	historyHandlers.RegisterRoutes(api.Group("/history"))

	schedulerHandlers := scheduler.NewHandlers(s.scheduler)
	schedulerHandlers.RegisterRoutes(api.Group("/tasks"))

	logsHandlers := NewLogsHandlers(logs)
	logsHandlers.RegisterRoutes(api.Group("/logs"))
}

// onRuleChanged re-syncs a rule's scheduled trigger after create,
// update, or delete.
func (s *Server) onRuleChanged(rule *rules.Rule, deleted bool) {
	if deleted {
		s.ruleSync.RemoveRule(rule.ID)
		return
	}
	if err := s.ruleSync.SyncRule(rule); err != nil {
		s.logger.Error().Err(err).Str("ruleId", rule.ID).Msg("failed to sync rule schedule")
	}
}

// Start begins listening for HTTP requests and starts the background
// machinery: job workers, the cron scheduler, and rule triggers.
func (s *Server) Start(ctx context.Context, address string) error {
	s.jobManager.Start(ctx)

	if err := s.scheduler.Start(); err != nil {
		return err
	}
	if err := s.ruleSync.SyncAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial rule schedule sync failed")
	}

	// Probe providers in the background so a slow Plex or Tautulli does
	// not hold up the HTTP listener.
	go s.probeProviders(ctx)

	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// probeProviders retries the initial connectivity checks so providers
// that start alongside this service have time to come up.
func (s *Server) probeProviders(ctx context.Context) {
	err := startup.WithRetry(ctx, "provider connectivity", startup.DefaultRetryConfig(), func() error {
		for _, check := range s.healthService.RunChecks(ctx) {
			if check.Status == health.StatusError {
				return errors.New(check.Name + ": " + check.Message)
			}
		}
		return nil
	}, s.logger)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("some providers are unreachable, scans may fail until they recover")
	}
}

// Shutdown gracefully stops the server and background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.scheduler.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to stop scheduler")
	}
	s.jobManager.Stop()

	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": config.Version})
}

func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	ruleList, err := s.rulesService.List(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list rules")
	}
	enabled := 0
	for _, r := range ruleList {
		if r.Enabled {
			enabled++
		}
	}

	scanDepth, deletionDepth := s.jobManager.QueueDepths()

	return c.JSON(http.StatusOK, map[string]any{
		"version":          config.Version,
		"commit":           config.Commit,
		"ruleCount":        len(ruleList),
		"enabledRuleCount": enabled,
		"scanQueueDepth":   scanDepth,
		"deleteQueueDepth": deletionDepth,
		"wsClients":        s.hub.ClientCount(),
		"providers": map[string]bool{
			"plex":      s.library.IsConfigured(),
			"tautulli":  s.playback.IsConfigured(),
			"radarr":    s.movies.IsConfigured(),
			"sonarr":    s.series.IsConfigured(),
			"overseerr": s.requests.IsConfigured(),
		},
	})
}

func (s *Server) getActivities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.progressManager.GetAllActivities())
}
