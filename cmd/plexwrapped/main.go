package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mchestr/plex-wrapped-sub005/internal/api"
	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/database"
	"github.com/mchestr/plex-wrapped-sub005/internal/logger"
	"github.com/mchestr/plex-wrapped-sub005/internal/scan"
	"github.com/mchestr/plex-wrapped-sub005/internal/websocket"
)

// logsProvider joins the ring-buffered broadcaster with the log file
// location for the logs API.
type logsProvider struct {
	*logger.LogBroadcaster
	path string
}

func (p logsProvider) LogFilePath() string { return p.path }

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Optional .env for local development; real deployments use env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	broadcaster := logger.NewLogBroadcaster(nil, 1000)
	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, broadcaster)
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("commit", config.Commit).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting plexwrapped")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Runs left RUNNING by a previous crash can never finish.
	if n, err := scan.NewStore(db.Conn()).FailStale(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to fail stale scan runs")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("marked stale scan runs as failed")
	}

	hub := websocket.NewHub()
	go hub.Run()
	broadcaster.SetHub(hub)

	server, err := api.NewServer(db.Conn(), hub,
		logsProvider{LogBroadcaster: broadcaster, path: log.LogFilePath()},
		cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(ctx, cfg.Server.Address()); err != nil {
			log.Info().Err(err).Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
