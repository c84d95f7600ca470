package scheduler

import (
	"context"

	"github.com/mchestr/plex-wrapped-sub005/internal/health"
	"github.com/mchestr/plex-wrapped-sub005/internal/history"
	"github.com/mchestr/plex-wrapped-sub005/internal/jobs"
)

const (
	HistoryCleanupTaskID = "history-cleanup"
	ProviderCheckTaskID  = "provider-check"
	AutoActionTaskID     = "auto-action-sweep"
)

// RegisterHistoryCleanupTask registers the nightly history prune. Entries
// older than retentionDays are deleted; a non-positive retention disables
// the prune while keeping the task visible.
func RegisterHistoryCleanupTask(sched *Scheduler, historyService *history.Service, retentionDays int) error {
	return sched.RegisterTask(TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes history entries older than the configured retention period",
		Cron:        "0 2 * * *",
		Func: func(ctx context.Context) error {
			_, err := historyService.Prune(ctx, retentionDays)
			return err
		},
	})
}

// RegisterAutoActionTask registers the recurring sweep that queues
// deletions for auto-action candidates whose action delay has elapsed.
// Scans enqueue immediately-eligible candidates themselves; this task
// picks up the delayed ones.
func RegisterAutoActionTask(sched *Scheduler, jobManager *jobs.Manager) error {
	return sched.RegisterTask(TaskConfig{
		ID:          AutoActionTaskID,
		Name:        "Auto-Action Sweep",
		Description: "Queues deletions for eligible candidates of auto-action rules",
		Cron:        "30 * * * *",
		Func: func(ctx context.Context) error {
			_, err := jobManager.EnqueueAutoActions(ctx)
			return err
		},
	})
}

// RegisterProviderCheckTask registers the recurring provider
// connectivity check.
func RegisterProviderCheckTask(sched *Scheduler, healthService *health.Service) error {
	return sched.RegisterTask(TaskConfig{
		ID:          ProviderCheckTaskID,
		Name:        "Provider Connectivity Check",
		Description: "Tests connectivity to all configured providers",
		Cron:        "*/15 * * * *",
		Func: func(ctx context.Context) error {
			healthService.RunChecks(ctx)
			return nil
		},
	})
}
