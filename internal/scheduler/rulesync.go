package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/jobs"
	"github.com/mchestr/plex-wrapped-sub005/internal/rules"
	"github.com/mchestr/plex-wrapped-sub005/internal/scan"
)

const ruleTaskPrefix = "rule-scan:"

// RuleTaskID returns the scheduler task ID for a rule.
func RuleTaskID(ruleID string) string {
	return ruleTaskPrefix + ruleID
}

// RuleSync keeps the scheduler's task set in step with the rule table:
// every enabled rule with a schedule has exactly one task, and the task
// does nothing but enqueue a scan.
type RuleSync struct {
	scheduler *Scheduler
	rules     *rules.Service
	jobs      *jobs.Manager
	logger    zerolog.Logger
}

// NewRuleSync creates a rule schedule syncer.
func NewRuleSync(sched *Scheduler, ruleSvc *rules.Service, jobManager *jobs.Manager, logger zerolog.Logger) *RuleSync {
	return &RuleSync{
		scheduler: sched,
		rules:     ruleSvc,
		jobs:      jobManager,
		logger:    logger.With().Str("component", "rulesync").Logger(),
	}
}

// SyncAll reconciles every rule. Called at startup and after bulk changes.
func (rs *RuleSync) SyncAll(ctx context.Context) error {
	all, err := rs.rules.List(ctx)
	if err != nil {
		return fmt.Errorf("list rules for sync: %w", err)
	}

	wanted := make(map[string]bool, len(all))
	for _, rule := range all {
		if rule.Enabled && rule.Schedule != "" {
			wanted[RuleTaskID(rule.ID)] = true
		}
		if err := rs.SyncRule(rule); err != nil {
			return err
		}
	}

	// Drop tasks whose rule was deleted.
	for _, info := range rs.scheduler.ListTasks() {
		if strings.HasPrefix(info.ID, ruleTaskPrefix) && !wanted[info.ID] {
			if err := rs.scheduler.RemoveTask(info.ID); err != nil {
				rs.logger.Warn().Err(err).Str("taskId", info.ID).Msg("Failed to remove stale task")
			}
		}
	}
	return nil
}

// SyncRule registers, replaces, or removes the task for one rule.
func (rs *RuleSync) SyncRule(rule *rules.Rule) error {
	taskID := RuleTaskID(rule.ID)

	if rs.scheduler.HasTask(taskID) {
		if err := rs.scheduler.RemoveTask(taskID); err != nil {
			return err
		}
	}
	if !rule.Enabled || rule.Schedule == "" {
		return nil
	}

	ruleID := rule.ID
	return rs.scheduler.RegisterTask(TaskConfig{
		ID:          taskID,
		Name:        rule.Name,
		Description: "Scheduled maintenance scan",
		Cron:        rule.Schedule,
		Func: func(context.Context) error {
			_, err := rs.jobs.EnqueueScan(ruleID, scan.TriggerSchedule)
			if errors.Is(err, jobs.ErrScanAlreadyQueued) {
				rs.logger.Debug().Str("ruleId", ruleID).Msg("Scan already queued, skipping schedule fire")
				return nil
			}
			return err
		},
	})
}

// RemoveRule drops the task for a deleted rule, if one exists.
func (rs *RuleSync) RemoveRule(ruleID string) {
	taskID := RuleTaskID(ruleID)
	if !rs.scheduler.HasTask(taskID) {
		return
	}
	if err := rs.scheduler.RemoveTask(taskID); err != nil {
		rs.logger.Warn().Err(err).Str("ruleId", ruleID).Msg("Failed to remove rule task")
	}
}
