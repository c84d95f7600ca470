// Package jobs owns the in-process work queues. Scans and deletion batches
// are enqueued as ID-only payloads, then executed by bounded worker pools;
// everything else about the work is re-read from the database when the job
// runs, so a stale payload can never act on stale data.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mchestr/plex-wrapped-sub005/internal/candidates"
	"github.com/mchestr/plex-wrapped-sub005/internal/deletion"
	"github.com/mchestr/plex-wrapped-sub005/internal/progress"
	"github.com/mchestr/plex-wrapped-sub005/internal/rules"
	"github.com/mchestr/plex-wrapped-sub005/internal/scan"
)

var (
	// ErrQueueFull is returned when a queue cannot accept more jobs.
	ErrQueueFull = errors.New("job queue is full")
	// ErrScanAlreadyQueued is returned when the rule already has a scan
	// queued or running. At most one scan per rule is in flight.
	ErrScanAlreadyQueued = errors.New("scan already queued for rule")
)

// ScanJob is one queued scan. The payload is the rule ID only.
type ScanJob struct {
	ID         string       `json:"id"`
	RuleID     string       `json:"ruleId"`
	Trigger    scan.Trigger `json:"trigger"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
}

// DeletionJob is one queued deletion batch, identified by candidate IDs.
type DeletionJob struct {
	ID         string           `json:"id"`
	Request    deletion.Request `json:"request"`
	EnqueuedAt time.Time        `json:"enqueuedAt"`
}

// Config bounds the worker pools and queue depth.
type Config struct {
	ScanWorkers     int
	DeletionWorkers int
	QueueSize       int
	// ScanStartsPerMinute throttles how fast queued scans may begin, so
	// a burst of schedule fires cannot hammer every provider at once.
	ScanStartsPerMinute int
}

func (c Config) withDefaults() Config {
	if c.ScanWorkers < 1 {
		c.ScanWorkers = 2
	}
	if c.DeletionWorkers < 1 {
		c.DeletionWorkers = 1
	}
	if c.QueueSize < 1 {
		c.QueueSize = 64
	}
	if c.ScanStartsPerMinute < 1 {
		c.ScanStartsPerMinute = 10
	}
	return c
}

// Manager runs the scan and deletion queues.
type Manager struct {
	cfg        Config
	scans      *scan.Service
	deletes    *deletion.Service
	candidates *candidates.Service
	progress   *progress.Manager
	logger     zerolog.Logger

	scanQueue     chan ScanJob
	deletionQueue chan DeletionJob
	limiter       *rate.Limiter

	mu       sync.Mutex
	inFlight map[string]bool // rule IDs with a queued or running scan

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a job manager. Call Start before enqueuing.
func NewManager(cfg Config, scanSvc *scan.Service, deletionSvc *deletion.Service,
	candidateSvc *candidates.Service, progressMgr *progress.Manager, logger zerolog.Logger,
) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:           cfg,
		scans:         scanSvc,
		deletes:       deletionSvc,
		candidates:    candidateSvc,
		progress:      progressMgr,
		logger:        logger.With().Str("component", "jobs").Logger(),
		scanQueue:     make(chan ScanJob, cfg.QueueSize),
		deletionQueue: make(chan DeletionJob, cfg.QueueSize),
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.ScanStartsPerMinute)), 1),
		inFlight:      make(map[string]bool),
	}
}

// Start launches the worker pools.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	for i := 0; i < m.cfg.ScanWorkers; i++ {
		m.wg.Add(1)
		go m.scanWorker(ctx)
	}
	for i := 0; i < m.cfg.DeletionWorkers; i++ {
		m.wg.Add(1)
		go m.deletionWorker(ctx)
	}

	m.logger.Info().
		Int("scanWorkers", m.cfg.ScanWorkers).
		Int("deletionWorkers", m.cfg.DeletionWorkers).
		Msg("Job workers started")
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info().Msg("Job workers stopped")
}

// EnqueueScan queues a scan of the given rule. A rule with a scan already
// queued or running is rejected rather than queued twice.
func (m *Manager) EnqueueScan(ruleID string, trigger scan.Trigger) (*ScanJob, error) {
	m.mu.Lock()
	if m.inFlight[ruleID] {
		m.mu.Unlock()
		return nil, ErrScanAlreadyQueued
	}
	m.inFlight[ruleID] = true
	m.mu.Unlock()

	job := ScanJob{
		ID:         uuid.NewString(),
		RuleID:     ruleID,
		Trigger:    trigger,
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case m.scanQueue <- job:
		m.logger.Debug().Str("jobId", job.ID).Str("ruleId", ruleID).Msg("Scan enqueued")
		return &job, nil
	default:
		m.clearInFlight(ruleID)
		return nil, ErrQueueFull
	}
}

// EnqueueDeletion queues a deletion batch.
func (m *Manager) EnqueueDeletion(req deletion.Request) (*DeletionJob, error) {
	if len(req.CandidateIDs) == 0 {
		return nil, errors.New("no candidates to act on")
	}
	job := DeletionJob{
		ID:         uuid.NewString(),
		Request:    req,
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case m.deletionQueue <- job:
		m.logger.Debug().Str("jobId", job.ID).Int("candidates", len(req.CandidateIDs)).Msg("Deletion enqueued")
		return &job, nil
	default:
		return nil, ErrQueueFull
	}
}

// EnqueueAutoActions queues a deletion batch per rule for pending
// candidates of auto-action rules whose action delay has elapsed.
// Flag-for-review candidates wait for an explicit approval instead.
// Runs after every completed scan and on a recurring task, so delayed
// candidates are picked up once their delay passes.
func (m *Manager) EnqueueAutoActions(ctx context.Context) (int, error) {
	eligible, err := m.candidates.ListPendingEligible(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	byRule := make(map[string][]string)
	var ruleOrder []string
	for _, c := range eligible {
		action, err := c.SnapshotAction()
		if err != nil {
			m.logger.Warn().Err(err).Str("candidateId", c.ID).Msg("Skipping candidate with unreadable snapshot")
			continue
		}
		if action == rules.ActionFlagForReview || action == rules.ActionDoNothing {
			continue
		}
		if _, seen := byRule[c.RuleID]; !seen {
			ruleOrder = append(ruleOrder, c.RuleID)
		}
		byRule[c.RuleID] = append(byRule[c.RuleID], c.ID)
	}

	queued := 0
	for _, ruleID := range ruleOrder {
		ids := byRule[ruleID]
		_, err := m.EnqueueDeletion(deletion.Request{
			CandidateIDs: ids,
			DeleteFiles:  true,
			Actor:        "auto",
		})
		if err != nil {
			// A full queue is not fatal; the recurring task retries.
			m.logger.Warn().Err(err).Str("ruleId", ruleID).Int("candidates", len(ids)).
				Msg("Failed to enqueue auto-action batch")
			continue
		}
		queued += len(ids)
	}
	if queued > 0 {
		m.logger.Info().Int("candidates", queued).Msg("Auto-action deletions enqueued")
	}
	return queued, nil
}

// QueueDepths reports how many jobs are waiting in each queue.
func (m *Manager) QueueDepths() (scans, deletions int) {
	return len(m.scanQueue), len(m.deletionQueue)
}

func (m *Manager) clearInFlight(ruleID string) {
	m.mu.Lock()
	delete(m.inFlight, ruleID)
	m.mu.Unlock()
}

func (m *Manager) scanWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.scanQueue:
			m.runScan(ctx, job)
		}
	}
}

func (m *Manager) runScan(ctx context.Context, job ScanJob) {
	defer m.clearInFlight(job.RuleID)

	// The activity appears before the rate limiter wait so a queued scan
	// is visible immediately.
	activityID := "scan-" + job.ID
	if m.progress != nil {
		m.progress.StartActivity(activityID, progress.ActivityTypeScan, "Maintenance scan")
		m.progress.UpdateActivityMetadata(activityID, "ruleId", job.RuleID)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		if m.progress != nil {
			m.progress.FailActivity(activityID, "shutdown before scan started")
		}
		return
	}

	run, err := m.scans.Run(ctx, job.RuleID, job.Trigger, func(p scan.Progress) {
		if m.progress == nil {
			return
		}
		pct := -1
		if p.Total > 0 {
			pct = p.Evaluated * 100 / p.Total
		}
		m.progress.UpdateActivity(activityID, fmt.Sprintf("%s (%d matched)", p.Phase, p.Matched), pct)
	})
	if err != nil {
		m.logger.Error().Err(err).Str("ruleId", job.RuleID).Msg("Scan job failed")
		if m.progress != nil {
			m.progress.FailActivity(activityID, err.Error())
		}
		return
	}
	if m.progress != nil {
		m.progress.CompleteActivity(activityID,
			fmt.Sprintf("%d evaluated, %d matched", run.ItemsEvaluated, run.ItemsMatched))
	}

	if run.ItemsMatched > 0 {
		if _, err := m.EnqueueAutoActions(ctx); err != nil {
			m.logger.Warn().Err(err).Str("ruleId", job.RuleID).Msg("Post-scan auto-action sweep failed")
		}
	}
}

func (m *Manager) deletionWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.deletionQueue:
			m.runDeletion(ctx, job)
		}
	}
}

func (m *Manager) runDeletion(ctx context.Context, job DeletionJob) {
	activityID := "deletion-" + job.ID
	if m.progress != nil {
		m.progress.StartActivity(activityID, progress.ActivityTypeDeletion, "Deleting media")
	}

	result, err := m.deletes.Execute(ctx, job.Request, func(done, total int, title string) {
		if m.progress == nil {
			return
		}
		pct := -1
		if total > 0 {
			pct = done * 100 / total
		}
		m.progress.UpdateActivity(activityID, title, pct)
	})
	if err != nil {
		m.logger.Error().Err(err).Str("jobId", job.ID).Msg("Deletion job failed")
		if m.progress != nil {
			m.progress.FailActivity(activityID, err.Error())
		}
		return
	}
	if m.progress != nil {
		m.progress.CompleteActivity(activityID,
			fmt.Sprintf("%d deleted, %d failed", result.Success, result.Failed))
	}
}
