package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists scan runs.
type Store struct {
	db *sql.DB
}

// NewStore creates a scan run store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create records a new RUNNING scan run.
func (s *Store) Create(ctx context.Context, ruleID string, trigger Trigger) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		RuleID:    ruleID,
		Status:    StatusRunning,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, rule_id, status, triggered_by, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.RuleID, string(run.Status), string(run.Trigger), run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert scan run: %w", err)
	}
	return run, nil
}

// Complete marks a run COMPLETED with its final counters.
func (s *Store) Complete(ctx context.Context, id string, evaluated, matched int) error {
	return s.finish(ctx, id, StatusCompleted, evaluated, matched, "")
}

// Fail marks a run FAILED and records the error text.
func (s *Store) Fail(ctx context.Context, id string, evaluated, matched int, cause string) error {
	return s.finish(ctx, id, StatusFailed, evaluated, matched, cause)
}

func (s *Store) finish(ctx context.Context, id string, status Status, evaluated, matched int, cause string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_runs
		SET status = ?, items_evaluated = ?, items_matched = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(status), evaluated, matched, cause, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish scan run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a scan run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rule_id, status, triggered_by, items_evaluated, items_matched,
			error, started_at, finished_at
		FROM scan_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListForRule returns a rule's most recent runs, newest first.
func (s *Store) ListForRule(ctx context.Context, ruleID string, limit int) ([]*Run, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, status, triggered_by, items_evaluated, items_matched,
			error, started_at, finished_at
		FROM scan_runs WHERE rule_id = ?
		ORDER BY started_at DESC LIMIT ?`, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FailStale marks every RUNNING run FAILED. Called once at startup so a
// crash mid-scan never leaves a run stuck in RUNNING.
func (s *Store) FailStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_runs
		SET status = ?, error = 'interrupted by shutdown', finished_at = ?
		WHERE status = ?`,
		string(StatusFailed), time.Now().UTC(), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("fail stale scan runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run     Run
		status  string
		trigger string
	)
	err := row.Scan(&run.ID, &run.RuleID, &status, &trigger,
		&run.ItemsEvaluated, &run.ItemsMatched, &run.Error,
		&run.StartedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	run.Status = Status(status)
	run.Trigger = Trigger(trigger)
	return &run, nil
}
