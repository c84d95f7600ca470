package candidates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// Service provides candidate persistence and the review workflow.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new candidates service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "candidates").Logger(),
	}
}

const candidateColumns = `id, scan_run_id, rule_id, media_type, rating_key, title, year,
	library_section, file_size_bytes, movie_manager_id, series_manager_id,
	rule_snapshot, evaluation_trace, review_status, reviewed_by, reviewed_at,
	eligible_at, created_at`

// InsertBatch persists the candidates produced by a scan in one
// transaction. An item is skipped rather than duplicated while an earlier
// candidate for the same rule is still open (PENDING or APPROVED) or was
// REJECTED; a rejection is a standing decision, not an invitation to
// re-flag on the next scan. Terminal DELETED/UNMONITORED candidates do
// not suppress a fresh flag.
func (s *Service) InsertBatch(ctx context.Context, items []*Candidate) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin candidate insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidates (id, scan_run_id, rule_id, media_type, rating_key,
			title, year, library_section, file_size_bytes, movie_manager_id,
			series_manager_id, rule_snapshot, evaluation_trace, review_status,
			eligible_at, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM candidates
			WHERE rule_id = ? AND rating_key = ?
			  AND review_status IN ('PENDING', 'APPROVED', 'REJECTED'))`)
	if err != nil {
		return 0, fmt.Errorf("prepare candidate insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	now := time.Now().UTC()
	for _, c := range items {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.ReviewStatus == "" {
			c.ReviewStatus = ReviewPending
		}
		c.CreatedAt = now

		res, err := stmt.ExecContext(ctx, c.ID, c.ScanRunID, c.RuleID,
			string(c.MediaType), c.RatingKey, c.Title, c.Year, c.LibrarySection,
			c.FileSizeBytes, c.MovieManagerID, c.SeriesManagerID,
			string(c.RuleSnapshot), string(c.EvaluationTrace),
			string(c.ReviewStatus), c.EligibleAt, now,
			c.RuleID, c.RatingKey)
		if err != nil {
			return 0, fmt.Errorf("insert candidate %s: %w", c.RatingKey, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit candidate insert: %w", err)
	}
	return inserted, nil
}

// Get returns a candidate by ID.
func (s *Service) Get(ctx context.Context, id string) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	return scanCandidate(row)
}

// GetMany returns the candidates for the given IDs. Missing IDs are
// reported as an error so a deletion request never silently shrinks.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]*Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Candidate, len(ids))
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*Candidate, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		result = append(result, c)
	}
	return result, nil
}

// List returns candidates matching the given filters, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 200 {
		opts.PageSize = 200
	}

	where, args := candidateFilter(opts)

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candidates`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}

	query := `SELECT ` + candidateColumns + ` FROM candidates` + where +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	items := make([]*Candidate, 0, opts.PageSize)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      items,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// ListPendingEligible returns every pending candidate whose action delay
// has elapsed, oldest first. Callers decide which actions are automatic.
func (s *Service) ListPendingEligible(ctx context.Context, now time.Time) ([]*Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE review_status = 'PENDING'
		  AND (eligible_at IS NULL OR eligible_at <= ?)
		ORDER BY created_at, id`, now)
	if err != nil {
		return nil, fmt.Errorf("list eligible candidates: %w", err)
	}
	defer rows.Close()

	var items []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Review moves a pending candidate to APPROVED or REJECTED.
func (s *Service) Review(ctx context.Context, id string, status ReviewStatus, reviewer string) (*Candidate, error) {
	if status != ReviewApproved && status != ReviewRejected {
		return nil, fmt.Errorf("%w: cannot review to %s", ErrInvalidTransition, status)
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ReviewStatus != ReviewPending {
		return nil, fmt.Errorf("%w: candidate is %s", ErrInvalidTransition, c.ReviewStatus)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE candidates SET review_status = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ?`,
		string(status), reviewer, now, id)
	if err != nil {
		return nil, fmt.Errorf("review candidate: %w", err)
	}

	c.ReviewStatus = status
	c.ReviewedBy = reviewer
	c.ReviewedAt = &now

	s.logger.Info().
		Str("candidateId", id).
		Str("status", string(status)).
		Str("reviewer", reviewer).
		Msg("Candidate reviewed")
	return c, nil
}

// Resolve records the terminal outcome of an executed action: DELETED when
// the media was removed, UNMONITORED when it was kept but unmonitored.
func (s *Service) Resolve(ctx context.Context, id string, status ReviewStatus) error {
	if status != ReviewDeleted && status != ReviewUnmonitored {
		return fmt.Errorf("%w: cannot resolve to %s", ErrInvalidTransition, status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET review_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("resolve candidate: %w", err)
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

// DeleteForScan removes candidates recorded by a scan run. Used when a
// scan fails after partially persisting output.
func (s *Service) DeleteForScan(ctx context.Context, scanRunID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE scan_run_id = ?`, scanRunID)
	if err != nil {
		return fmt.Errorf("delete scan candidates: %w", err)
	}
	return nil
}

func candidateFilter(opts ListOptions) (string, []any) {
	var clauses []string
	var args []any
	if opts.RuleID != "" {
		clauses = append(clauses, "rule_id = ?")
		args = append(args, opts.RuleID)
	}
	if opts.ScanRunID != "" {
		clauses = append(clauses, "scan_run_id = ?")
		args = append(args, opts.ScanRunID)
	}
	if opts.MediaType != "" {
		clauses = append(clauses, "media_type = ?")
		args = append(args, string(opts.MediaType))
	}
	if opts.ReviewStatus != "" {
		clauses = append(clauses, "review_status = ?")
		args = append(args, string(opts.ReviewStatus))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*Candidate, error) {
	var (
		c         Candidate
		mediaType string
		status    string
		snapshot  string
		trace     string
	)
	err := row.Scan(&c.ID, &c.ScanRunID, &c.RuleID, &mediaType, &c.RatingKey,
		&c.Title, &c.Year, &c.LibrarySection, &c.FileSizeBytes,
		&c.MovieManagerID, &c.SeriesManagerID, &snapshot, &trace,
		&status, &c.ReviewedBy, &c.ReviewedAt, &c.EligibleAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}

	c.MediaType = media.Type(mediaType)
	c.ReviewStatus = ReviewStatus(status)
	c.RuleSnapshot = []byte(snapshot)
	c.EvaluationTrace = []byte(trace)
	return &c, nil
}
