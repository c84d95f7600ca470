package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// Service provides the maintenance event audit trail.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record persists a new history entry.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	detailJSON := "{}"
	if entry.Detail != nil {
		bytes, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("marshal history detail: %w", err)
		}
		detailJSON = string(bytes)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (event_type, rule_id, rule_name, media_type,
			rating_key, title, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(entry.EventType), entry.RuleID, entry.RuleName,
		string(entry.MediaType), entry.RatingKey, entry.Title, entry.Actor,
		detailJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// List lists history entries with pagination and filtering, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	var clauses []string
	var args []any
	if opts.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, string(opts.EventType))
	}
	if opts.RuleID != "" {
		clauses = append(clauses, "rule_id = ?")
		args = append(args, opts.RuleID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	query := `SELECT id, event_type, rule_id, rule_name, media_type, rating_key,
		title, actor, detail, created_at FROM history` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, opts.PageSize)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// Prune removes entries older than the retention window.
func (s *Service) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("pruned", n).Int("retentionDays", retentionDays).Msg("Pruned history entries")
	}
	return n, nil
}

// DeleteAll deletes all history entries.
func (s *Service) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		entry      Entry
		eventType  string
		mediaType  string
		detailJSON string
	)
	err := rows.Scan(&entry.ID, &eventType, &entry.RuleID, &entry.RuleName,
		&mediaType, &entry.RatingKey, &entry.Title, &entry.Actor,
		&detailJSON, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan history entry: %w", err)
	}

	entry.EventType = EventType(eventType)
	entry.MediaType = media.Type(mediaType)
	if detailJSON != "" && detailJSON != "{}" {
		var detail map[string]any
		if err := json.Unmarshal([]byte(detailJSON), &detail); err == nil {
			entry.Detail = detail
		}
	}
	return &entry, nil
}
