package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/criteria"
	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Service provides rule management functionality.
type Service struct {
	db       *sql.DB
	registry *fields.Registry
	logger   zerolog.Logger
}

// NewService creates a new rules service.
func NewService(db *sql.DB, registry *fields.Registry, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		registry: registry,
		logger:   logger.With().Str("component", "rules").Logger(),
	}
}

// Create validates and persists a new rule.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Rule, error) {
	rule := &Rule{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		MediaType:       input.MediaType,
		Criteria:        input.Criteria,
		Action:          input.Action,
		ActionDelayDays: input.ActionDelayDays,
		LibrarySections: input.LibrarySections,
		Schedule:        input.Schedule,
		Enabled:         true,
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}

	if err := s.validate(rule); err != nil {
		return nil, err
	}

	criteriaJSON, err := json.Marshal(rule.Criteria)
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}
	sectionsJSON, err := json.Marshal(sections(rule.LibrarySections))
	if err != nil {
		return nil, fmt.Errorf("marshal library sections: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, description, media_type, criteria, action,
			action_delay_days, library_sections, schedule, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.Description, string(rule.MediaType),
		string(criteriaJSON), string(rule.Action), rule.ActionDelayDays,
		string(sectionsJSON), rule.Schedule, rule.Enabled, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now

	s.logger.Info().
		Str("ruleId", rule.ID).
		Str("name", rule.Name).
		Str("action", string(rule.Action)).
		Msg("Rule created")

	return rule, nil
}

// Get returns a rule by ID.
func (s *Service) Get(ctx context.Context, id string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, media_type, criteria, action,
			action_delay_days, library_sections, schedule, enabled, created_at, updated_at
		FROM rules WHERE id = ?`, id)
	return scanRule(row)
}

// List returns all rules ordered by name.
func (s *Service) List(ctx context.Context) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, media_type, criteria, action,
			action_delay_days, library_sections, schedule, enabled, created_at, updated_at
		FROM rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var result []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

// ListEnabled returns all enabled rules, for scheduler sync.
func (s *Service) ListEnabled(ctx context.Context) ([]*Rule, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make([]*Rule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

// Update applies the non-nil fields of input to an existing rule.
// The media type of a rule is immutable; changing it would invalidate
// every candidate recorded against the rule.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Rule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		rule.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		rule.Description = *input.Description
	}
	if input.Criteria != nil {
		rule.Criteria = input.Criteria
	}
	if input.Action != nil {
		rule.Action = *input.Action
	}
	if input.ActionDelayDays != nil {
		rule.ActionDelayDays = *input.ActionDelayDays
	}
	if input.LibrarySections != nil {
		rule.LibrarySections = input.LibrarySections
	}
	if input.Schedule != nil {
		rule.Schedule = *input.Schedule
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}

	if err := s.validate(rule); err != nil {
		return nil, err
	}

	criteriaJSON, err := json.Marshal(rule.Criteria)
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}
	sectionsJSON, err := json.Marshal(sections(rule.LibrarySections))
	if err != nil {
		return nil, fmt.Errorf("marshal library sections: %w", err)
	}

	rule.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE rules SET name = ?, description = ?, criteria = ?, action = ?,
			action_delay_days = ?, library_sections = ?, schedule = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		rule.Name, rule.Description, string(criteriaJSON), string(rule.Action),
		rule.ActionDelayDays, string(sectionsJSON), rule.Schedule, rule.Enabled,
		rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}

	s.logger.Info().Str("ruleId", rule.ID).Str("name", rule.Name).Msg("Rule updated")
	return rule, nil
}

// Delete removes a rule and, via cascade, its scan runs and candidates.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info().Str("ruleId", id).Msg("Rule deleted")
	return nil
}

// ValidateCriteria checks a criteria tree against the field registry
// without persisting anything. Used by the dry-run validation endpoint.
func (s *Service) ValidateCriteria(mt media.Type, group *criteria.Group) error {
	if group == nil {
		return errors.New("criteria is required")
	}
	return criteria.Validate(group, mt, s.registry)
}

func (s *Service) validate(rule *Rule) error {
	if rule.Name == "" {
		return errors.New("rule name is required")
	}
	if rule.MediaType != media.TypeMovie && rule.MediaType != media.TypeSeries && rule.MediaType != media.TypeEpisode {
		return fmt.Errorf("unknown media type %q", rule.MediaType)
	}
	if !rule.Action.Valid() {
		return fmt.Errorf("unknown action %q", rule.Action)
	}
	if rule.ActionDelayDays < 0 {
		return errors.New("actionDelayDays must not be negative")
	}
	if rule.Schedule != "" {
		if _, err := cronParser.Parse(rule.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", rule.Schedule, err)
		}
	}
	return s.ValidateCriteria(rule.MediaType, rule.Criteria)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var (
		rule         Rule
		mediaType    string
		criteriaJSON string
		action       string
		sectionsJSON string
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &mediaType,
		&criteriaJSON, &action, &rule.ActionDelayDays, &sectionsJSON,
		&rule.Schedule, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan rule: %w", err)
	}

	rule.MediaType = media.Type(mediaType)
	rule.Action = ActionType(action)

	var group criteria.Group
	if err := json.Unmarshal([]byte(criteriaJSON), &group); err != nil {
		return nil, fmt.Errorf("unmarshal criteria for rule %s: %w", rule.ID, err)
	}
	rule.Criteria = &group

	if err := json.Unmarshal([]byte(sectionsJSON), &rule.LibrarySections); err != nil {
		return nil, fmt.Errorf("unmarshal library sections for rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}

func sections(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
