package rules

import (
	"errors"
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/criteria"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// ActionType is the action a rule takes against matched items.
type ActionType string

const (
	ActionFlagForReview      ActionType = "FLAG_FOR_REVIEW"
	ActionAutoDelete         ActionType = "AUTO_DELETE"
	ActionUnmonitorAndDelete ActionType = "UNMONITOR_AND_DELETE"
	ActionUnmonitorAndKeep   ActionType = "UNMONITOR_AND_KEEP"
	ActionDoNothing          ActionType = "DO_NOTHING"
)

// Valid reports whether the action type is one of the known actions.
func (a ActionType) Valid() bool {
	switch a {
	case ActionFlagForReview, ActionAutoDelete, ActionUnmonitorAndDelete,
		ActionUnmonitorAndKeep, ActionDoNothing:
		return true
	}
	return false
}

// RequiresDeletion reports whether executing the action removes media files.
func (a ActionType) RequiresDeletion() bool {
	return a == ActionAutoDelete || a == ActionUnmonitorAndDelete
}

var (
	// ErrNotFound is returned when a rule does not exist.
	ErrNotFound = errors.New("rule not found")
	// ErrRuleDisabled is returned when an operation requires an enabled rule.
	ErrRuleDisabled = errors.New("rule is disabled")
)

// Rule is a maintenance rule: a criteria tree evaluated against the merged
// library on a schedule, with an action applied to matching items.
type Rule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	MediaType       media.Type      `json:"mediaType"`
	Criteria        *criteria.Group `json:"criteria"`
	Action          ActionType      `json:"action"`
	ActionDelayDays int             `json:"actionDelayDays"`
	LibrarySections []string        `json:"librarySections"`
	Schedule        string          `json:"schedule"`
	Enabled         bool            `json:"enabled"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// AppliesToSection reports whether the rule covers the given library
// section. An empty LibrarySections list means all sections.
func (r *Rule) AppliesToSection(section string) bool {
	if len(r.LibrarySections) == 0 {
		return true
	}
	for _, s := range r.LibrarySections {
		if s == section {
			return true
		}
	}
	return false
}

// CreateInput holds the fields accepted when creating a rule.
type CreateInput struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	MediaType       media.Type      `json:"mediaType"`
	Criteria        *criteria.Group `json:"criteria"`
	Action          ActionType      `json:"action"`
	ActionDelayDays int             `json:"actionDelayDays"`
	LibrarySections []string        `json:"librarySections"`
	Schedule        string          `json:"schedule"`
	Enabled         *bool           `json:"enabled"`
}

// UpdateInput holds the fields accepted when updating a rule. Nil fields
// are left unchanged.
type UpdateInput struct {
	Name            *string         `json:"name"`
	Description     *string         `json:"description"`
	Criteria        *criteria.Group `json:"criteria"`
	Action          *ActionType     `json:"action"`
	ActionDelayDays *int            `json:"actionDelayDays"`
	LibrarySections []string        `json:"librarySections"`
	Schedule        *string         `json:"schedule"`
	Enabled         *bool           `json:"enabled"`
}
