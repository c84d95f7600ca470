package history

import (
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// EventType identifies what kind of maintenance event an entry records.
type EventType string

const (
	EventScanCompleted   EventType = "scan_completed"
	EventScanFailed      EventType = "scan_failed"
	EventItemDeleted     EventType = "item_deleted"
	EventDeleteFailed    EventType = "delete_failed"
	EventItemUnmonitored EventType = "item_unmonitored"
)

// Entry is one maintenance event in the audit trail.
type Entry struct {
	ID        int64          `json:"id"`
	EventType EventType      `json:"eventType"`
	RuleID    string         `json:"ruleId,omitempty"`
	RuleName  string         `json:"ruleName,omitempty"`
	MediaType media.Type     `json:"mediaType,omitempty"`
	RatingKey string         `json:"ratingKey,omitempty"`
	Title     string         `json:"title,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ListOptions filters and paginates history listings.
type ListOptions struct {
	EventType EventType
	RuleID    string
	Page      int
	PageSize  int
}

// ListResponse is a paginated page of history entries.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}
