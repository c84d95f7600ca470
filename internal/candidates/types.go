package candidates

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/rules"
)

// ReviewStatus tracks where a candidate sits in the review workflow.
type ReviewStatus string

const (
	ReviewPending     ReviewStatus = "PENDING"
	ReviewApproved    ReviewStatus = "APPROVED"
	ReviewRejected    ReviewStatus = "REJECTED"
	ReviewDeleted     ReviewStatus = "DELETED"
	ReviewUnmonitored ReviewStatus = "UNMONITORED"
)

var (
	// ErrNotFound is returned when a candidate does not exist.
	ErrNotFound = errors.New("candidate not found")
	// ErrInvalidTransition is returned for review transitions that are
	// not allowed, such as approving an already deleted candidate.
	ErrInvalidTransition = errors.New("invalid review transition")
)

// Candidate is an item matched by a rule during a scan, frozen with the
// rule snapshot and evaluation trace that produced it.
type Candidate struct {
	ID              string          `json:"id"`
	ScanRunID       string          `json:"scanRunId"`
	RuleID          string          `json:"ruleId"`
	MediaType       media.Type      `json:"mediaType"`
	RatingKey       string          `json:"ratingKey"`
	Title           string          `json:"title"`
	Year            int             `json:"year"`
	LibrarySection  string          `json:"librarySection"`
	FileSizeBytes   int64           `json:"fileSizeBytes"`
	MovieManagerID  *int64          `json:"movieManagerId,omitempty"`
	SeriesManagerID *int64          `json:"seriesManagerId,omitempty"`
	RuleSnapshot    json.RawMessage `json:"ruleSnapshot"`
	EvaluationTrace json.RawMessage `json:"evaluationTrace"`
	ReviewStatus    ReviewStatus    `json:"reviewStatus"`
	ReviewedBy      string          `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	EligibleAt      *time.Time      `json:"eligibleAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Eligible reports whether the candidate's action delay has elapsed.
func (c *Candidate) Eligible(now time.Time) bool {
	return c.EligibleAt == nil || !now.Before(*c.EligibleAt)
}

// SnapshotAction returns the action frozen into the rule snapshot at
// scan time. The snapshot governs, not the live rule.
func (c *Candidate) SnapshotAction() (rules.ActionType, error) {
	var frozen struct {
		Action rules.ActionType `json:"action"`
	}
	if err := json.Unmarshal(c.RuleSnapshot, &frozen); err != nil {
		return "", err
	}
	if frozen.Action == "" {
		return "", errors.New("rule snapshot has no action")
	}
	return frozen.Action, nil
}

// ListOptions filters and paginates candidate listings.
type ListOptions struct {
	RuleID       string
	ScanRunID    string
	MediaType    media.Type
	ReviewStatus ReviewStatus
	Page         int
	PageSize     int
}

// ListResponse is a paginated page of candidates.
type ListResponse struct {
	Items      []*Candidate `json:"items"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalCount int64        `json:"totalCount"`
	TotalPages int          `json:"totalPages"`
}
