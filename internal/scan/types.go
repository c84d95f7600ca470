package scan

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a scan run. A run that started always
// ends COMPLETED or FAILED; RUNNING is never a terminal state.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Trigger records what started a scan run.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// ErrNotFound is returned when a scan run does not exist.
var ErrNotFound = errors.New("scan run not found")

// Run is one execution of a rule against the library.
type Run struct {
	ID             string     `json:"id"`
	RuleID         string     `json:"ruleId"`
	Status         Status     `json:"status"`
	Trigger        Trigger    `json:"trigger"`
	ItemsEvaluated int        `json:"itemsEvaluated"`
	ItemsMatched   int        `json:"itemsMatched"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Progress is a coarse in-flight snapshot reported while a scan runs.
type Progress struct {
	RunID     string `json:"runId"`
	RuleID    string `json:"ruleId"`
	Phase     string `json:"phase"`
	Evaluated int    `json:"evaluated"`
	Total     int    `json:"total"`
	Matched   int    `json:"matched"`
}

// ProgressFunc receives progress snapshots. Implementations must be fast;
// the scanner calls it inline.
type ProgressFunc func(Progress)
