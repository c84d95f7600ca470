package health

import "time"

// Status is the connectivity state of a checked provider.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
	StatusUnknown Status = "unknown"
)

// Check is the last known result for a single provider.
type Check struct {
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
}
