package syncjob

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is absorbing: once a job reaches a
// terminal status it never transitions again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type JobType string

const (
	TypeContactsToCRM   JobType = "contacts_to_crm"
	TypeCallsToCRM      JobType = "calls_to_crm"
	TypeContactsFromCRM JobType = "contacts_from_crm"
	TypeCallsFromCRM    JobType = "calls_from_crm"
)

func ValidJobType(t JobType) bool {
	switch t {
	case TypeContactsToCRM, TypeCallsToCRM, TypeContactsFromCRM, TypeCallsFromCRM:
		return true
	}
	return false
}

// MaxErrorDetails bounds the per-job failure log; only the most recent
// failures are retained.
const MaxErrorDetails = 25

// ErrorDetail records one batch item's failure.
type ErrorDetail struct {
	EntityID string `json:"entityId"`
	Reason   string `json:"reason"`
}

// Job is one bulk synchronization request. Counters satisfy
// ProcessedRecords == SuccessfulRecords + FailedRecords <= TotalRecords
// at every persisted point.
type Job struct {
	ID                string        `json:"id"`
	OrganizationID    string        `json:"organizationId"`
	JobType           JobType       `json:"jobType"`
	TargetSystem      string        `json:"targetSystem"`
	Status            Status        `json:"status"`
	TotalRecords      int64         `json:"totalRecords"`
	ProcessedRecords  int64         `json:"processedRecords"`
	SuccessfulRecords int64         `json:"successfulRecords"`
	FailedRecords     int64         `json:"failedRecords"`
	CancelRequested   bool          `json:"cancelRequested"`
	Error             string        `json:"error,omitempty"`
	ErrorDetails      []ErrorDetail `json:"errorDetails,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	StartedAt         *time.Time    `json:"startedAt,omitempty"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
}

// ItemResult is the outcome of one batch item. A non-empty FailureReason
// counts the item as failed; the job itself continues either way.
type ItemResult struct {
	EntityID      string
	FailureReason string
}

func (r ItemResult) Failed() bool { return r.FailureReason != "" }
