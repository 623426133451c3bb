package syncjob

import "context"

type Repository interface {
	// Create persists a pending job together with its ordered batch of
	// entity ids.
	Create(ctx context.Context, j *Job, entityIDs []string) error
	Get(ctx context.Context, id string) (*Job, error)
	// List returns an organization's jobs, newest first.
	List(ctx context.Context, organizationID string, filter ListFilter) ([]Job, error)
	// Items returns the job's entity ids in batch order.
	Items(ctx context.Context, jobID string) ([]string, error)
	// ClaimPending atomically advances one pending job to running and sets
	// startedAt. Returns nil when no pending job exists.
	ClaimPending(ctx context.Context) (*Job, error)
	// ApplyItemResult folds one batch item's outcome into the job counters
	// as an atomic delta. Failures also append to the bounded error log.
	ApplyItemResult(ctx context.Context, jobID string, res ItemResult) error
	// CancelRequested reads the job's current cancel flag.
	CancelRequested(ctx context.Context, jobID string) (bool, error)
	// RequestCancel sets the cancel flag on a non-terminal job. Returns
	// NotFound if the job does not exist, Conflict if already terminal.
	RequestCancel(ctx context.Context, jobID string) error
	// Finish transitions a running job to the given terminal status and sets
	// completedAt. A no-op if the job is not running.
	Finish(ctx context.Context, jobID string, status Status, errMsg string) error
	// RecoverStale re-queues jobs left in running by a previous process.
	RecoverStale(ctx context.Context) (int64, error)
}

type ListFilter struct {
	Status  Status
	JobType JobType
}
