// Package syncer executes claimed sync jobs: it walks the job's batch in
// order, transforms each entity for the target system, attempts the
// transfer, and folds every outcome into the job record one atomic delta at
// a time. Item boundaries are the only checkpoints: cancellation and
// persistence both happen between items, never mid-item.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voicelinehq/crm-sync/internal/crm"
	"github.com/voicelinehq/crm-sync/internal/entity"
	"github.com/voicelinehq/crm-sync/internal/syncjob"
)

type Service struct {
	jobs     syncjob.Repository
	entities entity.Repository
	registry *crm.Registry
}

func NewService(jobs syncjob.Repository, entities entity.Repository, registry *crm.Registry) *Service {
	return &Service{jobs: jobs, entities: entities, registry: registry}
}

// Process implements syncjob.Processor. Called by the worker pool with a
// claimed (running) job. Per-item failures are recorded and never abort the
// job; only job-level failures (unknown target, rejected credentials) end
// it as failed.
func (s *Service) Process(ctx context.Context, j *syncjob.Job) error {
	target, err := s.registry.Get(j.TargetSystem)
	if err != nil {
		return s.failJob(ctx, j, err)
	}

	task, err := taskFor(j.JobType)
	if err != nil {
		return s.failJob(ctx, j, err)
	}

	if err := target.Verify(ctx); err != nil {
		return s.failJob(ctx, j, fmt.Errorf("verify target: %w", err))
	}

	items, err := s.jobs.Items(ctx, j.ID)
	if err != nil {
		return s.failJob(ctx, j, fmt.Errorf("load batch items: %w", err))
	}

	// A recovered job resumes after its last persisted checkpoint instead of
	// reprocessing the whole batch.
	offset := j.ProcessedRecords
	if offset > int64(len(items)) {
		offset = int64(len(items))
	}

	for _, entityID := range items[offset:] {
		// Shutdown leaves the job running on purpose; stale recovery
		// re-queues it and the next process resumes at this checkpoint.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cancelled, err := s.jobs.CancelRequested(ctx, j.ID)
		if err != nil {
			return s.failJob(ctx, j, fmt.Errorf("read cancel flag: %w", err))
		}
		if cancelled {
			return s.finish(ctx, j, syncjob.StatusCancelled, "")
		}

		res := syncjob.ItemResult{EntityID: entityID}
		if err := task.runItem(ctx, s.entities, target, j.OrganizationID, entityID); err != nil {
			// An item interrupted by shutdown is not a failure; leave it
			// unrecorded so the resumed job retries it.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.FailureReason = err.Error()
			slog.Warn("sync item failed", "job", j.ID, "entity", entityID, "error", err)
		}

		if err := s.jobs.ApplyItemResult(ctx, j.ID, res); err != nil {
			return s.failJob(ctx, j, fmt.Errorf("persist item result: %w", err))
		}
	}

	// One last look at the flag so a cancel racing the final item still wins
	// over completion when it was requested before we finish.
	cancelled, err := s.jobs.CancelRequested(ctx, j.ID)
	if err == nil && cancelled {
		return s.finish(ctx, j, syncjob.StatusCancelled, "")
	}

	return s.finish(ctx, j, syncjob.StatusCompleted, "")
}

func (s *Service) finish(ctx context.Context, j *syncjob.Job, status syncjob.Status, errMsg string) error {
	if err := s.jobs.Finish(ctx, j.ID, status, errMsg); err != nil {
		return err
	}
	slog.Info("sync job finished", "job", j.ID, "status", status)
	return nil
}

func (s *Service) failJob(ctx context.Context, j *syncjob.Job, err error) error {
	_ = s.jobs.Finish(ctx, j.ID, syncjob.StatusFailed, err.Error())
	return err
}
