package syncjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/voicelinehq/crm-sync/internal/apperror"
)

// Targets reports which external systems jobs may be created against.
// Implemented by the CRM transport registry.
type Targets interface {
	Has(name string) bool
}

type Service struct {
	repo    Repository
	targets Targets
	notify  func() // optional: wake worker pool
}

func NewService(repo Repository, targets Targets) *Service {
	return &Service{repo: repo, targets: targets}
}

// SetNotify sets a callback invoked when a new pending job is created.
func (s *Service) SetNotify(fn func()) { s.notify = fn }

// Create validates the request and persists a pending job covering the
// whole entity batch. The caller gets the job back immediately; execution
// happens in the background.
func (s *Service) Create(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.targets.Has(req.TargetSystem) {
		return nil, apperror.New(apperror.BadRequest, "unknown targetSystem")
	}

	j := &Job{
		OrganizationID: req.OrganizationID,
		JobType:        req.JobType,
		TargetSystem:   req.TargetSystem,
		Status:         StatusPending,
		TotalRecords:   int64(len(req.EntityIDs)),
	}
	if err := s.repo.Create(ctx, j, req.EntityIDs); err != nil {
		return nil, err
	}

	slog.Info("sync job created",
		"job", j.ID, "org", j.OrganizationID, "type", j.JobType,
		"target", j.TargetSystem, "total", j.TotalRecords)

	if s.notify != nil {
		s.notify()
	}
	return j, nil
}

// Get returns the job with its progress projection. Jobs belonging to a
// different organization are reported as not found.
func (s *Service) Get(ctx context.Context, req GetJobRequest) (*JobStatus, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	j, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if j.OrganizationID != req.OrganizationID {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	return &JobStatus{Job: *j, Progress: Snapshot(j, time.Now().UTC())}, nil
}

func (s *Service) List(ctx context.Context, req ListJobsRequest) ([]Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, req.OrganizationID, ListFilter{Status: req.Status, JobType: req.JobType})
}

// Cancel flags a non-terminal job for cancellation. It returns as soon as
// the flag is set; the executor observes it at the next item boundary.
// Repeat requests on the same non-terminal job are no-ops.
func (s *Service) Cancel(ctx context.Context, req CancelJobRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	j, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return err
	}
	if j.OrganizationID != req.OrganizationID {
		return apperror.New(apperror.NotFound, "job not found")
	}
	if err := s.repo.RequestCancel(ctx, req.ID); err != nil {
		return err
	}
	slog.Info("sync job cancel requested", "job", req.ID, "org", req.OrganizationID)
	return nil
}

// RecoverStaleJobs re-queues jobs that were running when a previous process
// stopped. Their counters are kept, so execution resumes where it left off.
func (s *Service) RecoverStaleJobs(ctx context.Context) error {
	n, err := s.repo.RecoverStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("re-queued interrupted sync jobs", "count", n)
	}
	return nil
}
