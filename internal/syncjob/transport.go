package syncjob

import "github.com/voicelinehq/crm-sync/internal/apperror"

type CreateJobRequest struct {
	OrganizationID string   `json:"organizationId"`
	JobType        JobType  `json:"jobType"`
	TargetSystem   string   `json:"targetSystem"`
	EntityIDs      []string `json:"entityIds"`
}

func (r CreateJobRequest) Validate() *apperror.AppError {
	if r.OrganizationID == "" {
		return apperror.New(apperror.BadRequest, "organizationId is required")
	}
	if !ValidJobType(r.JobType) {
		return apperror.New(apperror.BadRequest, "unknown jobType")
	}
	if r.TargetSystem == "" {
		return apperror.New(apperror.BadRequest, "targetSystem is required")
	}
	if len(r.EntityIDs) == 0 {
		return apperror.New(apperror.BadRequest, "entityIds must not be empty")
	}
	for _, id := range r.EntityIDs {
		if id == "" {
			return apperror.New(apperror.BadRequest, "entityIds must not contain empty ids")
		}
	}
	return nil
}

type GetJobRequest struct {
	ID             string
	OrganizationID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if r.ID == "" {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	if r.OrganizationID == "" {
		return apperror.New(apperror.BadRequest, "organizationId is required")
	}
	return nil
}

type ListJobsRequest struct {
	OrganizationID string
	Status         Status
	JobType        JobType
}

func (r ListJobsRequest) Validate() *apperror.AppError {
	if r.OrganizationID == "" {
		return apperror.New(apperror.BadRequest, "organizationId is required")
	}
	if r.Status != "" {
		switch r.Status {
		case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		default:
			return apperror.New(apperror.BadRequest, "unknown status filter")
		}
	}
	if r.JobType != "" && !ValidJobType(r.JobType) {
		return apperror.New(apperror.BadRequest, "unknown jobType filter")
	}
	return nil
}

type CancelJobRequest struct {
	ID             string
	OrganizationID string
}

func (r CancelJobRequest) Validate() *apperror.AppError {
	if r.ID == "" {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	if r.OrganizationID == "" {
		return apperror.New(apperror.BadRequest, "organizationId is required")
	}
	return nil
}

// JobStatus is the status-query response shape: the job plus its derived
// progress projection.
type JobStatus struct {
	Job      Job      `json:"job"`
	Progress Progress `json:"progress"`
}
