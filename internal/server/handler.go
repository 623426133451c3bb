package server

import (
	"encoding/json"
	"net/http"

	"github.com/voicelinehq/crm-sync/internal/apperror"
	"github.com/voicelinehq/crm-sync/internal/crm"
	"github.com/voicelinehq/crm-sync/internal/syncjob"
)

type handler struct {
	jobSvc   *syncjob.Service
	registry *crm.Registry
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listTargets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Targets())
}

func (h *handler) createSyncJob(w http.ResponseWriter, r *http.Request) {
	var req syncjob.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := h.jobSvc.Create(r.Context(), req)
	if err != nil {
		ae := apperror.From(err)
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"jobId":  j.ID,
		"status": j.Status,
	})
}

func (h *handler) getSyncJob(w http.ResponseWriter, r *http.Request) {
	req := syncjob.GetJobRequest{
		ID:             r.PathValue("id"),
		OrganizationID: r.URL.Query().Get("organizationId"),
	}

	status, err := h.jobSvc.Get(r.Context(), req)
	if err != nil {
		ae := apperror.From(err)
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *handler) listSyncJobs(w http.ResponseWriter, r *http.Request) {
	req := syncjob.ListJobsRequest{
		OrganizationID: r.URL.Query().Get("organizationId"),
		Status:         syncjob.Status(r.URL.Query().Get("status")),
		JobType:        syncjob.JobType(r.URL.Query().Get("jobType")),
	}

	jobs, err := h.jobSvc.List(r.Context(), req)
	if err != nil {
		ae := apperror.From(err)
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}

	// Empty result must serialize as an empty array, not null.
	if jobs == nil {
		jobs = []syncjob.Job{}
	}
	writeJSON(w, http.StatusOK, map[string][]syncjob.Job{"jobs": jobs})
}

func (h *handler) cancelSyncJob(w http.ResponseWriter, r *http.Request) {
	req := syncjob.CancelJobRequest{
		ID:             r.PathValue("id"),
		OrganizationID: r.URL.Query().Get("organizationId"),
	}

	if err := h.jobSvc.Cancel(r.Context(), req); err != nil {
		ae := apperror.From(err)
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
