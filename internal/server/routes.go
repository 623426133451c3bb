package server

import (
	"net/http"

	"github.com/voicelinehq/crm-sync/internal/crm"
	"github.com/voicelinehq/crm-sync/internal/syncjob"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(jobSvc *syncjob.Service, registry *crm.Registry) http.Handler {
	return newMux(jobSvc, registry)
}

func newMux(jobSvc *syncjob.Service, registry *crm.Registry) http.Handler {
	h := &handler{
		jobSvc:   jobSvc,
		registry: registry,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/targets", h.listTargets)
	mux.HandleFunc("POST /api/v1/sync-jobs", h.createSyncJob)
	mux.HandleFunc("GET /api/v1/sync-jobs", h.listSyncJobs)
	mux.HandleFunc("GET /api/v1/sync-jobs/{id}", h.getSyncJob)
	mux.HandleFunc("DELETE /api/v1/sync-jobs/{id}", h.cancelSyncJob)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
