// Package client is the polling consumer of the sync-job API: it submits
// jobs and tracks their progress on a fixed interval until they reach a
// terminal status, without the caller managing timers. It carries its own
// wire types so importing modules do not depend on the service internals.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Status is a sync job's lifecycle state as reported by the API.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final; a terminal job never
// transitions again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CreateJobRequest is the payload for submitting a bulk sync job.
type CreateJobRequest struct {
	OrganizationID string   `json:"organizationId"`
	JobType        string   `json:"jobType"`
	TargetSystem   string   `json:"targetSystem"`
	EntityIDs      []string `json:"entityIds"`
}

// ErrorDetail records one batch item's failure.
type ErrorDetail struct {
	EntityID string `json:"entityId"`
	Reason   string `json:"reason"`
}

// Job is a sync job as returned by the API.
type Job struct {
	ID                string        `json:"id"`
	OrganizationID    string        `json:"organizationId"`
	JobType           string        `json:"jobType"`
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

// Progress is the server's derived progress projection.
type Progress struct {
	Percent              int      `json:"percent"`
	EstimatedSecondsLeft *float64 `json:"estimatedSecondsLeft,omitempty"`
}

// JobStatus is the status-query response: the job plus its progress.
type JobStatus struct {
	Job      Job      `json:"job"`
	Progress Progress `json:"progress"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	interval   time.Duration
	grace      time.Duration
}

// New creates a client for the API at baseURL with the given options applied.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		interval:   2 * time.Second,
		grace:      500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInterval sets the status poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// WithGracePeriod sets how long Watch lingers after observing a terminal
// status, giving consumers of OnUpdate a final frame before returning.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Client) { c.grace = d }
}

type apiEnvelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// CreateJob submits a bulk sync job and returns its id. The job starts in
// pending; execution is asynchronous.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/sync-jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var created struct {
		JobID  string `json:"jobId"`
		Status Status `json:"status"`
	}
	if err := c.do(httpReq, http.StatusCreated, &created); err != nil {
		return "", err
	}
	return created.JobID, nil
}

// GetJob fetches the current job state with its progress projection.
func (c *Client) GetJob(ctx context.Context, jobID, organizationID string) (*JobStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL(jobID, organizationID), nil)
	if err != nil {
		return nil, err
	}

	var status JobStatus
	if err := c.do(httpReq, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CancelJob requests cancellation. It returns once the flag is set; the job
// keeps running until the executor reaches the next item boundary, so
// callers should keep watching until the job turns terminal.
func (c *Client) CancelJob(ctx context.Context, jobID, organizationID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.statusURL(jobID, organizationID), nil)
	if err != nil {
		return err
	}

	var result struct {
		Cancelled bool `json:"cancelled"`
	}
	return c.do(httpReq, http.StatusOK, &result)
}

// Watch polls the job at the configured interval, invoking onUpdate (if
// non-nil) with each observed snapshot, until the job reaches a terminal
// status or ctx is cancelled. After the terminal snapshot it waits the
// grace period and returns the final state.
func (c *Client) Watch(ctx context.Context, jobID, organizationID string, onUpdate func(JobStatus)) (*JobStatus, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		status, err := c.GetJob(ctx, jobID, organizationID)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(*status)
		}

		if status.Job.Status.Terminal() {
			if c.grace > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(c.grace):
				}
			}
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) statusURL(jobID, organizationID string) string {
	return fmt.Sprintf("%s/api/v1/sync-jobs/%s?organizationId=%s",
		c.baseURL, url.PathEscape(jobID), url.QueryEscape(organizationID))
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		var envelope apiEnvelope[json.RawMessage]
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var envelope apiEnvelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(envelope.Data, out)
}

// APIError is a non-2xx response from the sync-job API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}
