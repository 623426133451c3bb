package syncjob

import (
	"math"
	"time"
)

// Progress is a read-only projection of a job snapshot. It is never written
// back to the store.
type Progress struct {
	Percent int `json:"percent"`
	// EstimatedSecondsLeft is derived from throughput since startedAt.
	// Omitted unless the job is running and has processed at least one item.
	EstimatedSecondsLeft *float64 `json:"estimatedSecondsLeft,omitempty"`
}

// Snapshot computes the progress projection for a job as of now.
func Snapshot(j *Job, now time.Time) Progress {
	var p Progress
	if j.TotalRecords > 0 {
		p.Percent = int(math.Round(float64(j.ProcessedRecords) / float64(j.TotalRecords) * 100))
	}

	if j.Status != StatusRunning || j.ProcessedRecords == 0 || j.StartedAt == nil {
		return p
	}

	elapsed := now.Sub(*j.StartedAt).Seconds()
	if elapsed <= 0 {
		return p
	}

	rate := float64(j.ProcessedRecords) / elapsed
	if rate <= 0 {
		return p
	}

	remaining := float64(j.TotalRecords-j.ProcessedRecords) / rate
	p.EstimatedSecondsLeft = &remaining
	return p
}
