package syncjob

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voicelinehq/crm-sync/internal/apperror"
	domain "github.com/voicelinehq/crm-sync/internal/syncjob"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, j *domain.Job, entityIDs []string) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create job: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertJob = `INSERT INTO sync_jobs
		(id, organization_id, job_type, target_system, status, total_records)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, insertJob,
		j.ID, j.OrganizationID, string(j.JobType), j.TargetSystem,
		string(j.Status), j.TotalRecords,
	); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	const insertItem = `INSERT INTO sync_job_items (job_id, position, entity_id) VALUES (?, ?, ?)`
	for i, entityID := range entityIDs {
		if _, err := tx.ExecContext(ctx, insertItem, j.ID, i, entityID); err != nil {
			return fmt.Errorf("create job items: %w", err)
		}
	}

	// Read the stored timestamp back so the returned job matches the row
	// exactly instead of carrying a client-side approximation.
	var createdStr string
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM sync_jobs WHERE id = ?`, j.ID,
	).Scan(&createdStr); err != nil {
		return fmt.Errorf("create job: read created_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create job: commit: %w", err)
	}

	j.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return nil
}

const jobColumns = `id, organization_id, job_type, target_system, status,
	total_records, processed_records, successful_records, failed_records,
	cancel_requested, error, created_at, started_at, completed_at`

func (r *Repository) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := r.getRow(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := r.errorDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	j.ErrorDetails = details
	return j, nil
}

func (r *Repository) getRow(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) errorDetails(ctx context.Context, jobID string) ([]domain.ErrorDetail, error) {
	const query = `SELECT entity_id, reason FROM sync_job_errors
		WHERE job_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("job error details: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var details []domain.ErrorDetail
	for rows.Next() {
		var d domain.ErrorDetail
		if err := rows.Scan(&d.EntityID, &d.Reason); err != nil {
			return nil, fmt.Errorf("scan error detail: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (r *Repository) List(ctx context.Context, organizationID string, filter domain.ListFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE organization_id = ?`
	args := []any{organizationID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.JobType != "" {
		query += " AND job_type = ?"
		args = append(args, string(filter.JobType))
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT 100"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *Repository) Items(ctx context.Context, jobID string) ([]string, error) {
	const query = `SELECT entity_id FROM sync_job_items WHERE job_id = ? ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("job items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimPending advances the oldest pending job to running inside a
// transaction so no two workers claim the same job.
func (r *Repository) ClaimPending(ctx context.Context) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim pending: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sync_jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC LIMIT 1`,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending: select: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sync_jobs SET status = 'running',
			started_at = COALESCE(started_at, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		WHERE id = ? AND status = 'pending'`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Another claimant advanced it first.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim pending: commit: %w", err)
	}

	return r.Get(ctx, id)
}

// ApplyItemResult increments the job counters by delta in a single
// statement, never read-modify-write, so concurrent or retried item
// completions cannot clobber each other. Failed items also append to the
// error log, pruned to the most recent MaxErrorDetails entries.
func (r *Repository) ApplyItemResult(ctx context.Context, jobID string, res domain.ItemResult) error {
	succ, failed := 1, 0
	if res.Failed() {
		succ, failed = 0, 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply item result: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const update = `UPDATE sync_jobs SET
			processed_records = processed_records + 1,
			successful_records = successful_records + ?,
			failed_records = failed_records + ?
		WHERE id = ? AND status = 'running' AND processed_records < total_records`

	result, err := tx.ExecContext(ctx, update, succ, failed, jobID)
	if err != nil {
		return fmt.Errorf("apply item result: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.New(apperror.Conflict, "job is not accepting item results")
	}

	if res.Failed() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sync_job_errors (job_id, entity_id, reason) VALUES (?, ?, ?)`,
			jobID, res.EntityID, res.FailureReason,
		); err != nil {
			return fmt.Errorf("record item failure: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sync_job_errors WHERE job_id = ? AND id NOT IN (
				SELECT id FROM sync_job_errors WHERE job_id = ? ORDER BY id DESC LIMIT ?)`,
			jobID, jobID, domain.MaxErrorDetails,
		); err != nil {
			return fmt.Errorf("prune item failures: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply item result: commit: %w", err)
	}
	return nil
}

func (r *Repository) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	var flag bool
	err := r.db.QueryRowContext(ctx,
		`SELECT cancel_requested FROM sync_jobs WHERE id = ?`, jobID,
	).Scan(&flag)
	if err == sql.ErrNoRows {
		return false, apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag, nil
}

func (r *Repository) RequestCancel(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET cancel_requested = 1
		WHERE id = ? AND status IN ('pending', 'running')`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Distinguish a missing job from a terminal one.
	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM sync_jobs WHERE id = ?`, jobID).Scan(&status)
	if err == sql.ErrNoRows {
		return apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	return apperror.New(apperror.Conflict, fmt.Sprintf("job already %s", status))
}

func (r *Repository) Finish(ctx context.Context, jobID string, status domain.Status, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish job: %s is not a terminal status", status)
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, error = ?,
			completed_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND status = 'running'`,
		string(status), errVal, jobID,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// RecoverStale re-queues running jobs from a dead process. Counters and the
// cancel flag are preserved, so a resumed job picks up at its last
// checkpoint and a pending cancel still takes effect.
func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = 'pending' WHERE status = 'running'`,
	)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	j := &domain.Job{}
	var jobType, status, createdStr string
	var errVal, startedStr, completedStr sql.NullString

	err := row.Scan(
		&j.ID, &j.OrganizationID, &jobType, &j.TargetSystem, &status,
		&j.TotalRecords, &j.ProcessedRecords, &j.SuccessfulRecords, &j.FailedRecords,
		&j.CancelRequested, &errVal, &createdStr, &startedStr, &completedStr,
	)
	if err != nil {
		return nil, err
	}

	j.JobType = domain.JobType(jobType)
	j.Status = domain.Status(status)
	if errVal.Valid {
		j.Error = errVal.String
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	if startedStr.Valid {
		if t, err := time.Parse(time.RFC3339, startedStr.String); err == nil {
			j.StartedAt = &t
		}
	}
	if completedStr.Valid {
		if t, err := time.Parse(time.RFC3339, completedStr.String); err == nil {
			j.CompletedAt = &t
		}
	}
	return j, nil
}
