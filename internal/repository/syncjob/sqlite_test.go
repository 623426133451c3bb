package syncjob

import (
	"context"
	"fmt"
	"testing"

	"github.com/voicelinehq/crm-sync/internal/apperror"
	"github.com/voicelinehq/crm-sync/internal/platform/sqlite"
	domain "github.com/voicelinehq/crm-sync/internal/syncjob"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createJob(t *testing.T, repo *Repository, org string, ids []string) *domain.Job {
	t.Helper()
	j := &domain.Job{
		OrganizationID: org,
		JobType:        domain.TypeContactsToCRM,
		TargetSystem:   "hubspot",
		Status:         domain.StatusPending,
		TotalRecords:   int64(len(ids)),
	}
	if err := repo.Create(context.Background(), j, ids); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

func TestCreate_And_Get(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := createJob(t, repo, "org-1", []string{"c1", "c2"})
	if j.ID == "" {
		t.Fatal("expected an assigned job id")
	}

	got, err := repo.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.TotalRecords != 2 || got.ProcessedRecords != 0 {
		t.Errorf("unexpected counters: total=%d processed=%d", got.TotalRecords, got.ProcessedRecords)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Error("expected no startedAt/completedAt on a fresh job")
	}
	if j.CreatedAt.IsZero() || !got.CreatedAt.Equal(j.CreatedAt) {
		t.Errorf("createdAt mismatch: create returned %v, row has %v", j.CreatedAt, got.CreatedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)

	_, err := repo.Get(context.Background(), "missing")
	if apperror.From(err).Code() != apperror.NotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestItems_OrderPreserved(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	ids := []string{"z9", "a1", "m5"}
	j := createJob(t, repo, "org-1", ids)

	got, err := repo.Items(ctx, j.ID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, id := range ids {
		if got[i] != id {
			t.Errorf("item %d: expected %s, got %s", i, id, got[i])
		}
	}
}

func TestList_NewestFirst_And_OrgScoped(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	first := createJob(t, repo, "org-1", []string{"c1"})
	second := createJob(t, repo, "org-1", []string{"c2"})
	createJob(t, repo, "org-2", []string{"c3"})

	jobs, err := repo.List(ctx, "org-1", domain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs for org-1, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Errorf("expected newest first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestList_EmptyOrganizationReturnsEmptySlice(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)

	jobs, err := repo.List(context.Background(), "org-without-jobs", domain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if jobs == nil {
		t.Fatal("expected an empty slice, got nil")
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
}

func TestList_StatusFilter(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	createJob(t, repo, "org-1", []string{"c1"})
	createJob(t, repo, "org-1", []string{"c2"})

	claimed, err := repo.ClaimPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.Finish(ctx, claimed.ID, domain.StatusCompleted, ""); err != nil {
		t.Fatalf("finish: %v", err)
	}

	pending, err := repo.List(ctx, "org-1", domain.ListFilter{Status: domain.StatusPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending job, got %d", len(pending))
	}
}

func TestClaimPending_SetsRunningAndStartedAt(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	created := createJob(t, repo, "org-1", []string{"c1"})

	claimed, err := repo.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != created.ID {
		t.Fatal("expected to claim the created job")
	}
	if claimed.Status != domain.StatusRunning {
		t.Errorf("expected running, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Error("expected startedAt set on claim")
	}

	// No second claim while the first is running.
	again, err := repo.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Errorf("expected nil, claimed %s twice", again.ID)
	}
}

func TestClaimPending_OldestFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	first := createJob(t, repo, "org-1", []string{"c1"})
	createJob(t, repo, "org-1", []string{"c2"})

	claimed, err := repo.ClaimPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != first.ID {
		t.Errorf("expected oldest job first, got %s", claimed.ID)
	}
}

func TestApplyItemResult_CountersAndInvariant(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := createJob(t, repo, "org-1", []string{"c1", "c2", "c3"})
	if _, err := repo.ClaimPending(ctx); err != nil {
		t.Fatal(err)
	}

	results := []domain.ItemResult{
		{EntityID: "c1"},
		{EntityID: "c2", FailureReason: "delivery refused"},
		{EntityID: "c3"},
	}
	for _, res := range results {
		if err := repo.ApplyItemResult(ctx, j.ID, res); err != nil {
			t.Fatalf("apply %s: %v", res.EntityID, err)
		}

		got, err := repo.Get(ctx, j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ProcessedRecords != got.SuccessfulRecords+got.FailedRecords {
			t.Fatalf("invariant broken at %s: %d != %d + %d",
				res.EntityID, got.ProcessedRecords, got.SuccessfulRecords, got.FailedRecords)
		}
		if got.ProcessedRecords > got.TotalRecords {
			t.Fatalf("processed exceeds total at %s", res.EntityID)
		}
	}

	got, _ := repo.Get(ctx, j.ID)
	if got.SuccessfulRecords != 2 || got.FailedRecords != 1 {
		t.Errorf("expected 2/1, got %d/%d", got.SuccessfulRecords, got.FailedRecords)
	}
	if len(got.ErrorDetails) != 1 || got.ErrorDetails[0].EntityID != "c2" {
		t.Errorf("expected one error detail for c2, got %+v", got.ErrorDetails)
	}
}

func TestApplyItemResult_RejectsOverflow(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := createJob(t, repo, "org-1", []string{"c1"})
	if _, err := repo.ClaimPending(ctx); err != nil {
		t.Fatal(err)
	}

	if err := repo.ApplyItemResult(ctx, j.ID, domain.ItemResult{EntityID: "c1"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// A retried duplicate delta past the batch size must not double-count.
	if err := repo.ApplyItemResult(ctx, j.ID, domain.ItemResult{EntityID: "c1"}); err == nil {
		t.Fatal("expected error applying a result beyond totalRecords")
	}

	got, _ := repo.Get(ctx, j.ID)
	if got.ProcessedRecords != 1 {
		t.Errorf("expected 1 processed, got %d", got.ProcessedRecords)
	}
}

func TestApplyItemResult_BoundsErrorDetails(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	total := domain.MaxErrorDetails + 10
	ids := make([]string, total)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}
	j := createJob(t, repo, "org-1", ids)
	if _, err := repo.ClaimPending(ctx); err != nil {
		t.Fatal(err)
	}

	for _, id := range ids {
		res := domain.ItemResult{EntityID: id, FailureReason: "refused"}
		if err := repo.ApplyItemResult(ctx, j.ID, res); err != nil {
			t.Fatalf("apply %s: %v", id, err)
		}
	}

	got, _ := repo.Get(ctx, j.ID)
	if len(got.ErrorDetails) != domain.MaxErrorDetails {
		t.Fatalf("expected %d retained errors, got %d", domain.MaxErrorDetails, len(got.ErrorDetails))
	}
	// Only the most recent failures survive.
	if got.ErrorDetails[0].EntityID != fmt.Sprintf("c%d", total-domain.MaxErrorDetails) {
		t.Errorf("expected oldest retained error to be c%d, got %s",
			total-domain.MaxErrorDetails, got.ErrorDetails[0].EntityID)
	}
	if got.FailedRecords != int64(total) {
		t.Errorf("failed counter should keep full count %d, got %d", total, got.FailedRecords)
	}
}

func TestRequestCancel(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := createJob(t, repo, "org-1", []string{"c1"})

	if err := repo.RequestCancel(ctx, j.ID); err != nil {
		t.Fatalf("cancel pending job: %v", err)
	}
	flag, err := repo.CancelRequested(ctx, j.ID)
	if err != nil || !flag {
		t.Fatalf("expected cancel flag set, got %v / %v", flag, err)
	}

	// Repeat request is a no-op, not an error.
	if err := repo.RequestCancel(ctx, j.ID); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
}

func TestRequestCancel_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)

	err := repo.RequestCancel(context.Background(), "missing")
	if apperror.From(err).Code() != apperror.NotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRequestCancel_TerminalJob(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := createJob(t, repo, "org-1", []string{"c1"})
	if _, err := repo.ClaimPending(ctx); err != nil {
		t.Fatal(err)
	}
	if err := repo.Finish(ctx, j.ID, domain.StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	err := repo.RequestCancel(ctx, j.ID)
	if apperror.From(err).Code() != apperror.Conflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestFinish_TerminalStatesAbsorbing(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := createJob(t, repo, "org-1", []string{"c1"})
	if _, err := repo.ClaimPending(ctx); err != nil {
		t.Fatal(err)
	}

	if err := repo.Finish(ctx, j.ID, domain.StatusCancelled, ""); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, _ := repo.Get(ctx, j.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("expected completedAt set")
	}
	completedAt := *got.CompletedAt

	// A second finish must not move the job out of its terminal state.
	if err := repo.Finish(ctx, j.ID, domain.StatusCompleted, ""); err != nil {
		t.Fatalf("second finish: %v", err)
	}
	got, _ = repo.Get(ctx, j.ID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("terminal state overwritten to %s", got.Status)
	}
	if !got.CompletedAt.Equal(completedAt) {
		t.Error("completedAt changed after terminal state")
	}
}

func TestFinish_RejectsNonTerminalStatus(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)

	err := repo.Finish(context.Background(), "any", domain.StatusRunning, "")
	if err == nil {
		t.Fatal("expected error for non-terminal finish status")
	}
}

func TestRecoverStale(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := createJob(t, repo, "org-1", []string{"c1", "c2"})
	if _, err := repo.ClaimPending(ctx); err != nil {
		t.Fatal(err)
	}
	if err := repo.ApplyItemResult(ctx, j.ID, domain.ItemResult{EntityID: "c1"}); err != nil {
		t.Fatal(err)
	}

	n, err := repo.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recovered job, got %d", n)
	}

	got, _ := repo.Get(ctx, j.ID)
	if got.Status != domain.StatusPending {
		t.Errorf("expected pending after recovery, got %s", got.Status)
	}
	// Progress survives recovery so the job resumes, not restarts.
	if got.ProcessedRecords != 1 {
		t.Errorf("expected counters preserved, got %d", got.ProcessedRecords)
	}
}
