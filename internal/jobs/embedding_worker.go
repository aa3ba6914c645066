package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	// EmbeddingClaimLimit is the number of jobs claimed per poll
	EmbeddingClaimLimit = 50
)

// EmbeddingJobRepository defines the interface for embedding job persistence
type EmbeddingJobRepository interface {
	// ClaimPending moves pending jobs to processing and returns them
	ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error)

	// UpdateStatus updates the status of an embedding job
	UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// ArtifactIndexer generates embeddings for artifact versions
type ArtifactIndexer interface {
	IndexStandard(ctx context.Context, versionID string) error
	IndexRecipe(ctx context.Context, versionID string) error
}

// EmbeddingWorker processes the embedding jobs queued when patches are applied
// or a re-embedding is triggered.
type EmbeddingWorker struct {
	repo    EmbeddingJobRepository
	indexer ArtifactIndexer
	log     *logger.Logger
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(repo EmbeddingJobRepository, indexer ArtifactIndexer, log *logger.Logger) *EmbeddingWorker {
	if log == nil {
		log = logger.NewNop()
	}
	return &EmbeddingWorker{
		repo:    repo,
		indexer: indexer,
		log:     log.With("component", "embedding_worker"),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, EmbeddingClaimLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.log.Info("processing pending embedding jobs", "count", len(jobs))

	for i, job := range jobs {
		err := w.processJob(ctx, job)
		if err == nil {
			continue
		}
		if domain.IsCode(err, domain.ErrCodeConfiguration) {
			// Without an AI collaborator every remaining job would fail the same way.
			w.release(ctx, jobs[i:], err)
			return nil
		}
		w.log.Error("error processing job", "job_id", job.ID, "error", err)
	}

	return nil
}

func (w *EmbeddingWorker) processJob(ctx context.Context, job *domain.EmbeddingJob) error {
	var err error
	switch {
	case job.StandardVersionID != "":
		w.log.Debug("indexing standard version", "job_id", job.ID, "version_id", job.StandardVersionID)
		err = w.indexer.IndexStandard(ctx, job.StandardVersionID)
	case job.RecipeVersionID != "":
		w.log.Debug("indexing recipe version", "job_id", job.ID, "version_id", job.RecipeVersionID)
		err = w.indexer.IndexRecipe(ctx, job.RecipeVersionID)
	default:
		return w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, "job has no target version")
	}

	if err != nil {
		if domain.IsCode(err, domain.ErrCodeConfiguration) {
			return err
		}
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	w.log.Debug("job completed", "job_id", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *EmbeddingWorker) handleJobFailure(ctx context.Context, job *domain.EmbeddingJob, jobErr error) error {
	w.log.Warn("job failed", "job_id", job.ID, "error", jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		w.log.Error("job exceeded max retries, marking as failed", "job_id", job.ID, "max_retries", MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

// release puts claimed jobs back to pending without spending a retry
func (w *EmbeddingWorker) release(ctx context.Context, jobs []*domain.EmbeddingJob, cause error) {
	w.log.Warn("embedding jobs released", "count", len(jobs), "error", cause)
	for _, job := range jobs {
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusPending, cause.Error()); err != nil {
			w.log.Error("failed to release job", "job_id", job.ID, "error", err)
		}
	}
}
