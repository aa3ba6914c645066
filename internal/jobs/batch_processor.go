package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
)

// BatchJobStore claims and finishes batch jobs
type BatchJobStore interface {
	ClaimNext(ctx context.Context, jobType domain.BatchJobType, at time.Time) (*domain.BatchJob, error)
	Finish(ctx context.Context, id string, result domain.BatchJobResult, at time.Time) error
	ResetRunning(ctx context.Context, jobType domain.BatchJobType) (int64, error)
}

// BatchJobProcessor runs the queued jobs of one type, one job at a time
type BatchJobProcessor struct {
	store   BatchJobStore
	jobType domain.BatchJobType
	runner  *BatchJobRunner
	handler ItemHandler
	log     *logger.Logger
}

// NewBatchJobProcessor creates a processor for jobType
func NewBatchJobProcessor(store BatchJobStore, jobType domain.BatchJobType, runner *BatchJobRunner, handler ItemHandler, log *logger.Logger) *BatchJobProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchJobProcessor{
		store:   store,
		jobType: jobType,
		runner:  runner,
		handler: handler,
		log:     log.With("component", "batch_processor", "type", jobType),
	}
}

// Recover requeues jobs of this type that a previous process left running
func (p *BatchJobProcessor) Recover(ctx context.Context) error {
	n, err := p.store.ResetRunning(ctx, p.jobType)
	if err != nil {
		return fmt.Errorf("failed to requeue running jobs: %w", err)
	}
	if n > 0 {
		p.log.Warn("requeued interrupted batch jobs", "count", n)
	}
	return nil
}

// ProcessJobs implements the JobProcessor interface
func (p *BatchJobProcessor) ProcessJobs(ctx context.Context) error {
	job, err := p.store.ClaimNext(ctx, p.jobType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to claim batch job: %w", err)
	}
	if job == nil {
		return nil
	}

	p.log.Info("batch job started", "job_id", job.ID, "items", len(job.Items))
	result := p.runner.Run(ctx, job, p.handler)
	if result.Status == domain.BatchJobStatusRunning {
		// Left running; Recover requeues it on the next start.
		return nil
	}

	if err := p.store.Finish(context.WithoutCancel(ctx), job.ID, result, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to finish batch job %s: %w", job.ID, err)
	}
	return nil
}
