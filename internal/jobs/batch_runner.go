package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/service"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ProgressStore persists the counts of a running batch job
type ProgressStore interface {
	// UpdateProgress stores the counts and reports whether cancellation was requested
	UpdateProgress(ctx context.Context, id string, processed, failed int) (bool, error)
	IsCancelRequested(ctx context.Context, id string) (bool, error)
}

// ItemHandler runs one item of a batch job
type ItemHandler interface {
	HandleItem(ctx context.Context, job *domain.BatchJob, item domain.BatchItem) error
}

// ItemHandlerFunc adapts a function to ItemHandler
type ItemHandlerFunc func(ctx context.Context, job *domain.BatchJob, item domain.BatchItem) error

func (f ItemHandlerFunc) HandleItem(ctx context.Context, job *domain.BatchJob, item domain.BatchItem) error {
	return f(ctx, job, item)
}

// BatchJobRunner walks the items of a claimed job. Items start in order and
// at most maxConcurrent run at once. Cancellation is checked before every item.
type BatchJobRunner struct {
	progress      ProgressStore
	maxConcurrent int64
	log           *logger.Logger
}

// NewBatchJobRunner creates a runner. maxConcurrent below 1 means 1.
func NewBatchJobRunner(progress ProgressStore, maxConcurrent int, log *logger.Logger) *BatchJobRunner {
	if log == nil {
		log = logger.NewNop()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &BatchJobRunner{
		progress:      progress,
		maxConcurrent: int64(maxConcurrent),
		log:           log.With("component", "batch_runner"),
	}
}

// Run executes the job's items with handler and returns the final report.
// Per-item failures are counted. A configuration error fails the job and no
// further items are started. Items run to completion even when ctx ends; a
// ctx that ends without a cancel request stops the walk and reports
// BatchJobStatusRunning so the job is left for recovery.
func (r *BatchJobRunner) Run(ctx context.Context, job *domain.BatchJob, handler ItemHandler) domain.BatchJobResult {
	log := r.log.With("job_id", job.ID, "type", job.Type)
	itemCtx := context.WithoutCancel(ctx)

	var (
		mu          sync.Mutex
		processed   int
		failed      int
		fatal       error
		cancelled   bool
		interrupted bool
	)

	sem := semaphore.NewWeighted(r.maxConcurrent)
	g := new(errgroup.Group)

	for i, item := range job.Items {
		if err := sem.Acquire(itemCtx, 1); err != nil {
			break
		}

		mu.Lock()
		stop := fatal != nil || cancelled
		mu.Unlock()
		if !stop {
			switch {
			case ctx.Err() != nil:
				interrupted = true
				stop = true
			case r.cancelRequested(itemCtx, job.ID, log):
				mu.Lock()
				cancelled = true
				mu.Unlock()
				stop = true
			}
		}
		if stop {
			sem.Release(1)
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			err := handler.HandleItem(itemCtx, job, item)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				processed++
			case domain.IsCode(err, domain.ErrCodeConfiguration):
				failed++
				if fatal == nil {
					fatal = err
				}
			default:
				failed++
				log.Warn("batch item failed", "index", i, "kind", item.Kind, "item_id", item.ID, "error", err)
			}

			cancelRequested, perr := r.progress.UpdateProgress(itemCtx, job.ID, processed, failed)
			if perr != nil {
				log.Error("failed to persist batch progress", "error", perr)
			}
			if cancelRequested {
				cancelled = true
			}
			return nil
		})
	}
	_ = g.Wait()

	result := domain.BatchJobResult{
		ProcessedCount: processed,
		FailedCount:    failed,
		TotalItems:     len(job.Items),
	}
	switch {
	case fatal != nil:
		result.Status = domain.BatchJobStatusFailed
		result.Error = fatal.Error()
	case cancelled:
		result.Status = domain.BatchJobStatusCancelled
	case interrupted:
		result.Status = domain.BatchJobStatusRunning
		log.Warn("batch job interrupted by shutdown", "processed", processed, "failed", failed, "total", result.TotalItems)
		return result
	default:
		result.Status = domain.BatchJobStatusCompleted
	}

	log.Info("batch job finished", "status", result.Status, "processed", processed, "failed", failed, "total", result.TotalItems)
	return result
}

func (r *BatchJobRunner) cancelRequested(ctx context.Context, id string, log *logger.Logger) bool {
	requested, err := r.progress.IsCancelRequested(ctx, id)
	if err != nil {
		log.Warn("failed to read cancellation flag", "error", err)
		return false
	}
	return requested
}

// DistillHandler runs DistillTopic for topic items
type DistillHandler struct {
	distiller TopicDistiller
}

// TopicDistiller distills one stored topic into patches
type TopicDistiller interface {
	DistillTopic(ctx context.Context, organizationID, topicID string) (*service.DistillationResult, error)
}

func NewDistillHandler(distiller TopicDistiller) *DistillHandler {
	return &DistillHandler{distiller: distiller}
}

func (h *DistillHandler) HandleItem(ctx context.Context, job *domain.BatchJob, item domain.BatchItem) error {
	if item.Kind != domain.BatchItemTopic {
		return fmt.Errorf("unexpected item kind %q in %s job", item.Kind, job.Type)
	}
	_, err := h.distiller.DistillTopic(ctx, job.OrganizationID, item.ID)
	return err
}

// EmbedHandler indexes standard and recipe version items
type EmbedHandler struct {
	indexer ArtifactIndexer
}

func NewEmbedHandler(indexer ArtifactIndexer) *EmbedHandler {
	return &EmbedHandler{indexer: indexer}
}

func (h *EmbedHandler) HandleItem(ctx context.Context, job *domain.BatchJob, item domain.BatchItem) error {
	switch item.Kind {
	case domain.BatchItemStandardVersion:
		return h.indexer.IndexStandard(ctx, item.ID)
	case domain.BatchItemRecipeVersion:
		return h.indexer.IndexRecipe(ctx, item.ID)
	}
	return fmt.Errorf("unexpected item kind %q in %s job", item.Kind, job.Type)
}
