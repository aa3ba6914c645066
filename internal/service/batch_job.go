package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/telemetry"
)

const (
	DefaultJobListLimit = 20
	MaxJobListLimit     = 100
)

// BackfillSource lists the artifact versions an embedding backfill covers
type BackfillSource interface {
	FindArtifactsWithoutEmbeddings(ctx context.Context, spaceID string) (*domain.ArtifactsWithoutEmbeddings, error)
}

// BatchJobService enqueues and tracks batch jobs. Jobs are executed by the
// batch job workers.
type BatchJobService struct {
	repo     BatchJobRepositoryInterface
	topics   TopicRepositoryInterface
	backfill BackfillSource
	uuidGen  UUIDGenerator
	log      *logger.Logger
}

// NewBatchJobService creates a new BatchJobService instance
func NewBatchJobService(repo BatchJobRepositoryInterface, topics TopicRepositoryInterface, backfill BackfillSource, log *logger.Logger) *BatchJobService {
	return NewBatchJobServiceWithUUIDGen(repo, topics, backfill, log, &DefaultUUIDGenerator{})
}

// NewBatchJobServiceWithUUIDGen creates a new BatchJobService with custom UUID generator (for testing)
func NewBatchJobServiceWithUUIDGen(repo BatchJobRepositoryInterface, topics TopicRepositoryInterface, backfill BackfillSource, log *logger.Logger, uuidGen UUIDGenerator) *BatchJobService {
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchJobService{
		repo:     repo,
		topics:   topics,
		backfill: backfill,
		uuidGen:  uuidGen,
		log:      log.With("component", "batch_jobs"),
	}
}

type EnqueueJobInput struct {
	OrganizationID string
	SpaceID        string
	RequestedBy    string
}

// EnqueueDistillAll queues a job that distills every pending topic of the space.
// The item list is frozen now; topics captured later need another run.
func (s *BatchJobService) EnqueueDistillAll(ctx context.Context, input EnqueueJobInput) (*domain.BatchJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "BatchJobService.EnqueueDistillAll", telemetry.SpanAttributes{
		OrgID:     input.OrganizationID,
		SpaceID:   input.SpaceID,
		Operation: "enqueue_distill",
	})
	defer span.End()

	topics, err := s.topics.ListPendingBySpace(ctx, input.SpaceID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.BatchItem, 0, len(topics))
	// Oldest first, so the queue follows capture order.
	for i := len(topics) - 1; i >= 0; i-- {
		items = append(items, domain.BatchItem{Kind: domain.BatchItemTopic, ID: topics[i].ID})
	}

	return s.enqueue(ctx, domain.BatchJobTypeDistillTopics, input, items)
}

// EnqueueEmbeddingBackfill queues a job that indexes every latest version
// without an embedding.
func (s *BatchJobService) EnqueueEmbeddingBackfill(ctx context.Context, input EnqueueJobInput) (*domain.BatchJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "BatchJobService.EnqueueEmbeddingBackfill", telemetry.SpanAttributes{
		OrgID:     input.OrganizationID,
		SpaceID:   input.SpaceID,
		Operation: "enqueue_backfill",
	})
	defer span.End()

	missing, err := s.backfill.FindArtifactsWithoutEmbeddings(ctx, input.SpaceID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.BatchItem, 0, len(missing.Standards)+len(missing.Recipes))
	for _, v := range missing.Standards {
		items = append(items, domain.BatchItem{Kind: domain.BatchItemStandardVersion, ID: v.ID})
	}
	for _, v := range missing.Recipes {
		items = append(items, domain.BatchItem{Kind: domain.BatchItemRecipeVersion, ID: v.ID})
	}

	return s.enqueue(ctx, domain.BatchJobTypeEmbedArtifacts, input, items)
}

func (s *BatchJobService) enqueue(ctx context.Context, jobType domain.BatchJobType, input EnqueueJobInput, items []domain.BatchItem) (*domain.BatchJob, error) {
	job := &domain.BatchJob{
		ID:             s.uuidGen.NewString(),
		OrganizationID: input.OrganizationID,
		SpaceID:        input.SpaceID,
		Type:           jobType,
		Status:         domain.BatchJobStatusQueued,
		Items:          items,
		RequestedBy:    input.RequestedBy,
		CreatedAt:      time.Now().UTC(),
	}
	if err := domain.ValidateBatchJob(job); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info("batch job queued", "job_id", job.ID, "type", job.Type, "items", len(items))
	return job, nil
}

// Get returns a job. A non-empty organizationID must match the job's organization.
func (s *BatchJobService) Get(ctx context.Context, organizationID, id string) (*domain.BatchJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrBatchJobNotFound, id)
	}
	if organizationID != "" && job.OrganizationID != organizationID {
		return nil, domain.NewNotFoundError(domain.ErrBatchJobNotFound, id)
	}
	return job, nil
}

// List returns the most recent jobs of an organization, optionally for one space
func (s *BatchJobService) List(ctx context.Context, organizationID, spaceID string, limit int) ([]*domain.BatchJob, error) {
	if limit <= 0 {
		limit = DefaultJobListLimit
	}
	if limit > MaxJobListLimit {
		limit = MaxJobListLimit
	}
	return s.repo.ListByOrganization(ctx, organizationID, spaceID, limit)
}

// Cancel cancels a queued job or asks a running one to stop after its
// current item.
func (s *BatchJobService) Cancel(ctx context.Context, organizationID, id string) (*domain.BatchJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "BatchJobService.Cancel", telemetry.SpanAttributes{
		OrgID:     organizationID,
		JobID:     id,
		Operation: "cancel",
	})
	defer span.End()

	job, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, domain.NewInvalidStateError("batch job", id, "queued or running", string(job.Status))
	}

	updated, err := s.repo.RequestCancel(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, domain.NewInvalidStateError("batch job", id, "queued or running", string(current.Status))
	}

	s.log.Info("batch job cancellation requested", "job_id", id, "status", updated.Status)
	return updated, nil
}
