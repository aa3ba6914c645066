package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/telemetry"
	"github.com/google/uuid"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// TopicService handles capture and lookup of topics
type TopicService struct {
	repo    TopicRepositoryInterface
	uuidGen UUIDGenerator
	log     *logger.Logger
}

// NewTopicService creates a new TopicService instance
func NewTopicService(repo TopicRepositoryInterface, log *logger.Logger) *TopicService {
	return NewTopicServiceWithUUIDGen(repo, log, &DefaultUUIDGenerator{})
}

// NewTopicServiceWithUUIDGen creates a new TopicService with custom UUID generator (for testing)
func NewTopicServiceWithUUIDGen(repo TopicRepositoryInterface, log *logger.Logger, uuidGen UUIDGenerator) *TopicService {
	if log == nil {
		log = logger.NewNop()
	}
	return &TopicService{
		repo:    repo,
		uuidGen: uuidGen,
		log:     log.With("component", "topic_service"),
	}
}

// CaptureTopicInput represents the input for capturing a topic
type CaptureTopicInput struct {
	SpaceID        string
	Title          string
	Content        string
	CodeExamples   []domain.CodeExample
	CaptureContext string
	CreatedBy      string
}

// Capture stores a new topic in PENDING status
func (s *TopicService) Capture(ctx context.Context, input CaptureTopicInput) (*domain.Topic, error) {
	ctx, span := telemetry.StartSpan(ctx, "TopicService.Capture", telemetry.SpanAttributes{
		SpaceID:   input.SpaceID,
		Operation: "capture",
	})
	defer span.End()

	captureContext, err := domain.ParseCaptureContext(input.CaptureContext)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	topic := &domain.Topic{
		ID:             s.uuidGen.NewString(),
		SpaceID:        input.SpaceID,
		Title:          strings.TrimSpace(input.Title),
		Content:        input.Content,
		CodeExamples:   input.CodeExamples,
		CaptureContext: captureContext,
		CreatedBy:      input.CreatedBy,
		Status:         domain.TopicStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := domain.ValidateTopic(topic); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, topic); err != nil {
		span.SetError(err)
		return nil, err
	}

	s.log.Info("topic captured", "topic_id", topic.ID, "space_id", topic.SpaceID, "capture_context", topic.CaptureContext, "created_by", topic.CreatedBy)
	return topic, nil
}

// GetByID retrieves a live topic by ID
func (s *TopicService) GetByID(ctx context.Context, id string) (*domain.Topic, error) {
	ctx, span := telemetry.StartSpan(ctx, "TopicService.GetByID", telemetry.SpanAttributes{
		TopicID:   id,
		Operation: "get",
	})
	defer span.End()

	return s.repo.GetByID(ctx, id)
}

// ListBySpace lists the live topics of a space, newest first.
// With pendingOnly set only topics without any patch are returned.
func (s *TopicService) ListBySpace(ctx context.Context, spaceID string, pendingOnly bool) ([]*domain.Topic, error) {
	ctx, span := telemetry.StartSpan(ctx, "TopicService.ListBySpace", telemetry.SpanAttributes{
		SpaceID:   spaceID,
		Operation: "list",
	})
	defer span.End()

	if pendingOnly {
		return s.repo.ListPendingBySpace(ctx, spaceID)
	}
	return s.repo.ListBySpace(ctx, spaceID)
}

// Stats reports how many topics of a space have been distilled
func (s *TopicService) Stats(ctx context.Context, spaceID string) (*domain.TopicStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "TopicService.Stats", telemetry.SpanAttributes{
		SpaceID:   spaceID,
		Operation: "stats",
	})
	defer span.End()

	return s.repo.GetStats(ctx, spaceID)
}

// Delete soft-deletes a topic. Its patches are kept.
func (s *TopicService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "TopicService.Delete", telemetry.SpanAttributes{
		TopicID:   id,
		Operation: "delete",
	})
	defer span.End()

	topic, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		span.SetError(err)
		return err
	}

	s.log.Info("topic deleted", "topic_id", id, "space_id", topic.SpaceID)
	return nil
}
