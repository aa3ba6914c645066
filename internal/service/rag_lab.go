package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/telemetry"
)

// RagLabService reads and updates per-organization embedding settings
type RagLabService struct {
	repo    RagLabConfigRepositoryInterface
	uuidGen UUIDGenerator
}

// NewRagLabService creates a new RagLabService instance
func NewRagLabService(repo RagLabConfigRepositoryInterface) *RagLabService {
	return &RagLabService{repo: repo, uuidGen: &DefaultUUIDGenerator{}}
}

// Get returns the stored configuration, or the defaults when none exists
func (s *RagLabService) Get(ctx context.Context, organizationID string) (*domain.RagLabConfiguration, error) {
	ctx, span := telemetry.StartSpan(ctx, "RagLabService.Get", telemetry.SpanAttributes{
		OrgID:     organizationID,
		Operation: "get",
	})
	defer span.End()

	cfg, err := s.repo.GetByOrganization(ctx, organizationID)
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeNotFound) {
			return domain.DefaultRagLabConfiguration(organizationID), nil
		}
		return nil, err
	}
	return cfg, nil
}

type UpdateRagLabInput struct {
	OrganizationID      string
	EmbeddingModel      *string
	EmbeddingDimensions *int
	IncludeCodeBlocks   *bool
	MaxTextLength       *int
}

// Update merges the given fields into the current configuration and stores it.
// Changing model or dimensions does not re-embed anything by itself.
func (s *RagLabService) Update(ctx context.Context, input UpdateRagLabInput) (*domain.RagLabConfiguration, error) {
	ctx, span := telemetry.StartSpan(ctx, "RagLabService.Update", telemetry.SpanAttributes{
		OrgID:     input.OrganizationID,
		Operation: "update",
	})
	defer span.End()

	cfg, err := s.Get(ctx, input.OrganizationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = s.uuidGen.NewString()
		cfg.CreatedAt = now
	}
	if input.EmbeddingModel != nil {
		cfg.EmbeddingModel = *input.EmbeddingModel
	}
	if input.EmbeddingDimensions != nil {
		cfg.EmbeddingDimensions = *input.EmbeddingDimensions
	}
	if input.IncludeCodeBlocks != nil {
		cfg.IncludeCodeBlocks = *input.IncludeCodeBlocks
	}
	if input.MaxTextLength != nil {
		cfg.MaxTextLength = *input.MaxTextLength
	}
	cfg.UpdatedAt = now

	if err := domain.ValidateRagLabConfiguration(cfg); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		span.SetError(err)
		return nil, err
	}
	return cfg, nil
}
