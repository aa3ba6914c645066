package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// DefaultSimilarityThreshold is the minimum cosine similarity of a match
const DefaultSimilarityThreshold = 0.7

// EmbeddingService indexes standard and recipe versions and answers
// similarity queries over them.
type EmbeddingService struct {
	ai            AIEmbedder
	standards     StandardsPort
	recipes       RecipesPort
	spaces        SpacesPort
	ragLab        RagLabConfigRepositoryInterface
	embeddingJobs EmbeddingJobRepositoryInterface
	uuidGen       UUIDGenerator
	log           *logger.Logger
}

// EmbeddingServiceDeps groups the collaborators of EmbeddingService
type EmbeddingServiceDeps struct {
	AI            AIEmbedder
	Standards     StandardsPort
	Recipes       RecipesPort
	Spaces        SpacesPort
	RagLab        RagLabConfigRepositoryInterface
	EmbeddingJobs EmbeddingJobRepositoryInterface
	UUIDGen       UUIDGenerator
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(deps EmbeddingServiceDeps, log *logger.Logger) *EmbeddingService {
	if log == nil {
		log = logger.NewNop()
	}
	uuidGen := deps.UUIDGen
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}
	return &EmbeddingService{
		ai:            deps.AI,
		standards:     deps.Standards,
		recipes:       deps.Recipes,
		spaces:        deps.Spaces,
		ragLab:        deps.RagLab,
		embeddingJobs: deps.EmbeddingJobs,
		uuidGen:       uuidGen,
		log:           log.With("component", "embeddings"),
	}
}

// IndexStandard generates and stores the embedding of a standard version.
// This method is called by the background worker.
func (s *EmbeddingService) IndexStandard(ctx context.Context, versionID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.IndexStandard", telemetry.SpanAttributes{
		Operation: "index_standard",
	})
	defer span.End()
	span.SetData("version_id", versionID)

	version, err := s.standards.GetStandardVersionByID(ctx, versionID)
	if err != nil {
		return notFoundOr(err, domain.ErrStandardVersionNotFound, versionID)
	}
	standard, err := s.standards.GetStandard(ctx, version.StandardID)
	if err != nil {
		return notFoundOr(err, domain.ErrStandardNotFound, version.StandardID)
	}
	cfg, err := s.configForSpace(ctx, standard.SpaceID)
	if err != nil {
		return err
	}

	text := ExtractStandardText(version, ExtractionOptionsFor(cfg))
	embedding, err := s.embed(ctx, text, cfg)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("standard version %s: %w", versionID, err)
	}

	if err := s.standards.UpdateStandardVersionEmbedding(ctx, versionID, embedding); err != nil {
		span.SetError(err)
		return err
	}

	s.log.Info("standard version indexed", "version_id", versionID, "dimensions", len(embedding), "model", cfg.EmbeddingModel)
	return nil
}

// IndexRecipe generates and stores the embedding of a recipe version
func (s *EmbeddingService) IndexRecipe(ctx context.Context, versionID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.IndexRecipe", telemetry.SpanAttributes{
		Operation: "index_recipe",
	})
	defer span.End()
	span.SetData("version_id", versionID)

	version, err := s.recipes.GetRecipeVersionByID(ctx, versionID)
	if err != nil {
		return notFoundOr(err, domain.ErrRecipeVersionNotFound, versionID)
	}
	recipe, err := s.recipes.GetRecipeByIDInternal(ctx, version.RecipeID)
	if err != nil {
		return notFoundOr(err, domain.ErrRecipeNotFound, version.RecipeID)
	}
	cfg, err := s.configForSpace(ctx, recipe.SpaceID)
	if err != nil {
		return err
	}

	text := ExtractRecipeText(version, ExtractionOptionsFor(cfg))
	embedding, err := s.embed(ctx, text, cfg)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("recipe version %s: %w", versionID, err)
	}

	if err := s.recipes.UpdateRecipeVersionEmbedding(ctx, versionID, embedding); err != nil {
		span.SetError(err)
		return err
	}

	s.log.Info("recipe version indexed", "version_id", versionID, "dimensions", len(embedding), "model", cfg.EmbeddingModel)
	return nil
}

// FindSimilarStandards returns standard versions whose similarity to the
// embedding reaches threshold (DefaultSimilarityThreshold when nil),
// best match first. An empty spaceID searches every space.
func (s *EmbeddingService) FindSimilarStandards(ctx context.Context, embedding []float32, spaceID string, threshold *float64, limit int) ([]domain.SimilarStandard, error) {
	results, err := s.standards.FindSimilarStandardsByEmbedding(ctx, embedding, spaceID, effectiveThreshold(threshold), limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	return results, nil
}

// FindSimilarRecipes is FindSimilarStandards for recipe versions
func (s *EmbeddingService) FindSimilarRecipes(ctx context.Context, embedding []float32, spaceID string, threshold *float64, limit int) ([]domain.SimilarRecipe, error) {
	results, err := s.recipes.FindSimilarRecipesByEmbedding(ctx, embedding, spaceID, effectiveThreshold(threshold), limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	return results, nil
}

// FindArtifactsWithoutEmbeddings lists the latest versions that have no vector yet
func (s *EmbeddingService) FindArtifactsWithoutEmbeddings(ctx context.Context, spaceID string) (*domain.ArtifactsWithoutEmbeddings, error) {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.FindArtifactsWithoutEmbeddings", telemetry.SpanAttributes{
		SpaceID:   spaceID,
		Operation: "find_missing_embeddings",
	})
	defer span.End()

	out := &domain.ArtifactsWithoutEmbeddings{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		standards, err := s.standards.FindLatestStandardVersionsWithoutEmbedding(gctx, spaceID)
		out.Standards = standards
		return err
	})
	g.Go(func() error {
		recipes, err := s.recipes.FindLatestRecipeVersionsWithoutEmbedding(gctx, spaceID)
		out.Recipes = recipes
		return err
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	s.log.Info("artifacts without embeddings found", "space_id", spaceID, "standards", len(out.Standards), "recipes", len(out.Recipes))
	return out, nil
}

// ReembeddingResult counts the versions queued by TriggerFullReembedding
type ReembeddingResult struct {
	StandardVersionsQueued int `json:"standardVersionsQueued"`
	RecipeVersionsQueued   int `json:"recipeVersionsQueued"`
	TotalQueued            int `json:"totalQueued"`
}

// TriggerFullReembedding queues every latest standard and recipe version of
// the organization for indexing. Enqueue failures are logged and skipped.
func (s *EmbeddingService) TriggerFullReembedding(ctx context.Context, organizationID string) (*ReembeddingResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.TriggerFullReembedding", telemetry.SpanAttributes{
		OrgID:     organizationID,
		Operation: "reembed",
	})
	defer span.End()

	if s.embeddingJobs == nil {
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "embedding job queue not configured")
	}

	spaces, err := s.spaces.ListSpacesByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	result := &ReembeddingResult{}
	now := time.Now().UTC()
	for _, space := range spaces {
		standards, err := s.standards.ListLatestStandardVersions(ctx, space.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range standards {
			if err := s.embeddingJobs.Create(ctx, domain.NewStandardEmbeddingJob(s.uuidGen.NewString(), v.ID, now)); err != nil {
				s.log.Warn("failed to queue standard version", "version_id", v.ID, "error", err)
				continue
			}
			result.StandardVersionsQueued++
		}

		recipes, err := s.recipes.ListLatestRecipeVersions(ctx, space.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range recipes {
			if err := s.embeddingJobs.Create(ctx, domain.NewRecipeEmbeddingJob(s.uuidGen.NewString(), v.ID, now)); err != nil {
				s.log.Warn("failed to queue recipe version", "version_id", v.ID, "error", err)
				continue
			}
			result.RecipeVersionsQueued++
		}
	}
	result.TotalQueued = result.StandardVersionsQueued + result.RecipeVersionsQueued

	s.log.Info("full re-embedding queued", "org_id", organizationID, "standards", result.StandardVersionsQueued, "recipes", result.RecipeVersionsQueued)
	return result, nil
}

// ConfigurationFor returns the organization's RAG lab configuration or the defaults
func (s *EmbeddingService) ConfigurationFor(ctx context.Context, organizationID string) (*domain.RagLabConfiguration, error) {
	if s.ragLab == nil {
		return domain.DefaultRagLabConfiguration(organizationID), nil
	}
	cfg, err := s.ragLab.GetByOrganization(ctx, organizationID)
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeNotFound) {
			return domain.DefaultRagLabConfiguration(organizationID), nil
		}
		return nil, err
	}
	return cfg, nil
}

func (s *EmbeddingService) configForSpace(ctx context.Context, spaceID string) (*domain.RagLabConfiguration, error) {
	space, err := s.spaces.GetSpaceByID(ctx, spaceID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrSpaceNotFound, spaceID)
	}
	return s.ConfigurationFor(ctx, space.OrganizationID)
}

func (s *EmbeddingService) embed(ctx context.Context, text string, cfg *domain.RagLabConfiguration) ([]float32, error) {
	if s.ai == nil || !s.ai.IsConfigured(ctx) {
		return nil, domain.ErrAINotConfigured
	}
	embedding, err := s.ai.Embed(ctx, text, cfg.EmbeddingOptions())
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, domain.ErrEmbeddingGenerationFailed
	}
	return embedding, nil
}

func effectiveThreshold(threshold *float64) float64 {
	if threshold == nil {
		return DefaultSimilarityThreshold
	}
	return *threshold
}

func notFoundOr(err error, sentinel *domain.DomainError, id string) error {
	if domain.IsCode(err, domain.ErrCodeNotFound) {
		return domain.NewNotFoundError(sentinel, id)
	}
	return err
}
