package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/pagination"
)

// AICompleter runs structured completions against the AI collaborator
type AICompleter interface {
	IsConfigured(ctx context.Context) bool
	Execute(ctx context.Context, prompt string) (*domain.CompletionResult, error)
}

// AIEmbedder generates embedding vectors. opts may be nil.
type AIEmbedder interface {
	IsConfigured(ctx context.Context) bool
	Embed(ctx context.Context, text string, opts *domain.EmbeddingOptions) ([]float32, error)
}

// StandardsPort is the standards capability used by distillation, patch
// application and indexing.
type StandardsPort interface {
	ListStandardsBySpace(ctx context.Context, spaceID string) ([]*domain.Standard, error)
	GetStandard(ctx context.Context, id string) (*domain.Standard, error)
	GetLatestRulesByStandardID(ctx context.Context, standardID string) ([]domain.Rule, error)
	GetStandardVersionByID(ctx context.Context, versionID string) (*domain.StandardVersion, error)
	AddRuleToStandard(ctx context.Context, cmd domain.AddRuleCommand) (*domain.StandardVersion, error)
	UpdateStandardRules(ctx context.Context, cmd domain.UpdateRuleCommand) (*domain.StandardVersion, error)
	UpdateStandardVersionEmbedding(ctx context.Context, versionID string, embedding []float32) error
	FindSimilarStandardsByEmbedding(ctx context.Context, embedding []float32, spaceID string, threshold float64, limit int) ([]domain.SimilarStandard, error)
	ListLatestStandardVersions(ctx context.Context, spaceID string) ([]*domain.StandardVersion, error)
	FindLatestStandardVersionsWithoutEmbedding(ctx context.Context, spaceID string) ([]*domain.StandardVersion, error)
}

// RecipesPort is the recipes capability
type RecipesPort interface {
	ListRecipesByOrganization(ctx context.Context, organizationID string) ([]*domain.Recipe, error)
	GetRecipeByIDInternal(ctx context.Context, id string) (*domain.Recipe, error)
	GetRecipeVersionByID(ctx context.Context, versionID string) (*domain.RecipeVersion, error)
	UpdateRecipeVersionEmbedding(ctx context.Context, versionID string, embedding []float32) error
	FindSimilarRecipesByEmbedding(ctx context.Context, embedding []float32, spaceID string, threshold float64, limit int) ([]domain.SimilarRecipe, error)
	ListLatestRecipeVersions(ctx context.Context, spaceID string) ([]*domain.RecipeVersion, error)
	FindLatestRecipeVersionsWithoutEmbedding(ctx context.Context, spaceID string) ([]*domain.RecipeVersion, error)
}

// SpacesPort resolves spaces and their organizations
type SpacesPort interface {
	GetSpaceByID(ctx context.Context, id string) (*domain.Space, error)
	ListSpacesByOrganization(ctx context.Context, organizationID string) ([]*domain.Space, error)
}

// TopicRepositoryInterface defines the repository interface for topic persistence
type TopicRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Topic) error
	GetByID(ctx context.Context, id string) (*domain.Topic, error)
	ListBySpace(ctx context.Context, spaceID string) ([]*domain.Topic, error)
	// ListPendingBySpace returns live topics that no patch references yet
	ListPendingBySpace(ctx context.Context, spaceID string) ([]*domain.Topic, error)
	GetStats(ctx context.Context, spaceID string) (*domain.TopicStats, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// KnowledgePatchRepositoryInterface defines the repository interface for patch persistence
type KnowledgePatchRepositoryInterface interface {
	Create(ctx context.Context, p *domain.KnowledgePatch) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgePatch, error)
	ListBySpaceWithCursor(ctx context.Context, spaceID string, status domain.PatchStatus, cursor *pagination.Cursor, limit int) (*KnowledgePatchPageResult, error)
	ListByTopic(ctx context.Context, topicID string) ([]*domain.KnowledgePatch, error)
	// TransitionReview writes a terminal review only while the patch is still
	// PENDING_REVIEW. It reports false when no row was updated.
	TransitionReview(ctx context.Context, id string, review domain.PatchReview) (bool, error)
}

type KnowledgePatchPageResult struct {
	Items      []*domain.KnowledgePatch
	NextCursor string
	HasMore    bool
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// RagLabConfigRepositoryInterface stores per-organization embedding settings
type RagLabConfigRepositoryInterface interface {
	GetByOrganization(ctx context.Context, organizationID string) (*domain.RagLabConfiguration, error)
	Upsert(ctx context.Context, cfg *domain.RagLabConfiguration) error
}

// BatchJobRepositoryInterface defines the repository interface for batch job persistence
type BatchJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.BatchJob) error
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	ListByOrganization(ctx context.Context, organizationID, spaceID string, limit int) ([]*domain.BatchJob, error)
	// RequestCancel flags a queued or running job. Queued jobs are cancelled
	// immediately. Returns nil when the job is already terminal.
	RequestCancel(ctx context.Context, id string, at time.Time) (*domain.BatchJob, error)
}

// ReviewArchive stores review records outside the database
type ReviewArchive interface {
	PutJSON(ctx context.Context, key string, body []byte) error
	PresignGet(ctx context.Context, key string) (string, error)
}
