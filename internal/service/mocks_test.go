package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	mock.Mock
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

// MockAI is a mock implementation of AICompleter and AIEmbedder
type MockAI struct {
	mock.Mock
}

func (m *MockAI) IsConfigured(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockAI) Execute(ctx context.Context, prompt string) (*domain.CompletionResult, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionResult), args.Error(1)
}

func (m *MockAI) Embed(ctx context.Context, text string, opts *domain.EmbeddingOptions) ([]float32, error) {
	args := m.Called(ctx, text, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func promptContaining(fragment string) interface{} {
	return mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, fragment)
	})
}

func aiAnswer(data any) *domain.CompletionResult {
	return &domain.CompletionResult{Success: true, Data: data}
}

// MockStandardsPort is a mock implementation of StandardsPort
type MockStandardsPort struct {
	mock.Mock
}

func (m *MockStandardsPort) ListStandardsBySpace(ctx context.Context, spaceID string) ([]*domain.Standard, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Standard), args.Error(1)
}

func (m *MockStandardsPort) GetStandard(ctx context.Context, id string) (*domain.Standard, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Standard), args.Error(1)
}

func (m *MockStandardsPort) GetLatestRulesByStandardID(ctx context.Context, standardID string) ([]domain.Rule, error) {
	args := m.Called(ctx, standardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Rule), args.Error(1)
}

func (m *MockStandardsPort) GetStandardVersionByID(ctx context.Context, versionID string) (*domain.StandardVersion, error) {
	args := m.Called(ctx, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StandardVersion), args.Error(1)
}

func (m *MockStandardsPort) AddRuleToStandard(ctx context.Context, cmd domain.AddRuleCommand) (*domain.StandardVersion, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StandardVersion), args.Error(1)
}

func (m *MockStandardsPort) UpdateStandardRules(ctx context.Context, cmd domain.UpdateRuleCommand) (*domain.StandardVersion, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StandardVersion), args.Error(1)
}

func (m *MockStandardsPort) UpdateStandardVersionEmbedding(ctx context.Context, versionID string, embedding []float32) error {
	args := m.Called(ctx, versionID, embedding)
	return args.Error(0)
}

func (m *MockStandardsPort) FindSimilarStandardsByEmbedding(ctx context.Context, embedding []float32, spaceID string, threshold float64, limit int) ([]domain.SimilarStandard, error) {
	args := m.Called(ctx, embedding, spaceID, threshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SimilarStandard), args.Error(1)
}

func (m *MockStandardsPort) ListLatestStandardVersions(ctx context.Context, spaceID string) ([]*domain.StandardVersion, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StandardVersion), args.Error(1)
}

func (m *MockStandardsPort) FindLatestStandardVersionsWithoutEmbedding(ctx context.Context, spaceID string) ([]*domain.StandardVersion, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StandardVersion), args.Error(1)
}

// MockRecipesPort is a mock implementation of RecipesPort
type MockRecipesPort struct {
	mock.Mock
}

func (m *MockRecipesPort) ListRecipesByOrganization(ctx context.Context, organizationID string) ([]*domain.Recipe, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Recipe), args.Error(1)
}

func (m *MockRecipesPort) GetRecipeByIDInternal(ctx context.Context, id string) (*domain.Recipe, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Recipe), args.Error(1)
}

func (m *MockRecipesPort) GetRecipeVersionByID(ctx context.Context, versionID string) (*domain.RecipeVersion, error) {
	args := m.Called(ctx, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecipeVersion), args.Error(1)
}

func (m *MockRecipesPort) UpdateRecipeVersionEmbedding(ctx context.Context, versionID string, embedding []float32) error {
	args := m.Called(ctx, versionID, embedding)
	return args.Error(0)
}

func (m *MockRecipesPort) FindSimilarRecipesByEmbedding(ctx context.Context, embedding []float32, spaceID string, threshold float64, limit int) ([]domain.SimilarRecipe, error) {
	args := m.Called(ctx, embedding, spaceID, threshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SimilarRecipe), args.Error(1)
}

func (m *MockRecipesPort) ListLatestRecipeVersions(ctx context.Context, spaceID string) ([]*domain.RecipeVersion, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RecipeVersion), args.Error(1)
}

func (m *MockRecipesPort) FindLatestRecipeVersionsWithoutEmbedding(ctx context.Context, spaceID string) ([]*domain.RecipeVersion, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RecipeVersion), args.Error(1)
}

// MockSpacesPort is a mock implementation of SpacesPort
type MockSpacesPort struct {
	mock.Mock
}

func (m *MockSpacesPort) GetSpaceByID(ctx context.Context, id string) (*domain.Space, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Space), args.Error(1)
}

func (m *MockSpacesPort) ListSpacesByOrganization(ctx context.Context, organizationID string) ([]*domain.Space, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Space), args.Error(1)
}

// MockTopicRepository is a mock implementation of TopicRepositoryInterface
type MockTopicRepository struct {
	mock.Mock
}

func (m *MockTopicRepository) Create(ctx context.Context, t *domain.Topic) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTopicRepository) GetByID(ctx context.Context, id string) (*domain.Topic, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *MockTopicRepository) ListBySpace(ctx context.Context, spaceID string) ([]*domain.Topic, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Topic), args.Error(1)
}

func (m *MockTopicRepository) ListPendingBySpace(ctx context.Context, spaceID string) ([]*domain.Topic, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Topic), args.Error(1)
}

func (m *MockTopicRepository) GetStats(ctx context.Context, spaceID string) (*domain.TopicStats, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TopicStats), args.Error(1)
}

func (m *MockTopicRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockKnowledgePatchRepository is a mock implementation of KnowledgePatchRepositoryInterface
type MockKnowledgePatchRepository struct {
	mock.Mock
}

func (m *MockKnowledgePatchRepository) Create(ctx context.Context, p *domain.KnowledgePatch) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockKnowledgePatchRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgePatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgePatch), args.Error(1)
}

func (m *MockKnowledgePatchRepository) ListBySpaceWithCursor(ctx context.Context, spaceID string, status domain.PatchStatus, cursor *pagination.Cursor, limit int) (*KnowledgePatchPageResult, error) {
	args := m.Called(ctx, spaceID, status, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*KnowledgePatchPageResult), args.Error(1)
}

func (m *MockKnowledgePatchRepository) ListByTopic(ctx context.Context, topicID string) ([]*domain.KnowledgePatch, error) {
	args := m.Called(ctx, topicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgePatch), args.Error(1)
}

func (m *MockKnowledgePatchRepository) TransitionReview(ctx context.Context, id string, review domain.PatchReview) (bool, error) {
	args := m.Called(ctx, id, review)
	return args.Bool(0), args.Error(1)
}

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepositoryInterface
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockRagLabConfigRepository is a mock implementation of RagLabConfigRepositoryInterface
type MockRagLabConfigRepository struct {
	mock.Mock
}

func (m *MockRagLabConfigRepository) GetByOrganization(ctx context.Context, organizationID string) (*domain.RagLabConfiguration, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RagLabConfiguration), args.Error(1)
}

func (m *MockRagLabConfigRepository) Upsert(ctx context.Context, cfg *domain.RagLabConfiguration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockBatchJobRepository is a mock implementation of BatchJobRepositoryInterface
type MockBatchJobRepository struct {
	mock.Mock
}

func (m *MockBatchJobRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockBatchJobRepository) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

func (m *MockBatchJobRepository) ListByOrganization(ctx context.Context, organizationID, spaceID string, limit int) ([]*domain.BatchJob, error) {
	args := m.Called(ctx, organizationID, spaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.BatchJob), args.Error(1)
}

func (m *MockBatchJobRepository) RequestCancel(ctx context.Context, id string, at time.Time) (*domain.BatchJob, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

// MockReviewArchive is a mock implementation of ReviewArchive
type MockReviewArchive struct {
	mock.Mock
}

func (m *MockReviewArchive) PutJSON(ctx context.Context, key string, body []byte) error {
	args := m.Called(ctx, key, body)
	return args.Error(0)
}

func (m *MockReviewArchive) PresignGet(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockPatchApplication is a mock implementation of PatchApplication
type MockPatchApplication struct {
	mock.Mock
}

func (m *MockPatchApplication) Apply(ctx context.Context, patch *domain.KnowledgePatch, organizationID, userID string) (bool, error) {
	args := m.Called(ctx, patch, organizationID, userID)
	return args.Bool(0), args.Error(1)
}
