package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/cloo-solutions/learnings/internal/api/middleware"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

const (
	testOrgID   = "org-1"
	testSpaceID = "space-1"
	testUserID  = "user-1"
	spacePrefix = "/organizations/{orgID}/spaces/{spaceID}/learnings"
	spacePath   = "/organizations/org-1/spaces/space-1/learnings"
)

// serve routes one request through chi so URL params resolve like in production.
func serve(method, pattern, path, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(middleware.Identity)
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, testUserID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type MockTopicService struct {
	mock.Mock
}

func (m *MockTopicService) Capture(ctx context.Context, input service.CaptureTopicInput) (*domain.Topic, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *MockTopicService) GetByID(ctx context.Context, id string) (*domain.Topic, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *MockTopicService) ListBySpace(ctx context.Context, spaceID string, pendingOnly bool) ([]*domain.Topic, error) {
	args := m.Called(ctx, spaceID, pendingOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Topic), args.Error(1)
}

func (m *MockTopicService) Stats(ctx context.Context, spaceID string) (*domain.TopicStats, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TopicStats), args.Error(1)
}

func (m *MockTopicService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTopicDistiller struct {
	mock.Mock
}

func (m *MockTopicDistiller) DistillTopic(ctx context.Context, organizationID, topicID string) (*service.DistillationResult, error) {
	args := m.Called(ctx, organizationID, topicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DistillationResult), args.Error(1)
}

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) EnqueueDistillAll(ctx context.Context, input service.EnqueueJobInput) (*domain.BatchJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

func (m *MockJobService) EnqueueEmbeddingBackfill(ctx context.Context, input service.EnqueueJobInput) (*domain.BatchJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

func (m *MockJobService) Get(ctx context.Context, organizationID, id string) (*domain.BatchJob, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

func (m *MockJobService) List(ctx context.Context, organizationID, spaceID string, limit int) ([]*domain.BatchJob, error) {
	args := m.Called(ctx, organizationID, spaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.BatchJob), args.Error(1)
}

func (m *MockJobService) Cancel(ctx context.Context, organizationID, id string) (*domain.BatchJob, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

type MockPatchService struct {
	mock.Mock
}

func (m *MockPatchService) GetByID(ctx context.Context, spaceID, id string) (*domain.KnowledgePatch, error) {
	args := m.Called(ctx, spaceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgePatch), args.Error(1)
}

func (m *MockPatchService) List(ctx context.Context, input service.ListPatchesInput) (*service.ListPatchesOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListPatchesOutput), args.Error(1)
}

func (m *MockPatchService) Accept(ctx context.Context, input service.AcceptPatchInput) (*service.AcceptPatchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AcceptPatchResult), args.Error(1)
}

func (m *MockPatchService) Reject(ctx context.Context, input service.RejectPatchInput) (*domain.KnowledgePatch, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgePatch), args.Error(1)
}

func (m *MockPatchService) AcceptBatch(ctx context.Context, input service.BatchReviewInput) []service.BatchReviewResult {
	args := m.Called(ctx, input)
	return args.Get(0).([]service.BatchReviewResult)
}

func (m *MockPatchService) RejectBatch(ctx context.Context, input service.BatchReviewInput) []service.BatchReviewResult {
	args := m.Called(ctx, input)
	return args.Get(0).([]service.BatchReviewResult)
}

func (m *MockPatchService) ArchiveURL(ctx context.Context, spaceID, id string) (string, error) {
	args := m.Called(ctx, spaceID, id)
	return args.String(0), args.Error(1)
}

type MockSemanticSearcher struct {
	mock.Mock
}

func (m *MockSemanticSearcher) SemanticSearch(ctx context.Context, input service.SemanticSearchInput) (*service.SemanticSearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SemanticSearchResult), args.Error(1)
}

type MockRagLabService struct {
	mock.Mock
}

func (m *MockRagLabService) Get(ctx context.Context, organizationID string) (*domain.RagLabConfiguration, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RagLabConfiguration), args.Error(1)
}

func (m *MockRagLabService) Update(ctx context.Context, input service.UpdateRagLabInput) (*domain.RagLabConfiguration, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RagLabConfiguration), args.Error(1)
}

type MockReembedder struct {
	mock.Mock
}

func (m *MockReembedder) TriggerFullReembedding(ctx context.Context, organizationID string) (*service.ReembeddingResult, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReembeddingResult), args.Error(1)
}
