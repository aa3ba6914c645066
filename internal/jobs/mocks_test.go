package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepository
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmbeddingJob), args.Error(1)
}

func (m *MockEmbeddingJobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockEmbeddingJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockArtifactIndexer is a mock implementation of ArtifactIndexer
type MockArtifactIndexer struct {
	mock.Mock
}

func (m *MockArtifactIndexer) IndexStandard(ctx context.Context, versionID string) error {
	args := m.Called(ctx, versionID)
	return args.Error(0)
}

func (m *MockArtifactIndexer) IndexRecipe(ctx context.Context, versionID string) error {
	args := m.Called(ctx, versionID)
	return args.Error(0)
}

// MockTopicDistiller is a mock implementation of TopicDistiller
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

// MockBatchJobStore is a mock implementation of BatchJobStore
type MockBatchJobStore struct {
	mock.Mock
}

func (m *MockBatchJobStore) ClaimNext(ctx context.Context, jobType domain.BatchJobType, at time.Time) (*domain.BatchJob, error) {
	args := m.Called(ctx, jobType, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

func (m *MockBatchJobStore) Finish(ctx context.Context, id string, result domain.BatchJobResult, at time.Time) error {
	args := m.Called(ctx, id, result, at)
	return args.Error(0)
}

func (m *MockBatchJobStore) ResetRunning(ctx context.Context, jobType domain.BatchJobType) (int64, error) {
	args := m.Called(ctx, jobType)
	return args.Get(0).(int64), args.Error(1)
}

// fakeProgress records progress writes and raises the cancel flag after a
// given number of attempted items.
type fakeProgress struct {
	mu          sync.Mutex
	cancelAfter int
	writes      [][2]int
	reads       int
}

func (p *fakeProgress) UpdateProgress(_ context.Context, _ string, processed, failed int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, [2]int{processed, failed})
	return p.cancelAfter > 0 && processed+failed >= p.cancelAfter, nil
}

func (p *fakeProgress) IsCancelRequested(_ context.Context, _ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.cancelAfter <= 0 || len(p.writes) == 0 {
		return false, nil
	}
	last := p.writes[len(p.writes)-1]
	return last[0]+last[1] >= p.cancelAfter, nil
}
