package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) Complete(ctx context.Context, model, prompt string) (string, error) {
	args := m.Called(ctx, model, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string, opts domain.EmbeddingOptions) ([]float32, error) {
	args := m.Called(ctx, text, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func newTestClient(api *MockOpenAIAPI) *Client {
	c := newClient(api, api, Config{}, nil)
	c.retryBackoff = time.Millisecond
	return c
}

func TestClient_Execute_ParsesJSONObject(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("Complete", mock.Anything, DefaultCompletionModel, "prompt").
		Return(`{"action":"addRule","content":"Use TypeScript"}`, nil)

	result, err := client.Execute(context.Background(), "prompt")
	require.NoError(t, err)
	require.True(t, result.Success)

	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "addRule", data["action"])
	mockAPI.AssertExpectations(t)
}

func TestClient_Execute_StripsCodeFence(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("```json\n[\"std-1\",\"std-2\"]\n```", nil)

	result, err := client.Execute(context.Background(), "prompt")
	require.NoError(t, err)

	data, ok := result.Data.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"std-1", "std-2"}, data)
}

func TestClient_Execute_KeepsPlainText(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("  no match here  ", nil)

	result, err := client.Execute(context.Background(), "prompt")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "no match here", result.Data)
}

func TestClient_Execute_RetriesThenReportsFailure(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("connection reset")).Times(DefaultMaxRetries)

	result, err := client.Execute(context.Background(), "prompt")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection reset")
	mockAPI.AssertNumberOfCalls(t, "Complete", DefaultMaxRetries)
}

func TestClient_Execute_RecoversOnRetry(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("503")).Once()
	mockAPI.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(`{"ids":[]}`, nil).Once()

	result, err := client.Execute(context.Background(), "prompt")
	require.NoError(t, err)
	assert.True(t, result.Success)
	mockAPI.AssertNumberOfCalls(t, "Complete", 2)
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient("", nil)

	assert.False(t, client.IsConfigured(context.Background()))

	_, err := client.Execute(context.Background(), "prompt")
	assert.ErrorIs(t, err, domain.ErrAINotConfigured)

	_, err = client.Embed(context.Background(), "text", nil)
	assert.ErrorIs(t, err, domain.ErrAINotConfigured)
}

func TestClient_Embed_UsesOptions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	expected := make([]float32, 256)
	opts := domain.EmbeddingOptions{Model: "text-embedding-3-large", Dimensions: 256}
	mockAPI.On("CreateEmbeddings", mock.Anything, "Go standards", opts).Return(expected, nil)

	embedding, err := client.Embed(context.Background(), "Go standards", &opts)
	require.NoError(t, err)
	assert.Len(t, embedding, 256)
	mockAPI.AssertExpectations(t)
}

func TestClient_Embed_Defaults(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	expected := make([]float32, DefaultEmbeddingDimensions)
	mockAPI.On("CreateEmbeddings", mock.Anything, "text", domain.EmbeddingOptions{
		Model:      DefaultEmbeddingModel,
		Dimensions: DefaultEmbeddingDimensions,
	}).Return(expected, nil)

	embedding, err := client.Embed(context.Background(), "text", nil)
	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestClient_Embed_EmptyText(t *testing.T) {
	client := newTestClient(new(MockOpenAIAPI))

	embedding, err := client.Embed(context.Background(), "", nil)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_Embed_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything, mock.Anything).Return(make([]float32, 10), nil)

	_, err := client.Embed(context.Background(), "text", nil)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_Embed_EmptyVectorIsPassedThrough(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything, mock.Anything).Return([]float32{}, nil)

	embedding, err := client.Embed(context.Background(), "text", nil)
	require.NoError(t, err)
	assert.Empty(t, embedding)
}

func TestClient_Embed_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newTestClient(mockAPI)

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("API rate limit exceeded"))

	embedding, err := client.Embed(context.Background(), "text", nil)
	assert.Nil(t, embedding)
	assert.Contains(t, err.Error(), "failed to create embedding")
}

func TestNewClientWithConfig(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "test-api-key", CompletionModel: "gpt-4.1-mini", EmbeddingDimensions: 512}, nil)

	assert.True(t, client.IsConfigured(context.Background()))
	assert.Equal(t, "gpt-4.1-mini", client.model)
	assert.Equal(t, 512, client.defaults.Dimensions)
	assert.Equal(t, DefaultEmbeddingModel, client.defaults.Model)
}
