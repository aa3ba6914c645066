package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultCompletionModel     = "gpt-5-mini"
	DefaultEmbeddingModel      = domain.DefaultEmbeddingModel
	DefaultEmbeddingDimensions = domain.DefaultEmbeddingDimensions
	DefaultMaxRetries          = 3
	DefaultRequestTimeout      = 60 * time.Second
	defaultRetryBackoff        = 500 * time.Millisecond
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrEmptyCompletion is returned when the model answers with no content
	ErrEmptyCompletion = errors.New("completion returned no content")
)

// CompletionAPI sends a single prompt and returns the raw answer text
type CompletionAPI interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string, opts domain.EmbeddingOptions) ([]float32, error)
}

// OpenAIAdapter implements CompletionAPI and EmbeddingAPI on go-openai
type OpenAIAdapter struct {
	client *openai.Client
}

func NewOpenAIAdapter(apiKey, baseURL string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(cfg)}
}

// Complete asks for a JSON object answer to the prompt
func (a *OpenAIAdapter) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string, opts domain.EmbeddingOptions) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(opts.Model),
		Dimensions: opts.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}

	return resp.Data[0].Embedding, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	CompletionModel     string
	EmbeddingModel      string
	EmbeddingDimensions int
	MaxRetries          int
	RequestTimeout      time.Duration
}

// Client is the AI collaborator: structured completions and embeddings
type Client struct {
	completion     CompletionAPI
	embedding      EmbeddingAPI
	model          string
	defaults       domain.EmbeddingOptions
	maxRetries     int
	requestTimeout time.Duration
	retryBackoff   time.Duration
	log            *logger.Logger
}

// NewClient creates a client with defaults for everything but the key.
func NewClient(apiKey string, log *logger.Logger) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey}, log)
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
// An empty API key yields a client that reports itself as not configured.
func NewClientWithConfig(cfg Config, log *logger.Logger) *Client {
	c := newClient(nil, nil, cfg, log)
	if cfg.APIKey != "" {
		adapter := NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL)
		c.completion = adapter
		c.embedding = adapter
	}
	return c
}

func newClient(completion CompletionAPI, embedding EmbeddingAPI, cfg Config, log *logger.Logger) *Client {
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = DefaultCompletionModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		completion:     completion,
		embedding:      embedding,
		model:          cfg.CompletionModel,
		defaults:       domain.EmbeddingOptions{Model: cfg.EmbeddingModel, Dimensions: cfg.EmbeddingDimensions},
		maxRetries:     cfg.MaxRetries,
		requestTimeout: cfg.RequestTimeout,
		retryBackoff:   defaultRetryBackoff,
		log:            log.With("component", "openai"),
	}
}

// IsConfigured reports whether a provider is wired
func (c *Client) IsConfigured(ctx context.Context) bool {
	return c.completion != nil && c.embedding != nil
}

// Execute sends the prompt and returns the answer. Provider failures are
// reported through an unsuccessful result after all retries are spent.
func (c *Client) Execute(ctx context.Context, prompt string) (*domain.CompletionResult, error) {
	if !c.IsConfigured(ctx) {
		return nil, domain.ErrAINotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		content, err := c.complete(ctx, prompt)
		if err == nil {
			return &domain.CompletionResult{Success: true, Data: parseContent(content)}, nil
		}
		lastErr = err
		c.log.Warn("completion attempt failed", "attempt", attempt+1, "max_attempts", c.maxRetries, "error", err)
	}

	return &domain.CompletionResult{Success: false, Error: lastErr.Error()}, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	content, err := c.completion.Complete(ctx, c.model, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// Embed generates an embedding for text. opts may be nil, in which case the
// client defaults are used.
func (c *Client) Embed(ctx context.Context, text string, opts *domain.EmbeddingOptions) ([]float32, error) {
	if !c.IsConfigured(ctx) {
		return nil, domain.ErrAINotConfigured
	}
	if text == "" {
		return nil, ErrEmptyText
	}

	effective := c.defaults
	if opts != nil {
		if opts.Model != "" {
			effective.Model = opts.Model
		}
		if opts.Dimensions > 0 {
			effective.Dimensions = opts.Dimensions
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	embedding, err := c.embedding.CreateEmbeddings(ctx, text, effective)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) > 0 && len(embedding) != effective.Dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, effective.Dimensions, len(embedding))
	}

	return embedding, nil
}

// parseContent returns decoded JSON when the answer is a JSON object or
// array, and the trimmed text otherwise.
func parseContent(content string) any {
	trimmed := stripCodeFence(strings.TrimSpace(content))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return trimmed
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
