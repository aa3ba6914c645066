package domain

import (
	"fmt"
	"time"
)

// Embedding defaults used when an organization has no RAG lab configuration
const (
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimensions = 1536
	DefaultMaxTextLength       = 8000
)

// RagLabConfiguration holds per-organization embedding settings
type RagLabConfiguration struct {
	ID                  string
	OrganizationID      string
	EmbeddingModel      string
	EmbeddingDimensions int
	IncludeCodeBlocks   bool
	MaxTextLength       int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DefaultRagLabConfiguration returns the fallback configuration for an organization
func DefaultRagLabConfiguration(organizationID string) *RagLabConfiguration {
	return &RagLabConfiguration{
		OrganizationID:      organizationID,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		IncludeCodeBlocks:   false,
		MaxTextLength:       DefaultMaxTextLength,
	}
}

// EmbeddingOptions returns the options passed to the embedding capability
func (c *RagLabConfiguration) EmbeddingOptions() *EmbeddingOptions {
	return &EmbeddingOptions{Model: c.EmbeddingModel, Dimensions: c.EmbeddingDimensions}
}

// ValidateRagLabConfiguration validates a RagLabConfiguration instance
func ValidateRagLabConfiguration(c *RagLabConfiguration) error {
	if c == nil {
		return fmt.Errorf("rag lab configuration cannot be nil")
	}
	if c.OrganizationID == "" {
		return NewDomainError(ErrCodeValidation, "organization ID is required")
	}
	if c.EmbeddingModel == "" {
		return NewDomainError(ErrCodeValidation, "embedding model is required")
	}
	if c.EmbeddingDimensions <= 0 {
		return NewDomainError(ErrCodeValidation, "embedding dimensions must be positive")
	}
	if c.MaxTextLength <= 0 {
		return NewDomainError(ErrCodeValidation, "max text length must be positive")
	}
	return nil
}
