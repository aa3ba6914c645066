package domain

import (
	"fmt"
	"time"
)

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob is a queued request to index one artifact version
type EmbeddingJob struct {
	ID                string
	StandardVersionID string // Set for standard versions
	RecipeVersionID   string // Set for recipe versions
	Status            EmbeddingJobStatus
	Retries           int32
	Error             string
	CreatedAt         time.Time
	ProcessedAt       *time.Time
}

// NewStandardEmbeddingJob creates a pending job for a standard version
func NewStandardEmbeddingJob(id, standardVersionID string, createdAt time.Time) *EmbeddingJob {
	return &EmbeddingJob{
		ID:                id,
		StandardVersionID: standardVersionID,
		Status:            EmbeddingJobStatusPending,
		CreatedAt:         createdAt,
	}
}

// NewRecipeEmbeddingJob creates a pending job for a recipe version
func NewRecipeEmbeddingJob(id, recipeVersionID string, createdAt time.Time) *EmbeddingJob {
	return &EmbeddingJob{
		ID:              id,
		RecipeVersionID: recipeVersionID,
		Status:          EmbeddingJobStatusPending,
		CreatedAt:       createdAt,
	}
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	if j.StandardVersionID == "" && j.RecipeVersionID == "" {
		return fmt.Errorf("embedding job must have either StandardVersionID or RecipeVersionID")
	}

	if j.StandardVersionID != "" && j.RecipeVersionID != "" {
		return fmt.Errorf("embedding job cannot have both StandardVersionID and RecipeVersionID")
	}

	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}

	return nil
}

func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
