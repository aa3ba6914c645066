package domain

import (
	"fmt"
	"time"
)

// BatchJobType names a job queue
type BatchJobType string

const (
	BatchJobTypeDistillTopics  BatchJobType = "distill_topics"
	BatchJobTypeEmbedArtifacts BatchJobType = "embed_artifacts"
)

// BatchJobStatus is the lifecycle state of a batch job
type BatchJobStatus string

const (
	BatchJobStatusQueued    BatchJobStatus = "queued"
	BatchJobStatusRunning   BatchJobStatus = "running"
	BatchJobStatusCompleted BatchJobStatus = "completed"
	BatchJobStatusFailed    BatchJobStatus = "failed"
	BatchJobStatusCancelled BatchJobStatus = "cancelled"
)

// BatchItemKind identifies what a batch item refers to
type BatchItemKind string

const (
	BatchItemTopic           BatchItemKind = "topic"
	BatchItemStandardVersion BatchItemKind = "standard_version"
	BatchItemRecipeVersion   BatchItemKind = "recipe_version"
)

// BatchItem is one unit of work of a batch job
type BatchItem struct {
	Kind BatchItemKind `json:"kind"`
	ID   string        `json:"id"`
}

// BatchJob is a background job that walks an ordered item list
type BatchJob struct {
	ID              string
	OrganizationID  string
	SpaceID         string
	Type            BatchJobType
	Status          BatchJobStatus
	Items           []BatchItem
	ProcessedCount  int
	FailedCount     int
	CancelRequested bool
	Error           string
	RequestedBy     string
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Attempted returns how many items have been run so far
func (j *BatchJob) Attempted() int {
	return j.ProcessedCount + j.FailedCount
}

// IsTerminal reports whether the job has finished
func (j *BatchJob) IsTerminal() bool {
	switch j.Status {
	case BatchJobStatusCompleted, BatchJobStatusFailed, BatchJobStatusCancelled:
		return true
	}
	return false
}

// BatchJobResult is the final report of a run
type BatchJobResult struct {
	Status         BatchJobStatus `json:"status"`
	ProcessedCount int            `json:"processedCount"`
	FailedCount    int            `json:"failedCount"`
	TotalItems     int            `json:"totalItems"`
	Error          string         `json:"error,omitempty"`
}

// ValidateBatchJob validates a BatchJob instance
func ValidateBatchJob(j *BatchJob) error {
	if j == nil {
		return fmt.Errorf("batch job cannot be nil")
	}
	if j.ID == "" {
		return NewDomainError(ErrCodeValidation, "batch job ID is required")
	}
	if j.OrganizationID == "" {
		return NewDomainError(ErrCodeValidation, "batch job organization ID is required")
	}
	if !IsValidBatchJobType(j.Type) {
		return ErrInvalidBatchJobType
	}
	for i, item := range j.Items {
		if item.ID == "" {
			return NewDomainError(ErrCodeValidation, fmt.Sprintf("batch item %d has no ID", i))
		}
	}
	return nil
}

// IsValidBatchJobType reports whether t is a known job queue
func IsValidBatchJobType(t BatchJobType) bool {
	switch t {
	case BatchJobTypeDistillTopics, BatchJobTypeEmbedArtifacts:
		return true
	}
	return false
}
