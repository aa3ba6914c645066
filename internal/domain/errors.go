package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether any DomainError in err's chain carries the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidPatchType          = NewDomainError(ErrCodeValidation, "invalid knowledge patch type")
	ErrInvalidPatchStatus        = NewDomainError(ErrCodeValidation, "invalid knowledge patch status")
	ErrInvalidCaptureContext     = NewDomainError(ErrCodeValidation, "invalid capture context")
	ErrInvalidBatchJobType       = NewDomainError(ErrCodeValidation, "invalid batch job type")
	ErrInvalidEmbeddingJobStatus = NewDomainError(ErrCodeValidation, "invalid embedding job status")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
	ErrReviewNotesRequired       = NewDomainError(ErrCodeValidation, "review notes are required when rejecting a knowledge patch")
	ErrTargetRuleIDRequired      = NewDomainError(ErrCodeValidation, "targetRuleId is required for updateRule")
	ErrMalformedPatchPayload     = NewDomainError(ErrCodeValidation, "malformed knowledge patch payload")
)

// Not found errors
var (
	ErrTopicNotFound           = NewDomainError(ErrCodeNotFound, "topic not found")
	ErrKnowledgePatchNotFound  = NewDomainError(ErrCodeNotFound, "knowledge patch not found")
	ErrStandardNotFound        = NewDomainError(ErrCodeNotFound, "standard not found")
	ErrStandardVersionNotFound = NewDomainError(ErrCodeNotFound, "standard version not found")
	ErrRecipeNotFound          = NewDomainError(ErrCodeNotFound, "recipe not found")
	ErrRecipeVersionNotFound   = NewDomainError(ErrCodeNotFound, "recipe version not found")
	ErrRuleNotFound            = NewDomainError(ErrCodeNotFound, "rule not found")
	ErrSpaceNotFound           = NewDomainError(ErrCodeNotFound, "space not found")
	ErrBatchJobNotFound        = NewDomainError(ErrCodeNotFound, "batch job not found")
	ErrRagLabConfigNotFound    = NewDomainError(ErrCodeNotFound, "rag lab configuration not found")
	ErrReviewArchiveNotFound   = NewDomainError(ErrCodeNotFound, "review archive not configured")
)

// Configuration and generation errors
var (
	ErrAINotConfigured           = NewDomainError(ErrCodeConfiguration, "AI service not configured")
	ErrEmbeddingGenerationFailed = NewDomainError(ErrCodeGenerationFailed, "embedding generation returned an empty vector")
)

// NewInvalidStateError reports an operation attempted on an entity whose
// current status does not allow it.
func NewInvalidStateError(entity, id, expected, current string) *DomainError {
	return NewDomainError(
		ErrCodeInvalidState,
		fmt.Sprintf("%s %s is not %s (current status: %s)", entity, id, expected, current),
	)
}

// NewNotFoundError reports a missing entity by id, keeping the sentinel as cause.
func NewNotFoundError(sentinel *DomainError, id string) *DomainError {
	return NewDomainErrorWithCause(ErrCodeNotFound, fmt.Sprintf("%s: %s", sentinel.Message, id), sentinel)
}
