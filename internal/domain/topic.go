package domain

import (
	"fmt"
	"strings"
	"time"
)

// CaptureContext records where a topic was captured from
type CaptureContext string

const (
	CaptureContextMCP    CaptureContext = "MCP"
	CaptureContextManual CaptureContext = "MANUAL"
	CaptureContextCLI    CaptureContext = "CLI"
	CaptureContextImport CaptureContext = "IMPORT"
)

// TopicStatus is the stored status of a topic. Whether a topic has been
// distilled is derived from its linked patches, not stored here.
type TopicStatus string

const (
	TopicStatusPending TopicStatus = "PENDING"
)

// CodeExample is a snippet attached to a topic
type CodeExample struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Topic is a captured technical-decision note awaiting distillation
type Topic struct {
	ID             string
	SpaceID        string
	Title          string
	Content        string
	CodeExamples   []CodeExample
	CaptureContext CaptureContext
	CreatedBy      string
	Status         TopicStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// TopicStats summarises the distillation state of a space's topics
type TopicStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Distilled int `json:"distilled"`
}

// ParseCaptureContext converts a wire value into a CaptureContext.
// An empty value defaults to MANUAL.
func ParseCaptureContext(s string) (CaptureContext, error) {
	if s == "" {
		return CaptureContextManual, nil
	}
	c := CaptureContext(strings.ToUpper(s))
	if !isValidCaptureContext(c) {
		return "", ErrInvalidCaptureContext
	}
	return c, nil
}

// ValidateTopic validates a Topic instance
func ValidateTopic(t *Topic) error {
	if t == nil {
		return fmt.Errorf("topic cannot be nil")
	}
	if t.ID == "" {
		return NewDomainError(ErrCodeValidation, "topic ID is required")
	}
	if t.SpaceID == "" {
		return NewDomainError(ErrCodeValidation, "topic space ID is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewDomainError(ErrCodeValidation, "topic title is required")
	}
	if strings.TrimSpace(t.Content) == "" {
		return NewDomainError(ErrCodeValidation, "topic content is required")
	}
	if t.CreatedBy == "" {
		return NewDomainError(ErrCodeValidation, "topic creator is required")
	}
	if !isValidCaptureContext(t.CaptureContext) {
		return ErrInvalidCaptureContext
	}
	for i, ex := range t.CodeExamples {
		if strings.TrimSpace(ex.Code) == "" {
			return NewDomainError(ErrCodeValidation, fmt.Sprintf("code example %d is empty", i))
		}
	}
	return nil
}

func isValidCaptureContext(c CaptureContext) bool {
	switch c {
	case CaptureContextMCP, CaptureContextManual, CaptureContextCLI, CaptureContextImport:
		return true
	}
	return false
}
