package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PatchType identifies what kind of artifact change a patch proposes
type PatchType string

const (
	PatchTypeUpdateStandard PatchType = "UPDATE_STANDARD"
	PatchTypeNewStandard    PatchType = "NEW_STANDARD"
	PatchTypeUpdateRecipe   PatchType = "UPDATE_RECIPE"
	PatchTypeNewRecipe      PatchType = "NEW_RECIPE"
)

// PatchStatus is the review state of a knowledge patch. The values are
// persisted verbatim.
type PatchStatus string

const (
	PatchStatusPendingReview PatchStatus = "PENDING_REVIEW"
	PatchStatusAccepted      PatchStatus = "ACCEPTED"
	PatchStatusRejected      PatchStatus = "REJECTED"
)

// KnowledgePatch is a reviewable proposal to change a standard or recipe
type KnowledgePatch struct {
	ID              string
	SpaceID         string
	TopicID         string
	PatchType       PatchType
	ProposedChanges json.RawMessage
	DiffOriginal    string
	DiffModified    string
	Status          PatchStatus
	ReviewedBy      *string
	ReviewedAt      *time.Time
	ReviewNotes     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PatchProposal is a distillation result before it is persisted as a patch
type PatchProposal struct {
	PatchType       PatchType
	ProposedChanges json.RawMessage
	DiffOriginal    string
	DiffModified    string
}

// PatchReview carries the fields written by a terminal transition
type PatchReview struct {
	Status     PatchStatus
	ReviewerID string
	ReviewedAt time.Time
	Notes      *string
}

// IsPending reports whether the patch can still be reviewed
func (p *KnowledgePatch) IsPending() bool {
	return p.Status == PatchStatusPendingReview
}

// ApplyReview moves a pending patch into a terminal state. It never touches
// a patch that already left PENDING_REVIEW.
func (p *KnowledgePatch) ApplyReview(review PatchReview) error {
	if !p.IsPending() {
		return NewInvalidStateError("knowledge patch", p.ID, "pending review", string(p.Status))
	}
	if review.Status != PatchStatusAccepted && review.Status != PatchStatusRejected {
		return ErrInvalidPatchStatus
	}
	reviewer := review.ReviewerID
	at := review.ReviewedAt
	p.Status = review.Status
	p.ReviewedBy = &reviewer
	p.ReviewedAt = &at
	p.ReviewNotes = review.Notes
	p.UpdatedAt = at
	return nil
}

// ParsePatchStatus converts a wire value into a PatchStatus
func ParsePatchStatus(s string) (PatchStatus, error) {
	status := PatchStatus(s)
	if !isValidPatchStatus(status) {
		return "", ErrInvalidPatchStatus
	}
	return status, nil
}

// ValidateKnowledgePatch validates a KnowledgePatch instance
func ValidateKnowledgePatch(p *KnowledgePatch) error {
	if p == nil {
		return fmt.Errorf("knowledge patch cannot be nil")
	}
	if p.ID == "" {
		return NewDomainError(ErrCodeValidation, "knowledge patch ID is required")
	}
	if p.SpaceID == "" {
		return NewDomainError(ErrCodeValidation, "knowledge patch space ID is required")
	}
	if p.TopicID == "" {
		return NewDomainError(ErrCodeValidation, "knowledge patch topic ID is required")
	}
	if !isValidPatchType(p.PatchType) {
		return ErrInvalidPatchType
	}
	if !isValidPatchStatus(p.Status) {
		return ErrInvalidPatchStatus
	}
	if len(p.ProposedChanges) == 0 || !json.Valid(p.ProposedChanges) {
		return ErrMalformedPatchPayload
	}
	return nil
}

func isValidPatchType(t PatchType) bool {
	switch t {
	case PatchTypeUpdateStandard, PatchTypeNewStandard, PatchTypeUpdateRecipe, PatchTypeNewRecipe:
		return true
	}
	return false
}

func isValidPatchStatus(s PatchStatus) bool {
	switch s {
	case PatchStatusPendingReview, PatchStatusAccepted, PatchStatusRejected:
		return true
	}
	return false
}
