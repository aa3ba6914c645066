package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/pagination"
	"github.com/cloo-solutions/learnings/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPatchPageSize   = 20
	MaxPatchPageSize       = 100
	DefaultBatchReviewSize = 4
)

// PatchApplication applies accepted patches to the knowledge base
type PatchApplication interface {
	Apply(ctx context.Context, patch *domain.KnowledgePatch, organizationID, userID string) (bool, error)
}

// KnowledgePatchService manages the review lifecycle of knowledge patches
type KnowledgePatchService struct {
	repo       KnowledgePatchRepositoryInterface
	txRunner   TxRunner
	applier    PatchApplication
	archive    ReviewArchive
	uuidGen    UUIDGenerator
	log        *logger.Logger
	batchLimit int
}

// NewKnowledgePatchService creates a new KnowledgePatchService instance.
// applier and archive are optional.
func NewKnowledgePatchService(
	repo KnowledgePatchRepositoryInterface,
	txRunner TxRunner,
	applier PatchApplication,
	archive ReviewArchive,
	log *logger.Logger,
) *KnowledgePatchService {
	return NewKnowledgePatchServiceWithUUIDGen(repo, txRunner, applier, archive, log, &DefaultUUIDGenerator{})
}

// NewKnowledgePatchServiceWithUUIDGen creates a new KnowledgePatchService with custom UUID generator (for testing)
func NewKnowledgePatchServiceWithUUIDGen(
	repo KnowledgePatchRepositoryInterface,
	txRunner TxRunner,
	applier PatchApplication,
	archive ReviewArchive,
	log *logger.Logger,
	uuidGen UUIDGenerator,
) *KnowledgePatchService {
	if log == nil {
		log = logger.NewNop()
	}
	return &KnowledgePatchService{
		repo:       repo,
		txRunner:   txRunner,
		applier:    applier,
		archive:    archive,
		uuidGen:    uuidGen,
		log:        log.With("component", "knowledge_patches"),
		batchLimit: DefaultBatchReviewSize,
	}
}

// CreatePatches stores proposals for a topic as PENDING_REVIEW patches in one transaction
func (s *KnowledgePatchService) CreatePatches(ctx context.Context, topic *domain.Topic, proposals []domain.PatchProposal) ([]*domain.KnowledgePatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgePatchService.CreatePatches", telemetry.SpanAttributes{
		SpaceID:   topic.SpaceID,
		TopicID:   topic.ID,
		Operation: "create_patches",
	})
	defer span.End()

	patches := make([]*domain.KnowledgePatch, 0, len(proposals))
	if len(proposals) == 0 {
		return patches, nil
	}

	now := time.Now().UTC()
	for _, proposal := range proposals {
		patch := &domain.KnowledgePatch{
			ID:              s.uuidGen.NewString(),
			SpaceID:         topic.SpaceID,
			TopicID:         topic.ID,
			PatchType:       proposal.PatchType,
			ProposedChanges: proposal.ProposedChanges,
			DiffOriginal:    proposal.DiffOriginal,
			DiffModified:    proposal.DiffModified,
			Status:          domain.PatchStatusPendingReview,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := domain.ValidateKnowledgePatch(patch); err != nil {
			return nil, err
		}
		patches = append(patches, patch)
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		for _, patch := range patches {
			if err := repos.KnowledgePatches().Create(ctx, patch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.log.Info("knowledge patches created", "topic_id", topic.ID, "count", len(patches))
	return patches, nil
}

// GetByID retrieves a patch. A non-empty spaceID must match the patch's space.
func (s *KnowledgePatchService) GetByID(ctx context.Context, spaceID, id string) (*domain.KnowledgePatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgePatchService.GetByID", telemetry.SpanAttributes{
		SpaceID:   spaceID,
		PatchID:   id,
		Operation: "get",
	})
	defer span.End()

	return s.load(ctx, spaceID, id)
}

type ListPatchesInput struct {
	SpaceID string
	Status  string
	Cursor  string
	Limit   int
}

type ListPatchesOutput struct {
	Items   []*domain.KnowledgePatch
	Cursor  string
	HasMore bool
}

// List returns patches of a space, newest first, optionally filtered by status
func (s *KnowledgePatchService) List(ctx context.Context, input ListPatchesInput) (*ListPatchesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgePatchService.List", telemetry.SpanAttributes{
		SpaceID:   input.SpaceID,
		Operation: "list",
	})
	defer span.End()

	var status domain.PatchStatus
	if input.Status != "" {
		parsed, err := domain.ParsePatchStatus(input.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultPatchPageSize
	}
	if limit > MaxPatchPageSize {
		limit = MaxPatchPageSize
	}

	page, err := s.repo.ListBySpaceWithCursor(ctx, input.SpaceID, status, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListPatchesOutput{Items: page.Items, Cursor: page.NextCursor, HasMore: page.HasMore}, nil
}

// ListPendingReview returns the first page of patches awaiting review
func (s *KnowledgePatchService) ListPendingReview(ctx context.Context, spaceID string) ([]*domain.KnowledgePatch, error) {
	out, err := s.List(ctx, ListPatchesInput{
		SpaceID: spaceID,
		Status:  string(domain.PatchStatusPendingReview),
		Limit:   MaxPatchPageSize,
	})
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListByTopic returns every patch produced from a topic
func (s *KnowledgePatchService) ListByTopic(ctx context.Context, topicID string) ([]*domain.KnowledgePatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgePatchService.ListByTopic", telemetry.SpanAttributes{
		TopicID:   topicID,
		Operation: "list_by_topic",
	})
	defer span.End()

	return s.repo.ListByTopic(ctx, topicID)
}

type AcceptPatchInput struct {
	PatchID        string
	SpaceID        string
	OrganizationID string
	ReviewerID     string
	Notes          string
}

// AcceptPatchResult reports the accepted patch and whether it was applied.
// ApplyError is set when application failed after the acceptance was stored.
type AcceptPatchResult struct {
	Patch      *domain.KnowledgePatch
	Applied    bool
	ApplyError string
}

// Accept moves a pending patch to ACCEPTED and applies it when an applier is wired
func (s *KnowledgePatchService) Accept(ctx context.Context, input AcceptPatchInput) (*AcceptPatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgePatchService.Accept", telemetry.SpanAttributes{
		OrgID:     input.OrganizationID,
		SpaceID:   input.SpaceID,
		PatchID:   input.PatchID,
		Operation: "accept",
	})
	defer span.End()

	var notes *string
	if trimmed := strings.TrimSpace(input.Notes); trimmed != "" {
		notes = &trimmed
	}

	patch, err := s.review(ctx, input.SpaceID, input.PatchID, domain.PatchReview{
		Status:     domain.PatchStatusAccepted,
		ReviewerID: input.ReviewerID,
		Notes:      notes,
	})
	if err != nil {
		return nil, err
	}

	result := &AcceptPatchResult{Patch: patch}
	if s.applier == nil {
		return result, nil
	}

	applied, err := s.applier.Apply(ctx, patch, input.OrganizationID, input.ReviewerID)
	if err != nil {
		span.SetError(err)
		s.log.Error("accepted patch could not be applied", "patch_id", patch.ID, "error", err)
		result.ApplyError = err.Error()
		return result, nil
	}
	result.Applied = applied
	return result, nil
}

type RejectPatchInput struct {
	PatchID    string
	SpaceID    string
	ReviewerID string
	Notes      string
}

// Reject moves a pending patch to REJECTED. Notes are mandatory.
func (s *KnowledgePatchService) Reject(ctx context.Context, input RejectPatchInput) (*domain.KnowledgePatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgePatchService.Reject", telemetry.SpanAttributes{
		SpaceID:   input.SpaceID,
		PatchID:   input.PatchID,
		Operation: "reject",
	})
	defer span.End()

	notes := strings.TrimSpace(input.Notes)
	if notes == "" {
		return nil, domain.ErrReviewNotesRequired
	}

	return s.review(ctx, input.SpaceID, input.PatchID, domain.PatchReview{
		Status:     domain.PatchStatusRejected,
		ReviewerID: input.ReviewerID,
		Notes:      &notes,
	})
}

// BatchReviewInput reviews several patches with the same reviewer and notes
type BatchReviewInput struct {
	PatchIDs       []string
	SpaceID        string
	OrganizationID string
	ReviewerID     string
	Notes          string
}

// BatchReviewResult is the outcome for one id of a batch review
type BatchReviewResult struct {
	PatchID    string                 `json:"patchId"`
	Success    bool                   `json:"success"`
	Applied    bool                   `json:"applied,omitempty"`
	ApplyError string                 `json:"applyError,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Patch      *domain.KnowledgePatch `json:"-"`
}

// AcceptBatch accepts every id independently
func (s *KnowledgePatchService) AcceptBatch(ctx context.Context, input BatchReviewInput) []BatchReviewResult {
	return s.forEachPatch(ctx, input.PatchIDs, func(ctx context.Context, id string) BatchReviewResult {
		res, err := s.Accept(ctx, AcceptPatchInput{
			PatchID:        id,
			SpaceID:        input.SpaceID,
			OrganizationID: input.OrganizationID,
			ReviewerID:     input.ReviewerID,
			Notes:          input.Notes,
		})
		if err != nil {
			return BatchReviewResult{PatchID: id, Error: err.Error()}
		}
		return BatchReviewResult{PatchID: id, Success: true, Applied: res.Applied, ApplyError: res.ApplyError, Patch: res.Patch}
	})
}

// RejectBatch rejects every id independently
func (s *KnowledgePatchService) RejectBatch(ctx context.Context, input BatchReviewInput) []BatchReviewResult {
	return s.forEachPatch(ctx, input.PatchIDs, func(ctx context.Context, id string) BatchReviewResult {
		patch, err := s.Reject(ctx, RejectPatchInput{
			PatchID:    id,
			SpaceID:    input.SpaceID,
			ReviewerID: input.ReviewerID,
			Notes:      input.Notes,
		})
		if err != nil {
			return BatchReviewResult{PatchID: id, Error: err.Error()}
		}
		return BatchReviewResult{PatchID: id, Success: true, Patch: patch}
	})
}

// ArchiveURL returns a presigned link to the archived review record
func (s *KnowledgePatchService) ArchiveURL(ctx context.Context, spaceID, id string) (string, error) {
	if s.archive == nil {
		return "", domain.ErrReviewArchiveNotFound
	}

	patch, err := s.load(ctx, spaceID, id)
	if err != nil {
		return "", err
	}
	if patch.IsPending() {
		return "", domain.NewInvalidStateError("knowledge patch", patch.ID, "reviewed", string(patch.Status))
	}

	return s.archive.PresignGet(ctx, archiveKey(patch))
}

func (s *KnowledgePatchService) forEachPatch(ctx context.Context, ids []string, fn func(context.Context, string) BatchReviewResult) []BatchReviewResult {
	results := make([]BatchReviewResult, len(ids))

	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = fn(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *KnowledgePatchService) review(ctx context.Context, spaceID, id string, review domain.PatchReview) (*domain.KnowledgePatch, error) {
	if review.ReviewerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "reviewer ID is required")
	}

	patch, err := s.load(ctx, spaceID, id)
	if err != nil {
		return nil, err
	}

	review.ReviewedAt = time.Now().UTC()
	if err := patch.ApplyReview(review); err != nil {
		return nil, err
	}

	updated, err := s.repo.TransitionReview(ctx, patch.ID, review)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost a race with another reviewer.
		current, err := s.repo.GetByID(ctx, patch.ID)
		if err != nil {
			return nil, err
		}
		return nil, domain.NewInvalidStateError("knowledge patch", patch.ID, "pending review", string(current.Status))
	}

	s.log.Info("knowledge patch reviewed", "patch_id", patch.ID, "status", patch.Status, "reviewer", review.ReviewerID)
	s.archiveReview(ctx, patch)
	return patch, nil
}

func (s *KnowledgePatchService) load(ctx context.Context, spaceID, id string) (*domain.KnowledgePatch, error) {
	patch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeNotFound) {
			return nil, domain.NewNotFoundError(domain.ErrKnowledgePatchNotFound, id)
		}
		return nil, err
	}
	if spaceID != "" && patch.SpaceID != spaceID {
		return nil, domain.NewNotFoundError(domain.ErrKnowledgePatchNotFound, id)
	}
	return patch, nil
}

type reviewRecord struct {
	PatchID         string          `json:"patchId"`
	SpaceID         string          `json:"spaceId"`
	TopicID         string          `json:"topicId"`
	PatchType       string          `json:"patchType"`
	Status          string          `json:"status"`
	ReviewedBy      string          `json:"reviewedBy"`
	ReviewedAt      time.Time       `json:"reviewedAt"`
	ReviewNotes     string          `json:"reviewNotes,omitempty"`
	ProposedChanges json.RawMessage `json:"proposedChanges"`
	DiffOriginal    string          `json:"diffOriginal"`
	DiffModified    string          `json:"diffModified"`
}

func (s *KnowledgePatchService) archiveReview(ctx context.Context, patch *domain.KnowledgePatch) {
	if s.archive == nil {
		return
	}

	record := reviewRecord{
		PatchID:         patch.ID,
		SpaceID:         patch.SpaceID,
		TopicID:         patch.TopicID,
		PatchType:       string(patch.PatchType),
		Status:          string(patch.Status),
		ProposedChanges: patch.ProposedChanges,
		DiffOriginal:    patch.DiffOriginal,
		DiffModified:    patch.DiffModified,
	}
	if patch.ReviewedBy != nil {
		record.ReviewedBy = *patch.ReviewedBy
	}
	if patch.ReviewedAt != nil {
		record.ReviewedAt = *patch.ReviewedAt
	}
	if patch.ReviewNotes != nil {
		record.ReviewNotes = *patch.ReviewNotes
	}

	body, err := json.Marshal(record)
	if err != nil {
		s.log.Warn("failed to encode review record", "patch_id", patch.ID, "error", err)
		return
	}
	if err := s.archive.PutJSON(ctx, archiveKey(patch), body); err != nil {
		s.log.Warn("failed to archive review", "patch_id", patch.ID, "error", err)
	}
}

func archiveKey(patch *domain.KnowledgePatch) string {
	return fmt.Sprintf("spaces/%s/patches/%s.json", patch.SpaceID, patch.ID)
}
