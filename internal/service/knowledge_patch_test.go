package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingPatch(id string) *domain.KnowledgePatch {
	return &domain.KnowledgePatch{
		ID:              id,
		SpaceID:         "space-1",
		TopicID:         "topic-1",
		PatchType:       domain.PatchTypeUpdateStandard,
		ProposedChanges: json.RawMessage(`{"standardId":"std-1","changes":{"rulesToAdd":["Use TypeScript"]},"rationale":"r"}`),
		DiffOriginal:    "# Frontend\n\n",
		DiffModified:    "# Frontend\n\n- Use TypeScript",
		Status:          domain.PatchStatusPendingReview,
	}
}

func TestKnowledgePatchService_CreatePatches(t *testing.T) {
	ctx := context.Background()
	topic := newTestTopic()

	t.Run("no proposals skips the transaction", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		txRunner := &testTxRunner{repos: &testTxRepos{patches: repo}}
		service := NewKnowledgePatchService(repo, txRunner, nil, nil, nil)

		patches, err := service.CreatePatches(ctx, topic, nil)
		require.NoError(t, err)
		assert.NotNil(t, patches)
		assert.Empty(t, patches)
		assert.False(t, txRunner.called)
	})

	t.Run("all proposals are stored pending review", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.KnowledgePatch")).Return(nil)
		txRunner := &testTxRunner{repos: &testTxRepos{patches: repo}}
		service := NewKnowledgePatchServiceWithUUIDGen(repo, txRunner, nil, nil, nil, NewMockUUIDGenerator("p-1", "p-2"))

		patches, err := service.CreatePatches(ctx, topic, []domain.PatchProposal{
			{PatchType: domain.PatchTypeNewStandard, ProposedChanges: json.RawMessage(`{"name":"A"}`), DiffModified: "# A"},
			{PatchType: domain.PatchTypeNewRecipe, ProposedChanges: json.RawMessage(`{"name":"B"}`), DiffModified: "# B"},
		})
		require.NoError(t, err)
		require.Len(t, patches, 2)
		assert.Equal(t, "p-1", patches[0].ID)
		assert.Equal(t, "p-2", patches[1].ID)
		for _, p := range patches {
			assert.Equal(t, domain.PatchStatusPendingReview, p.Status)
			assert.Equal(t, "topic-1", p.TopicID)
			assert.Nil(t, p.ReviewedBy)
		}
		assert.True(t, txRunner.called)
		repo.AssertNumberOfCalls(t, "Create", 2)
	})

	t.Run("malformed payload is rejected before storing", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		txRunner := &testTxRunner{repos: &testTxRepos{patches: repo}}
		service := NewKnowledgePatchService(repo, txRunner, nil, nil, nil)

		_, err := service.CreatePatches(ctx, topic, []domain.PatchProposal{
			{PatchType: domain.PatchTypeNewStandard, ProposedChanges: json.RawMessage(`{not json`)},
		})
		assert.ErrorIs(t, err, domain.ErrMalformedPatchPayload)
		assert.False(t, txRunner.called)
	})

	t.Run("repository failure is returned", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))
		txRunner := &testTxRunner{repos: &testTxRepos{patches: repo}}
		service := NewKnowledgePatchService(repo, txRunner, nil, nil, nil)

		_, err := service.CreatePatches(ctx, topic, []domain.PatchProposal{
			{PatchType: domain.PatchTypeNewRecipe, ProposedChanges: json.RawMessage(`{}`)},
		})
		assert.EqualError(t, err, "insert failed")
	})
}

func TestKnowledgePatchService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("pending patch is accepted and applied", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		applier := new(MockPatchApplication)
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)
		repo.On("TransitionReview", mock.Anything, "patch-1", mock.MatchedBy(func(r domain.PatchReview) bool {
			return r.Status == domain.PatchStatusAccepted && r.ReviewerID == "user-1" && r.Notes == nil
		})).Return(true, nil)
		applier.On("Apply", mock.Anything, mock.AnythingOfType("*domain.KnowledgePatch"), "org-1", "user-1").Return(true, nil)

		service := NewKnowledgePatchService(repo, nil, applier, nil, nil)
		result, err := service.Accept(ctx, AcceptPatchInput{
			PatchID:        "patch-1",
			SpaceID:        "space-1",
			OrganizationID: "org-1",
			ReviewerID:     "user-1",
			Notes:          "  ",
		})

		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Empty(t, result.ApplyError)
		assert.Equal(t, domain.PatchStatusAccepted, result.Patch.Status)
		require.NotNil(t, result.Patch.ReviewedBy)
		assert.Equal(t, "user-1", *result.Patch.ReviewedBy)
		assert.NotNil(t, result.Patch.ReviewedAt)
		assert.Nil(t, result.Patch.ReviewNotes)
	})

	t.Run("already reviewed patch is an invalid state", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		accepted := pendingPatch("patch-1")
		accepted.Status = domain.PatchStatusAccepted
		repo.On("GetByID", mock.Anything, "patch-1").Return(accepted, nil)

		service := NewKnowledgePatchService(repo, nil, nil, nil, nil)
		_, err := service.Accept(ctx, AcceptPatchInput{PatchID: "patch-1", SpaceID: "space-1", ReviewerID: "user-1"})

		assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidState))
		repo.AssertNotCalled(t, "TransitionReview", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing the transition race reports the current status", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		rejected := pendingPatch("patch-1")
		rejected.Status = domain.PatchStatusRejected
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil).Once()
		repo.On("GetByID", mock.Anything, "patch-1").Return(rejected, nil).Once()
		repo.On("TransitionReview", mock.Anything, "patch-1", mock.Anything).Return(false, nil)

		service := NewKnowledgePatchService(repo, nil, nil, nil, nil)
		_, err := service.Accept(ctx, AcceptPatchInput{PatchID: "patch-1", SpaceID: "space-1", ReviewerID: "user-1"})

		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidState))
		assert.Contains(t, err.Error(), string(domain.PatchStatusRejected))
	})

	t.Run("patch of another space is not found", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)

		service := NewKnowledgePatchService(repo, nil, nil, nil, nil)
		_, err := service.Accept(ctx, AcceptPatchInput{PatchID: "patch-1", SpaceID: "space-2", ReviewerID: "user-1"})

		assert.ErrorIs(t, err, domain.ErrKnowledgePatchNotFound)
	})

	t.Run("apply failure keeps the acceptance", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		applier := new(MockPatchApplication)
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)
		repo.On("TransitionReview", mock.Anything, "patch-1", mock.Anything).Return(true, nil)
		applier.On("Apply", mock.Anything, mock.Anything, "org-1", "user-1").Return(false, domain.NewNotFoundError(domain.ErrStandardNotFound, "std-1"))

		service := NewKnowledgePatchService(repo, nil, applier, nil, nil)
		result, err := service.Accept(ctx, AcceptPatchInput{PatchID: "patch-1", SpaceID: "space-1", OrganizationID: "org-1", ReviewerID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, domain.PatchStatusAccepted, result.Patch.Status)
		assert.False(t, result.Applied)
		assert.Contains(t, result.ApplyError, "standard not found")
	})

	t.Run("reviewer is required", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		service := NewKnowledgePatchService(repo, nil, nil, nil, nil)

		_, err := service.Accept(ctx, AcceptPatchInput{PatchID: "patch-1", SpaceID: "space-1"})
		assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestKnowledgePatchService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("notes are trimmed and stored", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)
		repo.On("TransitionReview", mock.Anything, "patch-1", mock.MatchedBy(func(r domain.PatchReview) bool {
			return r.Status == domain.PatchStatusRejected && r.Notes != nil && *r.Notes == "duplicate of an existing rule"
		})).Return(true, nil)

		service := NewKnowledgePatchService(repo, nil, nil, nil, nil)
		patch, err := service.Reject(ctx, RejectPatchInput{
			PatchID:    "patch-1",
			SpaceID:    "space-1",
			ReviewerID: "user-1",
			Notes:      "  duplicate of an existing rule\n",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.PatchStatusRejected, patch.Status)
		require.NotNil(t, patch.ReviewNotes)
		assert.Equal(t, "duplicate of an existing rule", *patch.ReviewNotes)
	})

	for _, notes := range []string{"", "   ", "\n\t"} {
		t.Run("blank notes are rejected: "+jsonQuote(notes), func(t *testing.T) {
			repo := new(MockKnowledgePatchRepository)
			service := NewKnowledgePatchService(repo, nil, nil, nil, nil)

			_, err := service.Reject(ctx, RejectPatchInput{PatchID: "patch-1", SpaceID: "space-1", ReviewerID: "user-1", Notes: notes})

			assert.ErrorIs(t, err, domain.ErrReviewNotesRequired)
			repo.AssertNotCalled(t, "TransitionReview", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("rejecting an accepted patch fails", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		accepted := pendingPatch("patch-1")
		accepted.Status = domain.PatchStatusAccepted
		repo.On("GetByID", mock.Anything, "patch-1").Return(accepted, nil)

		service := NewKnowledgePatchService(repo, nil, nil, nil, nil)
		_, err := service.Reject(ctx, RejectPatchInput{PatchID: "patch-1", SpaceID: "space-1", ReviewerID: "user-1", Notes: "no"})

		assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidState))
	})
}

func TestKnowledgePatchService_Batch(t *testing.T) {
	ctx := context.Background()

	repo := new(MockKnowledgePatchRepository)
	accepted := pendingPatch("patch-2")
	accepted.Status = domain.PatchStatusAccepted
	repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)
	repo.On("GetByID", mock.Anything, "patch-2").Return(accepted, nil)
	repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrKnowledgePatchNotFound)
	repo.On("TransitionReview", mock.Anything, "patch-1", mock.Anything).Return(true, nil)

	service := NewKnowledgePatchService(repo, nil, nil, nil, nil)

	t.Run("reject batch reports per-id results in order", func(t *testing.T) {
		results := service.RejectBatch(ctx, BatchReviewInput{
			PatchIDs:   []string{"patch-1", "patch-2", "missing"},
			SpaceID:    "space-1",
			ReviewerID: "user-1",
			Notes:      "out of scope",
		})

		require.Len(t, results, 3)
		assert.Equal(t, "patch-1", results[0].PatchID)
		assert.True(t, results[0].Success)
		assert.Equal(t, domain.PatchStatusRejected, results[0].Patch.Status)

		assert.Equal(t, "patch-2", results[1].PatchID)
		assert.False(t, results[1].Success)
		assert.NotEmpty(t, results[1].Error)

		assert.Equal(t, "missing", results[2].PatchID)
		assert.False(t, results[2].Success)
		assert.Contains(t, results[2].Error, "knowledge patch not found")
	})

	t.Run("reject batch with blank notes fails every id", func(t *testing.T) {
		results := service.RejectBatch(ctx, BatchReviewInput{PatchIDs: []string{"a", "b"}, SpaceID: "space-1", ReviewerID: "user-1"})
		for _, r := range results {
			assert.False(t, r.Success)
			assert.Equal(t, domain.ErrReviewNotesRequired.Error(), r.Error)
		}
	})
}

func TestKnowledgePatchService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("limit is clamped and status parsed", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		repo.On("ListBySpaceWithCursor", mock.Anything, "space-1", domain.PatchStatusPendingReview, (*pagination.Cursor)(nil), MaxPatchPageSize).
			Return(&KnowledgePatchPageResult{Items: []*domain.KnowledgePatch{pendingPatch("p-1")}, NextCursor: "next", HasMore: true}, nil)

		service := NewKnowledgePatchService(repo, nil, nil, nil, nil)
		out, err := service.List(ctx, ListPatchesInput{SpaceID: "space-1", Status: "PENDING_REVIEW", Limit: 1000})

		require.NoError(t, err)
		assert.Len(t, out.Items, 1)
		assert.Equal(t, "next", out.Cursor)
		assert.True(t, out.HasMore)
	})

	t.Run("unknown status is a validation error", func(t *testing.T) {
		service := NewKnowledgePatchService(new(MockKnowledgePatchRepository), nil, nil, nil, nil)
		_, err := service.List(ctx, ListPatchesInput{SpaceID: "space-1", Status: "DRAFT"})
		assert.ErrorIs(t, err, domain.ErrInvalidPatchStatus)
	})

	t.Run("garbage cursor is a validation error", func(t *testing.T) {
		service := NewKnowledgePatchService(new(MockKnowledgePatchRepository), nil, nil, nil, nil)
		_, err := service.List(ctx, ListPatchesInput{SpaceID: "space-1", Cursor: "%%%"})
		assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	})
}

func TestKnowledgePatchService_Archive(t *testing.T) {
	ctx := context.Background()

	t.Run("review record is archived after a transition", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		archive := new(MockReviewArchive)
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)
		repo.On("TransitionReview", mock.Anything, "patch-1", mock.Anything).Return(true, nil)
		archive.On("PutJSON", mock.Anything, "spaces/space-1/patches/patch-1.json", mock.MatchedBy(func(body []byte) bool {
			var record map[string]any
			return json.Unmarshal(body, &record) == nil && record["status"] == "REJECTED" && record["reviewNotes"] == "no"
		})).Return(nil)

		service := NewKnowledgePatchService(repo, nil, nil, archive, nil)
		_, err := service.Reject(ctx, RejectPatchInput{PatchID: "patch-1", SpaceID: "space-1", ReviewerID: "user-1", Notes: "no"})

		require.NoError(t, err)
		archive.AssertExpectations(t)
	})

	t.Run("archive failure does not fail the review", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		archive := new(MockReviewArchive)
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)
		repo.On("TransitionReview", mock.Anything, "patch-1", mock.Anything).Return(true, nil)
		archive.On("PutJSON", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket unavailable"))

		service := NewKnowledgePatchService(repo, nil, nil, archive, nil)
		result, err := service.Accept(ctx, AcceptPatchInput{PatchID: "patch-1", SpaceID: "space-1", ReviewerID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, domain.PatchStatusAccepted, result.Patch.Status)
	})

	t.Run("presigned url for a reviewed patch", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		archive := new(MockReviewArchive)
		reviewed := pendingPatch("patch-1")
		reviewed.Status = domain.PatchStatusAccepted
		repo.On("GetByID", mock.Anything, "patch-1").Return(reviewed, nil)
		archive.On("PresignGet", mock.Anything, "spaces/space-1/patches/patch-1.json").Return("https://signed", nil)

		service := NewKnowledgePatchService(repo, nil, nil, archive, nil)
		url, err := service.ArchiveURL(ctx, "space-1", "patch-1")

		require.NoError(t, err)
		assert.Equal(t, "https://signed", url)
	})

	t.Run("pending patch has no archive", func(t *testing.T) {
		repo := new(MockKnowledgePatchRepository)
		repo.On("GetByID", mock.Anything, "patch-1").Return(pendingPatch("patch-1"), nil)

		service := NewKnowledgePatchService(repo, nil, nil, new(MockReviewArchive), nil)
		_, err := service.ArchiveURL(ctx, "space-1", "patch-1")

		assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidState))
	})

	t.Run("archive not configured", func(t *testing.T) {
		service := NewKnowledgePatchService(new(MockKnowledgePatchRepository), nil, nil, nil, nil)
		_, err := service.ArchiveURL(ctx, "space-1", "patch-1")
		assert.ErrorIs(t, err, domain.ErrReviewArchiveNotFound)
	})
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
