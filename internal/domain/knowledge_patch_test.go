package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingPatch() *KnowledgePatch {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &KnowledgePatch{
		ID:              "patch-1",
		SpaceID:         "space-1",
		TopicID:         "topic-1",
		PatchType:       PatchTypeUpdateStandard,
		ProposedChanges: json.RawMessage(`{"standardId":"std-1","changes":{"rulesToAdd":["Use strict mode"]}}`),
		Status:          PatchStatusPendingReview,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPatchStatusWireValues(t *testing.T) {
	assert.Equal(t, "PENDING_REVIEW", string(PatchStatusPendingReview))
	assert.Equal(t, "ACCEPTED", string(PatchStatusAccepted))
	assert.Equal(t, "REJECTED", string(PatchStatusRejected))

	for _, s := range []string{"PENDING_REVIEW", "ACCEPTED", "REJECTED"} {
		parsed, err := ParsePatchStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(parsed))
	}

	_, err := ParsePatchStatus("pending_review")
	assert.ErrorIs(t, err, ErrInvalidPatchStatus)
}

func TestKnowledgePatch_ApplyReview(t *testing.T) {
	reviewedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	t.Run("accepts pending patch", func(t *testing.T) {
		p := newPendingPatch()
		err := p.ApplyReview(PatchReview{Status: PatchStatusAccepted, ReviewerID: "user-1", ReviewedAt: reviewedAt})
		require.NoError(t, err)

		assert.Equal(t, PatchStatusAccepted, p.Status)
		require.NotNil(t, p.ReviewedBy)
		assert.Equal(t, "user-1", *p.ReviewedBy)
		require.NotNil(t, p.ReviewedAt)
		assert.Equal(t, reviewedAt, *p.ReviewedAt)
		assert.Nil(t, p.ReviewNotes)
	})

	t.Run("rejects pending patch with notes", func(t *testing.T) {
		p := newPendingPatch()
		notes := "Does not align with current architecture"
		err := p.ApplyReview(PatchReview{Status: PatchStatusRejected, ReviewerID: "user-1", ReviewedAt: reviewedAt, Notes: &notes})
		require.NoError(t, err)

		assert.Equal(t, PatchStatusRejected, p.Status)
		require.NotNil(t, p.ReviewNotes)
		assert.Equal(t, notes, *p.ReviewNotes)
	})

	t.Run("terminal patch is never re-entered", func(t *testing.T) {
		p := newPendingPatch()
		require.NoError(t, p.ApplyReview(PatchReview{Status: PatchStatusAccepted, ReviewerID: "user-1", ReviewedAt: reviewedAt}))

		err := p.ApplyReview(PatchReview{Status: PatchStatusRejected, ReviewerID: "user-2", ReviewedAt: reviewedAt.Add(time.Hour)})
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeInvalidState))
		assert.Contains(t, err.Error(), "ACCEPTED")
		assert.Equal(t, PatchStatusAccepted, p.Status)
		assert.Equal(t, "user-1", *p.ReviewedBy)
	})

	t.Run("pending is not a review outcome", func(t *testing.T) {
		p := newPendingPatch()
		err := p.ApplyReview(PatchReview{Status: PatchStatusPendingReview, ReviewerID: "user-1", ReviewedAt: reviewedAt})
		assert.ErrorIs(t, err, ErrInvalidPatchStatus)
		assert.Nil(t, p.ReviewedBy)
	})
}

func TestValidateKnowledgePatch(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *KnowledgePatch)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *KnowledgePatch) {}},
		{name: "missing id", mutate: func(p *KnowledgePatch) { p.ID = "" }, wantErr: true},
		{name: "missing space", mutate: func(p *KnowledgePatch) { p.SpaceID = "" }, wantErr: true},
		{name: "missing topic", mutate: func(p *KnowledgePatch) { p.TopicID = "" }, wantErr: true},
		{name: "bad type", mutate: func(p *KnowledgePatch) { p.PatchType = "DELETE_STANDARD" }, wantErr: true},
		{name: "bad status", mutate: func(p *KnowledgePatch) { p.Status = "DRAFT" }, wantErr: true},
		{name: "empty payload", mutate: func(p *KnowledgePatch) { p.ProposedChanges = nil }, wantErr: true},
		{name: "invalid json payload", mutate: func(p *KnowledgePatch) { p.ProposedChanges = json.RawMessage(`{"standardId":`) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPendingPatch()
			tt.mutate(p)
			err := ValidateKnowledgePatch(p)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, ValidateKnowledgePatch(nil))
}
