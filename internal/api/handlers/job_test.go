package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestJob() *domain.BatchJob {
	started := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	return &domain.BatchJob{
		ID:             "job-1",
		OrganizationID: testOrgID,
		SpaceID:        testSpaceID,
		Type:           domain.BatchJobTypeEmbedArtifacts,
		Status:         domain.BatchJobStatusRunning,
		Items:          []domain.BatchItem{{Kind: domain.BatchItemStandardVersion, ID: "sv-1"}, {Kind: domain.BatchItemRecipeVersion, ID: "rv-1"}},
		ProcessedCount: 1,
		RequestedBy:    testUserID,
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		StartedAt:      &started,
	}
}

func TestJobHandler_EnqueueBackfill(t *testing.T) {
	svc := new(MockJobService)
	queued := newTestJob()
	queued.Status = domain.BatchJobStatusQueued
	queued.StartedAt = nil
	svc.On("EnqueueEmbeddingBackfill", mock.Anything, service.EnqueueJobInput{
		OrganizationID: testOrgID,
		SpaceID:        testSpaceID,
		RequestedBy:    testUserID,
	}).Return(queued, nil)

	w := serve(http.MethodPost, spacePrefix+"/embeddings/backfill", spacePath+"/embeddings/backfill", "", NewJobHandler(svc).EnqueueBackfill)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp JobResponse
	decodeData(t, w.Body.Bytes(), &resp)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, 2, resp.TotalItems)
}

func TestJobHandler_List(t *testing.T) {
	svc := new(MockJobService)
	svc.On("List", mock.Anything, testOrgID, testSpaceID, 5).Return([]*domain.BatchJob{newTestJob()}, nil)

	w := serve(http.MethodGet, spacePrefix+"/jobs", spacePath+"/jobs?limit=5", "", NewJobHandler(svc).List)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []JobResponse
	decodeData(t, w.Body.Bytes(), &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, 1, resp[0].ProcessedCount)
	require.NotNil(t, resp[0].StartedAt)
	assert.Equal(t, "2026-03-01T10:00:05Z", *resp[0].StartedAt)
}

func TestJobHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockJobService)
		svc.On("Get", mock.Anything, testOrgID, "job-1").Return(newTestJob(), nil)

		w := serve(http.MethodGet, spacePrefix+"/jobs/{jobID}", spacePath+"/jobs/job-1", "", NewJobHandler(svc).Get)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("job of another space", func(t *testing.T) {
		svc := new(MockJobService)
		other := newTestJob()
		other.SpaceID = "space-9"
		svc.On("Get", mock.Anything, testOrgID, "job-1").Return(other, nil)

		w := serve(http.MethodGet, spacePrefix+"/jobs/{jobID}", spacePath+"/jobs/job-1", "", NewJobHandler(svc).Get)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestJobHandler_Cancel(t *testing.T) {
	t.Run("running job is flagged", func(t *testing.T) {
		svc := new(MockJobService)
		flagged := newTestJob()
		flagged.CancelRequested = true
		svc.On("Get", mock.Anything, testOrgID, "job-1").Return(newTestJob(), nil)
		svc.On("Cancel", mock.Anything, testOrgID, "job-1").Return(flagged, nil)

		w := serve(http.MethodPost, spacePrefix+"/jobs/{jobID}/cancel", spacePath+"/jobs/job-1/cancel", "", NewJobHandler(svc).Cancel)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp JobResponse
		decodeData(t, w.Body.Bytes(), &resp)
		assert.True(t, resp.CancelRequested)
	})

	t.Run("finished job", func(t *testing.T) {
		svc := new(MockJobService)
		svc.On("Get", mock.Anything, testOrgID, "job-1").Return(newTestJob(), nil)
		svc.On("Cancel", mock.Anything, testOrgID, "job-1").
			Return(nil, domain.NewInvalidStateError("batch job", "job-1", "queued or running", "completed"))

		w := serve(http.MethodPost, spacePrefix+"/jobs/{jobID}/cancel", spacePath+"/jobs/job-1/cancel", "", NewJobHandler(svc).Cancel)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
