package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/learnings/internal/api"
	"github.com/cloo-solutions/learnings/internal/api/middleware"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/go-chi/chi/v5"
)

type JobService interface {
	EnqueueEmbeddingBackfill(ctx context.Context, input service.EnqueueJobInput) (*domain.BatchJob, error)
	Get(ctx context.Context, organizationID, id string) (*domain.BatchJob, error)
	List(ctx context.Context, organizationID, spaceID string, limit int) ([]*domain.BatchJob, error)
	Cancel(ctx context.Context, organizationID, id string) (*domain.BatchJob, error)
}

type JobHandler struct {
	svc JobService
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

type JobResponse struct {
	ID              string  `json:"id"`
	OrganizationID  string  `json:"organizationId"`
	SpaceID         string  `json:"spaceId"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	TotalItems      int     `json:"totalItems"`
	ProcessedCount  int     `json:"processedCount"`
	FailedCount     int     `json:"failedCount"`
	CancelRequested bool    `json:"cancelRequested"`
	Error           string  `json:"error,omitempty"`
	RequestedBy     string  `json:"requestedBy,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	StartedAt       *string `json:"startedAt"`
	FinishedAt      *string `json:"finishedAt"`
}

func jobToResponse(j *domain.BatchJob) *JobResponse {
	return &JobResponse{
		ID:              j.ID,
		OrganizationID:  j.OrganizationID,
		SpaceID:         j.SpaceID,
		Type:            string(j.Type),
		Status:          string(j.Status),
		TotalItems:      len(j.Items),
		ProcessedCount:  j.ProcessedCount,
		FailedCount:     j.FailedCount,
		CancelRequested: j.CancelRequested,
		Error:           j.Error,
		RequestedBy:     j.RequestedBy,
		CreatedAt:       formatTime(j.CreatedAt),
		StartedAt:       formatTimePtr(j.StartedAt),
		FinishedAt:      formatTimePtr(j.FinishedAt),
	}
}

func (h *JobHandler) EnqueueBackfill(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)

	job, err := h.svc.EnqueueEmbeddingBackfill(r.Context(), service.EnqueueJobInput{
		OrganizationID: sc.OrgID,
		SpaceID:        sc.SpaceID,
		RequestedBy:    middleware.GetUserID(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)

	jobs, err := h.svc.List(r.Context(), sc.OrgID, sc.SpaceID, queryLimit(r))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*JobResponse, len(jobs))
	for i, j := range jobs {
		responses[i] = jobToResponse(j)
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	api.Success(w, http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	job, err := h.svc.Cancel(r.Context(), job.OrganizationID, job.ID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) loadJob(w http.ResponseWriter, r *http.Request) (*domain.BatchJob, bool) {
	sc := scopeFrom(r)
	id := chi.URLParam(r, "jobID")

	job, err := h.svc.Get(r.Context(), sc.OrgID, id)
	if err != nil {
		api.HandleError(w, err)
		return nil, false
	}
	if job.SpaceID != sc.SpaceID {
		api.HandleError(w, domain.NewNotFoundError(domain.ErrBatchJobNotFound, id))
		return nil, false
	}
	return job, true
}
