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

type TopicService interface {
	Capture(ctx context.Context, input service.CaptureTopicInput) (*domain.Topic, error)
	GetByID(ctx context.Context, id string) (*domain.Topic, error)
	ListBySpace(ctx context.Context, spaceID string, pendingOnly bool) ([]*domain.Topic, error)
	Stats(ctx context.Context, spaceID string) (*domain.TopicStats, error)
	Delete(ctx context.Context, id string) error
}

type TopicDistiller interface {
	DistillTopic(ctx context.Context, organizationID, topicID string) (*service.DistillationResult, error)
}

type DistillAllEnqueuer interface {
	EnqueueDistillAll(ctx context.Context, input service.EnqueueJobInput) (*domain.BatchJob, error)
}

type TopicHandler struct {
	topics    TopicService
	distiller TopicDistiller
	jobs      DistillAllEnqueuer
}

func NewTopicHandler(topics TopicService, distiller TopicDistiller, jobs DistillAllEnqueuer) *TopicHandler {
	return &TopicHandler{topics: topics, distiller: distiller, jobs: jobs}
}

type CaptureTopicRequest struct {
	Title          string               `json:"title"`
	Content        string               `json:"content"`
	CodeExamples   []domain.CodeExample `json:"codeExamples"`
	CaptureContext string               `json:"captureContext"`
}

type TopicResponse struct {
	ID             string               `json:"id"`
	SpaceID        string               `json:"spaceId"`
	Title          string               `json:"title"`
	Content        string               `json:"content"`
	CodeExamples   []domain.CodeExample `json:"codeExamples"`
	CaptureContext string               `json:"captureContext"`
	CreatedBy      string               `json:"createdBy"`
	Status         string               `json:"status"`
	CreatedAt      string               `json:"createdAt"`
	UpdatedAt      string               `json:"updatedAt"`
}

func topicToResponse(t *domain.Topic) *TopicResponse {
	examples := t.CodeExamples
	if examples == nil {
		examples = []domain.CodeExample{}
	}
	return &TopicResponse{
		ID:             t.ID,
		SpaceID:        t.SpaceID,
		Title:          t.Title,
		Content:        t.Content,
		CodeExamples:   examples,
		CaptureContext: string(t.CaptureContext),
		CreatedBy:      t.CreatedBy,
		Status:         string(t.Status),
		CreatedAt:      formatTime(t.CreatedAt),
		UpdatedAt:      formatTime(t.UpdatedAt),
	}
}

type DistillResponse struct {
	TopicID string           `json:"topicId"`
	Patches []*PatchResponse `json:"patches"`
}

func (h *TopicHandler) Capture(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)

	var req CaptureTopicRequest
	if err := decodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	topic, err := h.topics.Capture(r.Context(), service.CaptureTopicInput{
		SpaceID:        sc.SpaceID,
		Title:          req.Title,
		Content:        req.Content,
		CodeExamples:   req.CodeExamples,
		CaptureContext: req.CaptureContext,
		CreatedBy:      middleware.GetUserID(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, topicToResponse(topic))
}

func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)
	pendingOnly := r.URL.Query().Get("pending") == "true"

	topics, err := h.topics.ListBySpace(r.Context(), sc.SpaceID, pendingOnly)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*TopicResponse, len(topics))
	for i, t := range topics {
		responses[i] = topicToResponse(t)
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *TopicHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.topics.Stats(r.Context(), scopeFrom(r).SpaceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

func (h *TopicHandler) Get(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.loadTopic(w, r)
	if !ok {
		return
	}
	api.Success(w, http.StatusOK, topicToResponse(topic))
}

func (h *TopicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.loadTopic(w, r)
	if !ok {
		return
	}

	if err := h.topics.Delete(r.Context(), topic.ID); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TopicHandler) Distill(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.loadTopic(w, r)
	if !ok {
		return
	}

	result, err := h.distiller.DistillTopic(r.Context(), scopeFrom(r).OrgID, topic.ID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	patches := make([]*PatchResponse, len(result.Patches))
	for i, p := range result.Patches {
		patches[i] = patchToResponse(p)
	}
	api.Success(w, http.StatusOK, DistillResponse{TopicID: result.TopicID, Patches: patches})
}

func (h *TopicHandler) DistillAll(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)

	job, err := h.jobs.EnqueueDistillAll(r.Context(), service.EnqueueJobInput{
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

// loadTopic resolves {topicID} and hides topics of other spaces.
func (h *TopicHandler) loadTopic(w http.ResponseWriter, r *http.Request) (*domain.Topic, bool) {
	id := chi.URLParam(r, "topicID")

	topic, err := h.topics.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return nil, false
	}
	if topic.SpaceID != scopeFrom(r).SpaceID {
		api.HandleError(w, domain.NewNotFoundError(domain.ErrTopicNotFound, id))
		return nil, false
	}
	return topic, true
}
