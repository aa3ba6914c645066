package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/learnings/internal/api"
	"github.com/cloo-solutions/learnings/internal/api/middleware"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/go-chi/chi/v5"
)

type PatchService interface {
	GetByID(ctx context.Context, spaceID, id string) (*domain.KnowledgePatch, error)
	List(ctx context.Context, input service.ListPatchesInput) (*service.ListPatchesOutput, error)
	Accept(ctx context.Context, input service.AcceptPatchInput) (*service.AcceptPatchResult, error)
	Reject(ctx context.Context, input service.RejectPatchInput) (*domain.KnowledgePatch, error)
	AcceptBatch(ctx context.Context, input service.BatchReviewInput) []service.BatchReviewResult
	RejectBatch(ctx context.Context, input service.BatchReviewInput) []service.BatchReviewResult
	ArchiveURL(ctx context.Context, spaceID, id string) (string, error)
}

type PatchHandler struct {
	svc PatchService
}

func NewPatchHandler(svc PatchService) *PatchHandler {
	return &PatchHandler{svc: svc}
}

type ReviewPatchRequest struct {
	ReviewNotes string `json:"reviewNotes"`
}

type BatchReviewRequest struct {
	PatchIDs    []string `json:"patchIds"`
	ReviewNotes string   `json:"reviewNotes"`
}

type PatchResponse struct {
	ID              string          `json:"id"`
	SpaceID         string          `json:"spaceId"`
	TopicID         string          `json:"topicId"`
	PatchType       string          `json:"patchType"`
	ProposedChanges json.RawMessage `json:"proposedChanges"`
	DiffOriginal    string          `json:"diffOriginal"`
	DiffModified    string          `json:"diffModified"`
	Status          string          `json:"status"`
	ReviewedBy      *string         `json:"reviewedBy"`
	ReviewedAt      *string         `json:"reviewedAt"`
	ReviewNotes     *string         `json:"reviewNotes"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
}

func patchToResponse(p *domain.KnowledgePatch) *PatchResponse {
	return &PatchResponse{
		ID:              p.ID,
		SpaceID:         p.SpaceID,
		TopicID:         p.TopicID,
		PatchType:       string(p.PatchType),
		ProposedChanges: p.ProposedChanges,
		DiffOriginal:    p.DiffOriginal,
		DiffModified:    p.DiffModified,
		Status:          string(p.Status),
		ReviewedBy:      p.ReviewedBy,
		ReviewedAt:      formatTimePtr(p.ReviewedAt),
		ReviewNotes:     p.ReviewNotes,
		CreatedAt:       formatTime(p.CreatedAt),
		UpdatedAt:       formatTime(p.UpdatedAt),
	}
}

type PatchListResponse struct {
	Items   []*PatchResponse `json:"items"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"hasMore"`
}

type AcceptPatchResponse struct {
	Patch      *PatchResponse `json:"patch"`
	Applied    bool           `json:"applied"`
	ApplyError string         `json:"applyError,omitempty"`
}

type BatchReviewResponse struct {
	Results   []service.BatchReviewResult `json:"results"`
	Succeeded int                         `json:"succeeded"`
	Failed    int                         `json:"failed"`
}

type ArchiveURLResponse struct {
	URL string `json:"url"`
}

func (h *PatchHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	output, err := h.svc.List(r.Context(), service.ListPatchesInput{
		SpaceID: scopeFrom(r).SpaceID,
		Status:  query.Get("status"),
		Cursor:  query.Get("cursor"),
		Limit:   queryLimit(r),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*PatchResponse, len(output.Items))
	for i, p := range output.Items {
		items[i] = patchToResponse(p)
	}
	api.Success(w, http.StatusOK, PatchListResponse{Items: items, Cursor: output.Cursor, HasMore: output.HasMore})
}

func (h *PatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	patch, err := h.svc.GetByID(r.Context(), scopeFrom(r).SpaceID, chi.URLParam(r, "patchID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, patchToResponse(patch))
}

func (h *PatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req ReviewPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sc := scopeFrom(r)

	result, err := h.svc.Accept(r.Context(), service.AcceptPatchInput{
		PatchID:        chi.URLParam(r, "patchID"),
		SpaceID:        sc.SpaceID,
		OrganizationID: sc.OrgID,
		ReviewerID:     middleware.GetUserID(r.Context()),
		Notes:          req.ReviewNotes,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AcceptPatchResponse{
		Patch:      patchToResponse(result.Patch),
		Applied:    result.Applied,
		ApplyError: result.ApplyError,
	})
}

func (h *PatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req ReviewPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch, err := h.svc.Reject(r.Context(), service.RejectPatchInput{
		PatchID:    chi.URLParam(r, "patchID"),
		SpaceID:    scopeFrom(r).SpaceID,
		ReviewerID: middleware.GetUserID(r.Context()),
		Notes:      req.ReviewNotes,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, patchToResponse(patch))
}

func (h *PatchHandler) AcceptBatch(w http.ResponseWriter, r *http.Request) {
	h.reviewBatch(w, r, h.svc.AcceptBatch)
}

func (h *PatchHandler) RejectBatch(w http.ResponseWriter, r *http.Request) {
	h.reviewBatch(w, r, h.svc.RejectBatch)
}

func (h *PatchHandler) reviewBatch(w http.ResponseWriter, r *http.Request, review func(context.Context, service.BatchReviewInput) []service.BatchReviewResult) {
	var req BatchReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.PatchIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "patchIds is required")
		return
	}
	sc := scopeFrom(r)

	results := review(r.Context(), service.BatchReviewInput{
		PatchIDs:       req.PatchIDs,
		SpaceID:        sc.SpaceID,
		OrganizationID: sc.OrgID,
		ReviewerID:     middleware.GetUserID(r.Context()),
		Notes:          req.ReviewNotes,
	})

	resp := BatchReviewResponse{Results: results}
	for _, result := range results {
		if result.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *PatchHandler) ArchiveURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.ArchiveURL(r.Context(), scopeFrom(r).SpaceID, chi.URLParam(r, "patchID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, ArchiveURLResponse{URL: url})
}
