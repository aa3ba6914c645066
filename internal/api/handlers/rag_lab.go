package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/learnings/internal/api"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
)

type RagLabService interface {
	Get(ctx context.Context, organizationID string) (*domain.RagLabConfiguration, error)
	Update(ctx context.Context, input service.UpdateRagLabInput) (*domain.RagLabConfiguration, error)
}

type Reembedder interface {
	TriggerFullReembedding(ctx context.Context, organizationID string) (*service.ReembeddingResult, error)
}

type RagLabHandler struct {
	config     RagLabService
	reembedder Reembedder
}

func NewRagLabHandler(config RagLabService, reembedder Reembedder) *RagLabHandler {
	return &RagLabHandler{config: config, reembedder: reembedder}
}

type UpdateRagLabRequest struct {
	EmbeddingModel      *string `json:"embeddingModel"`
	EmbeddingDimensions *int    `json:"embeddingDimensions"`
	IncludeCodeBlocks   *bool   `json:"includeCodeBlocks"`
	MaxTextLength       *int    `json:"maxTextLength"`
}

type RagLabResponse struct {
	OrganizationID      string  `json:"organizationId"`
	EmbeddingModel      string  `json:"embeddingModel"`
	EmbeddingDimensions int     `json:"embeddingDimensions"`
	IncludeCodeBlocks   bool    `json:"includeCodeBlocks"`
	MaxTextLength       int     `json:"maxTextLength"`
	UpdatedAt           *string `json:"updatedAt"`
}

func ragLabToResponse(c *domain.RagLabConfiguration) *RagLabResponse {
	resp := &RagLabResponse{
		OrganizationID:      c.OrganizationID,
		EmbeddingModel:      c.EmbeddingModel,
		EmbeddingDimensions: c.EmbeddingDimensions,
		IncludeCodeBlocks:   c.IncludeCodeBlocks,
		MaxTextLength:       c.MaxTextLength,
	}
	// defaults have never been stored
	if c.ID != "" {
		resp.UpdatedAt = formatTimePtr(&c.UpdatedAt)
	}
	return resp
}

func (h *RagLabHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Get(r.Context(), scopeFrom(r).OrgID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, ragLabToResponse(cfg))
}

func (h *RagLabHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRagLabRequest
	if err := decodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.config.Update(r.Context(), service.UpdateRagLabInput{
		OrganizationID:      scopeFrom(r).OrgID,
		EmbeddingModel:      req.EmbeddingModel,
		EmbeddingDimensions: req.EmbeddingDimensions,
		IncludeCodeBlocks:   req.IncludeCodeBlocks,
		MaxTextLength:       req.MaxTextLength,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, ragLabToResponse(cfg))
}

func (h *RagLabHandler) Reembed(w http.ResponseWriter, r *http.Request) {
	result, err := h.reembedder.TriggerFullReembedding(r.Context(), scopeFrom(r).OrgID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusAccepted, result)
}
