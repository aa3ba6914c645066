package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/learnings/internal/api"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/service"
)

type SemanticSearcher interface {
	SemanticSearch(ctx context.Context, input service.SemanticSearchInput) (*service.SemanticSearchResult, error)
}

type SearchHandler struct {
	svc SemanticSearcher
}

func NewSearchHandler(svc SemanticSearcher) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query      string   `json:"query"`
	ResultType string   `json:"resultType"`
	Threshold  *float64 `json:"threshold"`
	MaxResults int      `json:"maxResults"`
}

type SearchHit struct {
	ArtifactID string  `json:"artifactId"`
	VersionID  string  `json:"versionId"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Summary    string  `json:"summary"`
	Version    int     `json:"version"`
	Similarity float64 `json:"similarity"`
}

type SearchResponse struct {
	Standards []SearchHit `json:"standards"`
	Recipes   []SearchHit `json:"recipes"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sc := scopeFrom(r)

	result, err := h.svc.SemanticSearch(r.Context(), service.SemanticSearchInput{
		OrganizationID: sc.OrgID,
		SpaceID:        sc.SpaceID,
		Query:          req.Query,
		ResultType:     service.SearchResultType(req.ResultType),
		Threshold:      req.Threshold,
		MaxResults:     req.MaxResults,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, searchToResponse(result))
}

func searchToResponse(result *service.SemanticSearchResult) SearchResponse {
	resp := SearchResponse{
		Standards: make([]SearchHit, 0, len(result.Standards)),
		Recipes:   make([]SearchHit, 0, len(result.Recipes)),
	}
	for _, s := range result.Standards {
		resp.Standards = append(resp.Standards, standardHit(s))
	}
	for _, rc := range result.Recipes {
		resp.Recipes = append(resp.Recipes, recipeHit(rc))
	}
	return resp
}

func standardHit(s domain.SimilarStandard) SearchHit {
	return SearchHit{
		ArtifactID: s.Version.StandardID,
		VersionID:  s.Version.ID,
		Name:       s.Version.Name,
		Slug:       s.Version.Slug,
		Summary:    s.Version.Description,
		Version:    s.Version.Version,
		Similarity: s.Similarity,
	}
}

func recipeHit(r domain.SimilarRecipe) SearchHit {
	return SearchHit{
		ArtifactID: r.Version.RecipeID,
		VersionID:  r.Version.ID,
		Name:       r.Version.Name,
		Slug:       r.Version.Slug,
		Summary:    r.Version.Content,
		Version:    r.Version.Version,
		Similarity: r.Similarity,
	}
}
