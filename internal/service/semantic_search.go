package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// SearchResultType selects which artifact kinds a semantic search returns
type SearchResultType string

const (
	SearchResultStandards SearchResultType = "standards"
	SearchResultRecipes   SearchResultType = "recipes"
	SearchResultBoth      SearchResultType = "both"

	DefaultSearchMaxResults = 10
)

type SemanticSearchInput struct {
	OrganizationID string
	SpaceID        string
	Query          string
	ResultType     SearchResultType
	Threshold      *float64
	MaxResults     int
}

type SemanticSearchResult struct {
	Standards []domain.SimilarStandard `json:"standards"`
	Recipes   []domain.SimilarRecipe   `json:"recipes"`
}

// SemanticSearch embeds the query with the organization's settings and
// searches standards and recipes in parallel.
func (s *EmbeddingService) SemanticSearch(ctx context.Context, input SemanticSearchInput) (*SemanticSearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.SemanticSearch", telemetry.SpanAttributes{
		OrgID:     input.OrganizationID,
		SpaceID:   input.SpaceID,
		Operation: "semantic_search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}

	resultType := input.ResultType
	if resultType == "" {
		resultType = SearchResultBoth
	}
	if resultType != SearchResultStandards && resultType != SearchResultRecipes && resultType != SearchResultBoth {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "resultType must be standards, recipes or both")
	}

	if t := input.Threshold; t != nil && (*t < 0 || *t > 1) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "threshold must be between 0 and 1")
	}

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultSearchMaxResults
	}
	standardLimit, recipeLimit := splitSearchLimit(resultType, maxResults)

	cfg, err := s.ConfigurationFor(ctx, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	embedding, err := s.embed(ctx, query, cfg)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result := &SemanticSearchResult{
		Standards: []domain.SimilarStandard{},
		Recipes:   []domain.SimilarRecipe{},
	}

	g, gctx := errgroup.WithContext(ctx)
	if standardLimit > 0 {
		g.Go(func() error {
			found, err := s.FindSimilarStandards(gctx, embedding, input.SpaceID, input.Threshold, standardLimit)
			if err != nil {
				return err
			}
			result.Standards = capResults(found, standardLimit)
			return nil
		})
	}
	if recipeLimit > 0 {
		g.Go(func() error {
			found, err := s.FindSimilarRecipes(gctx, embedding, input.SpaceID, input.Threshold, recipeLimit)
			if err != nil {
				return err
			}
			result.Recipes = capResults(found, recipeLimit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	return result, nil
}

// splitSearchLimit gives standards the larger half of the cap when both
// kinds are requested.
func splitSearchLimit(resultType SearchResultType, maxResults int) (standards, recipes int) {
	switch resultType {
	case SearchResultStandards:
		return maxResults, 0
	case SearchResultRecipes:
		return 0, maxResults
	default:
		return (maxResults + 1) / 2, maxResults / 2
	}
}

func capResults[T any](items []T, limit int) []T {
	if items == nil {
		return []T{}
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
