package middleware

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/learnings/internal/api"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/go-chi/chi/v5"
)

type SpaceResolver interface {
	GetSpaceByID(ctx context.Context, id string) (*domain.Space, error)
}

// SpaceScope rejects requests whose {spaceID} does not belong to {orgID}.
// Both cases answer 404 so space IDs of other organizations are not revealed.
func SpaceScope(spaces SpaceResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := chi.URLParam(r, "orgID")
			spaceID := chi.URLParam(r, "spaceID")

			space, err := spaces.GetSpaceByID(r.Context(), spaceID)
			if err != nil {
				api.HandleError(w, err)
				return
			}
			if space.OrganizationID != orgID {
				api.HandleError(w, domain.NewNotFoundError(domain.ErrSpaceNotFound, spaceID))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
