package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/learnings/internal/api"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserIDHeader carries the identity of the caller. Authentication happens
// upstream; this service only trusts the forwarded value.
const UserIDHeader = "X-User-ID"

// Identity stores the caller's user ID in the request context. Requests that
// can mutate state are rejected when the header is missing.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" && isMutation(r.Method) {
			api.Error(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the caller's user ID from context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// routeOrgID reads the organization from the matched route. Outer middleware
// sees it once the router has run.
func routeOrgID(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.URLParam("orgID")
	}
	return ""
}
