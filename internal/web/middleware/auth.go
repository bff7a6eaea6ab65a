package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/strata-api/strata/internal/web/auth"
	"github.com/strata-api/strata/internal/web/response"
)

const (
	// UserIDKey is the context key for the authenticated user id
	UserIDKey ContextKey = "user_id"
)

// Auth creates a bearer-token authentication middleware. Requests without
// a valid token receive a 401 error document.
func Auth(service *auth.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				response.RenderStatusError(w, http.StatusUnauthorized, "Authorization required")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				response.RenderStatusError(w, http.StatusUnauthorized, "Invalid authorization format")
				return
			}

			userID, err := service.ValidateToken(parts[1])
			if err != nil {
				response.RenderStatusError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the authenticated user id from the context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
