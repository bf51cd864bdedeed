package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/property-evaluation/internal"
)

// PermissionChecker is the decision engine consulted on every guarded
// request. A false answer is mapped to 403 here; the engine itself never
// errors for "permission absent".
type PermissionChecker interface {
	CheckUserPermission(userID int64, action, resource string) (bool, error)
}

// RequirePermission guards a route with a single (action, resource)
// permission. Requests without a resolved principal are rejected with 401
// before the store is consulted.
func RequirePermission(checker PermissionChecker, logger *slog.Logger, action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := principalFromContext(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			hasAccess, err := checker.CheckUserPermission(userID, action, resource)
			if err != nil {
				logger.ErrorContext(r.Context(), "permission check failed",
					"error", err,
					"user_id", userID,
					"action", action,
					"resource", resource)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !hasAccess {
				logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					"user_id", userID,
					"required_permission", action+":"+resource)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission passes when the principal holds at least one of the
// given (action, resource) pairs.
func RequireAnyPermission(checker PermissionChecker, logger *slog.Logger, permissions ...[2]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := principalFromContext(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, p := range permissions {
				hasAccess, err := checker.CheckUserPermission(userID, p[0], p[1])
				if err != nil {
					logger.ErrorContext(r.Context(), "permission check failed",
						"error", err, "user_id", userID)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				if hasAccess {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", userID)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		})
	}
}

func principalFromContext(r *http.Request) (int64, bool) {
	raw := internal.UserIDFromContext(r.Context())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
