package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"household-inventory-api/pkg/apierror"
)

// MemberHeader carries the acting household member.
const MemberHeader = "X-Member-ID"

// MemberIDKey is the key for storing the acting member in request context.
const MemberIDKey contextKey = "member_id"

// RequireMember rejects requests without a member identity and stores it in the context.
func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member := strings.TrimSpace(r.Header.Get(MemberHeader))
		if member == "" {
			writeError(w, apierror.Unauthorized("X-Member-ID header is required"))
			return
		}

		ctx := context.WithValue(r.Context(), MemberIDKey, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetMemberID retrieves the acting member from request context.
func GetMemberID(ctx context.Context) string {
	if id, ok := ctx.Value(MemberIDKey).(string); ok {
		return id
	}
	return ""
}

// NewAPIKeyMiddleware guards operator routes with X-API-Key or a Bearer token.
// An empty key list leaves the routes open.
func NewAPIKeyMiddleware(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use the X-API-Key header."))
				return
			}
			if !isValidKey(apiKey, keys) {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_, _ = w.Write(err.ToJSON())
}

func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
