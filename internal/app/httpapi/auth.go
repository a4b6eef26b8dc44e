package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/R3E-Network/service_layer/internal/app/auth"
)

type ctxKey string

const projectIDKey ctxKey = "project_id"

// publicPaths bypass project resolution entirely: health checks and the
// login/register endpoints, which issue the credentials everything else
// requires.
var publicPaths = map[string]bool{
	"/health":           true,
	"/ready":            true,
	"/metrics":          true,
	"/v1/auth/login":    true,
	"/v1/auth/register": true,
}

// guestProjectID is the project a guest request is scoped to when it carries
// no token or one that does not resolve.
const guestProjectID = "default"

// guestPrefixes are GET-only routes the spec documents as guest-accessible:
// a missing or invalid token is tolerated and scopes the request to
// guestProjectID, but a valid one still resolves a project ID onto the
// request context for scoping.
var guestPrefixes = []string{
	"/v1/projects",
	"/v1/drift/alerts",
	"/v1/drift/summary",
}

func isGuestPath(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	for _, prefix := range guestPrefixes {
		if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
			return true
		}
	}
	return false
}

// wrapWithAuth resolves the caller's bearer token (a session JWT, a
// project-scoped JWT, a dev API key, or a database-issued API key) to a
// project ID and stores it on the request context. Public paths are passed
// through untouched; guest paths proceed even when resolution fails.
func wrapWithAuth(resolver *auth.ProjectResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		guest := isGuestPath(r)
		guestCtx := context.WithValue(r.Context(), projectIDKey, guestProjectID)
		token := extractToken(r)
		if token == "" {
			if guest {
				next.ServeHTTP(w, r.WithContext(guestCtx))
				return
			}
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		projectID, err := resolver.Resolve(r.Context(), token)
		if err != nil {
			if guest {
				next.ServeHTTP(w, r.WithContext(guestCtx))
				return
			}
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), projectIDKey, projectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// wrapWithCORS allows browser dashboards served from any origin to call the
// API, short-circuiting preflight requests.
func wrapWithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func projectIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(projectIDKey).(string)
	return id, ok && id != ""
}
