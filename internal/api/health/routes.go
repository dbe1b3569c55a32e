// Package health provides the liveness, readiness and version endpoints.
package health

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-ops/atelier-sync/internal/api/common"
	"github.com/atelier-ops/atelier-sync/internal/versions"
)

// ReadinessChecker reports whether the service can serve requests
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// CheckerFunc adapts a function to ReadinessChecker
type CheckerFunc func(ctx context.Context) error

// CheckReadiness implements ReadinessChecker
func (f CheckerFunc) CheckReadiness(ctx context.Context) error {
	return f(ctx)
}

// Router creates a router for health check endpoints. A nil checker is
// always ready.
func Router(checker ReadinessChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(checker))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.CheckReadiness(r.Context()); err != nil {
				common.WriteErrorResponse(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		common.WriteJSONResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
