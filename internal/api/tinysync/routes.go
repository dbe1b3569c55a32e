// Package tinysync provides the HTTP surface of the tiny-sync job.
package tinysync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atelier-ops/atelier-sync/internal/api/common"
	"github.com/atelier-ops/atelier-sync/internal/identity"
	"github.com/atelier-ops/atelier-sync/internal/store"
	"github.com/atelier-ops/atelier-sync/internal/sync"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

const (
	// FunctionPath is the platform function route
	FunctionPath = "/functions/v1/tiny-sync"

	// Path is the short alias of FunctionPath
	Path = "/tiny-sync"

	// RunsPath lists recent run logs
	RunsPath = "/tiny-sync/runs"

	// logExcerptLimit caps every request-derived value written to the log
	logExcerptLimit = 200

	maxBodyBytes = 64 << 10

	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// Runner executes sync invocations
type Runner interface {
	Run(ctx context.Context, req sync.Request, actor string) (*sync.Result, error)
}

// RunLister reads the run log
type RunLister interface {
	ListRunLogs(ctx context.Context, filter store.RunLogFilter) ([]store.RunLog, error)
}

// Routes serves the tiny-sync endpoints
type Routes struct {
	runner    Runner
	users     identity.Resolver
	roles     identity.RoleChecker
	runs      RunLister
	adminRole string
}

// NewRoutes creates the tiny-sync routes. adminRole guards the run log.
func NewRoutes(
	runner Runner,
	users identity.Resolver,
	roles identity.RoleChecker,
	runs RunLister,
	adminRole string,
) *Routes {
	return &Routes{
		runner:    runner,
		users:     users,
		roles:     roles,
		runs:      runs,
		adminRole: adminRole,
	}
}

// Register mounts the endpoints on r
func (rt *Routes) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(CORS(http.MethodPost))
		r.HandleFunc(FunctionPath, rt.handleSync)
		r.HandleFunc(Path, rt.handleSync)
	})
	r.Group(func(r chi.Router) {
		r.Use(CORS(http.MethodGet))
		r.HandleFunc(RunsPath, rt.handleRuns)
	})
}

func (rt *Routes) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	slog.InfoContext(ctx, "tiny-sync request",
		"method", r.Method,
		"path", common.Truncate(r.URL.Path, logExcerptLimit),
		"request_id", middleware.GetReqID(ctx),
		"body", common.Truncate(string(body), logExcerptLimit))

	if r.Method != http.MethodPost {
		rt.fail(ctx, w, errors.New("method not allowed"))
		return
	}
	if readErr != nil {
		rt.fail(ctx, w, syncerr.Validation("could not read request body"))
		return
	}

	user, err := rt.users.ResolveUser(ctx, r.Header.Get("Authorization"))
	if err != nil {
		rt.fail(ctx, w, err)
		return
	}
	ctx = identity.WithUser(ctx, user)

	req, err := decodeRequest(body)
	if err != nil {
		rt.fail(ctx, w, err)
		return
	}

	result, err := rt.runner.Run(ctx, req, user.ID)
	if err != nil {
		rt.fail(ctx, w, err)
		return
	}
	common.WriteJSONResponse(w, NewResponse(result), http.StatusOK)
}

func (rt *Routes) handleRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		rt.fail(ctx, w, errors.New("method not allowed"))
		return
	}

	user, err := rt.users.ResolveUser(ctx, r.Header.Get("Authorization"))
	if err != nil {
		rt.fail(ctx, w, err)
		return
	}
	ok, err := rt.roles.HasRole(ctx, user.ID, rt.adminRole)
	if err != nil {
		rt.fail(ctx, w, err)
		return
	}
	if !ok {
		rt.fail(ctx, w, syncerr.Unauthorized("unauthorized: admin role required", nil))
		return
	}

	filter, err := parseRunsFilter(r)
	if err != nil {
		rt.fail(ctx, w, err)
		return
	}

	runs, err := rt.runs.ListRunLogs(ctx, filter)
	if err != nil {
		rt.fail(ctx, w, syncerr.Storage("list run logs", err))
		return
	}
	if runs == nil {
		runs = []store.RunLog{}
	}
	common.WriteJSONResponse(w, RunsResponse{OK: true, Runs: runs}, http.StatusOK)
}

// fail logs err and answers with the single failure status
func (*Routes) fail(ctx context.Context, w http.ResponseWriter, err error) {
	slog.ErrorContext(ctx, "tiny-sync request failed",
		"request_id", middleware.GetReqID(ctx),
		"kind", string(syncerr.KindOf(err)),
		"error", syncerr.Excerpt(err))
	common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
}

// decodeRequest parses the JSON body. An empty body is an empty request.
func decodeRequest(body []byte) (sync.Request, error) {
	var req sync.Request
	if len(strings.TrimSpace(string(body))) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, syncerr.Validation("invalid request body: %v", err)
	}
	return req, nil
}

func parseRunsFilter(r *http.Request) (store.RunLogFilter, error) {
	q := r.URL.Query()
	filter := store.RunLogFilter{EntityType: q.Get("entity"), Limit: defaultRunsLimit}

	if filter.EntityType != "" {
		if _, ok := sync.MappingFor(filter.EntityType); !ok {
			return filter, syncerr.Validation("invalid entity %q: must be one of contacts, products, orders", filter.EntityType)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			return filter, syncerr.Validation("invalid limit %q: must be between 1 and %d", raw, maxRunsLimit)
		}
		filter.Limit = n
	}
	return filter, nil
}
