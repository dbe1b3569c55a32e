package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-ops/atelier-sync/internal/erp"
	"github.com/atelier-ops/atelier-sync/internal/httpclient"
	"github.com/atelier-ops/atelier-sync/internal/lock"
	"github.com/atelier-ops/atelier-sync/internal/objectstore"
	"github.com/atelier-ops/atelier-sync/internal/otel"
	"github.com/atelier-ops/atelier-sync/internal/secrets"
	"github.com/atelier-ops/atelier-sync/internal/store"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
	"github.com/atelier-ops/atelier-sync/internal/telemetry"
)

// RunStatusSuccess is the only status written to the run log; failed runs
// leave no row.
const RunStatusSuccess = "success"

// Settings are the ERP client settings of an Orchestrator
type Settings struct {
	BaseURL  string
	MaxCalls int
}

// Result is the outcome of a successful run
type Result struct {
	RunID    uuid.UUID
	TestOnly bool
	DryRun   bool
	Entity   string
	Stats    Stats

	// Summary holds every create and update of the run
	Summary []SummaryEntry
}

// Preview returns the first PreviewSize summary entries
func (r *Result) Preview() []SummaryEntry {
	if len(r.Summary) <= PreviewSize {
		return r.Summary
	}
	return r.Summary[:PreviewSize]
}

// Orchestrator runs tiny-sync invocations. It holds no per-run state, so a
// single instance serves concurrent invocations.
type Orchestrator struct {
	tokens     secrets.TokenSource
	store      store.SyncStore
	httpClient httpclient.Client
	settings   Settings
	pages      PageStrategy
	archiver   objectstore.Archiver
	locker     lock.Locker
	metrics    *telemetry.SyncMetrics
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSettings sets the ERP client settings
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) {
		o.settings = s
	}
}

// WithHTTPClient sets the HTTP client used for ERP calls
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *Orchestrator) {
		o.httpClient = c
	}
}

// WithPageStrategy replaces the default SinglePage strategy
func WithPageStrategy(p PageStrategy) Option {
	return func(o *Orchestrator) {
		o.pages = p
	}
}

// WithArchiver uploads every persisted run log
func WithArchiver(a objectstore.Archiver) Option {
	return func(o *Orchestrator) {
		o.archiver = a
	}
}

// WithLocker rejects concurrent runs for the same entity
func WithLocker(l lock.Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

// WithMetrics records run metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer enables spans for runs, ERP calls and writes
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an Orchestrator reading the ERP token from tokens
// and writing through st.
func NewOrchestrator(tokens secrets.TokenSource, st store.SyncStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tokens:     tokens,
		store:      st,
		httpClient: httpclient.NewDefaultClient(0),
		pages:      SinglePage{Limit: DefaultPageLimit},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one invocation on behalf of actor
func (o *Orchestrator) Run(ctx context.Context, req Request, actor string) (*Result, error) {
	start := o.now()

	ctx, span := otel.StartSpan(ctx, o.tracer, "sync.Run",
		trace.WithAttributes(
			otel.AttrEntity.String(req.Entity),
			otel.AttrOperation.String(req.Operation()),
			otel.AttrDryRun.Bool(req.DryRun),
		),
	)
	defer span.End()

	result, err := o.run(ctx, req, actor)

	if !req.TestOnly {
		o.metrics.RecordRun(ctx, req.Entity, req.Operation(), o.now().Sub(start), err == nil)
	}
	if err != nil {
		otel.RecordError(span, err)
		slog.ErrorContext(ctx, "tiny-sync run failed",
			"entity", req.Entity,
			"operation", req.Operation(),
			"test_only", req.TestOnly,
			"kind", string(syncerr.KindOf(err)),
			"error", syncerr.Excerpt(err))
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, actor string) (*Result, error) {
	token, err := resolveToken(ctx, o.tokens)
	if err != nil {
		return nil, err
	}

	client := erp.NewClient(o.httpClient, o.settings.BaseURL, token,
		erp.WithMaxCalls(o.settings.MaxCalls),
		erp.WithTracer(o.tracer),
	)

	if req.TestOnly {
		return o.testConnection(ctx, client)
	}

	if err := req.validateEntity(); err != nil {
		return nil, err
	}
	mapping, ok := MappingFor(req.Entity)
	if !ok {
		return nil, syncerr.Validation("invalid entity %q", req.Entity)
	}
	since, err := req.sinceFilter()
	if err != nil {
		return nil, err
	}

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, "tiny-sync:"+req.Entity)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return nil, syncerr.Conflict(fmt.Sprintf("a %s sync is already in progress", req.Entity))
			}
			return nil, syncerr.Storage("acquire run lock", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "Failed to release run lock", "entity", req.Entity, "error", err)
			}
		}()
	}

	page, err := o.pages.FetchPage(ctx, client, req.Entity, since)
	o.metrics.RecordAPICalls(ctx, req.Entity, client.CallsUsed())
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		otel.AttrRecordCount.Int(len(page.Records)),
		otel.AttrTruncated.Bool(page.Truncated),
	)
	if page.Truncated || page.NextCursor != "" {
		slog.InfoContext(ctx, "Remote records left for a later run",
			"entity", req.Entity,
			"processed_limit", len(page.Records),
			"next_cursor", page.NextCursor)
	}

	result := &Result{
		RunID:   uuid.New(),
		DryRun:  req.DryRun,
		Entity:  req.Entity,
		Summary: []SummaryEntry{},
	}
	if err := o.reconcile(ctx, mapping, page.Records, req.DryRun, result); err != nil {
		return nil, err
	}
	result.Stats.APICallsUsed = client.CallsUsed()
	result.Stats.MaxCalls = client.MaxCalls()

	runLog, err := o.persistRunLog(ctx, req, actor, result)
	if err != nil {
		return nil, err
	}
	o.archive(ctx, runLog)

	o.metrics.RecordItems(ctx, req.Entity, "created", result.Stats.ItemsCreated)
	o.metrics.RecordItems(ctx, req.Entity, "updated", result.Stats.ItemsUpdated)
	o.metrics.RecordItems(ctx, req.Entity, "skipped", result.Stats.ItemsSkipped)

	slog.InfoContext(ctx, "tiny-sync run completed",
		"run_id", result.RunID.String(),
		"entity", req.Entity,
		"operation", req.Operation(),
		"items_processed", result.Stats.ItemsProcessed,
		"items_created", result.Stats.ItemsCreated,
		"items_updated", result.Stats.ItemsUpdated,
		"items_skipped", result.Stats.ItemsSkipped,
		"api_calls_used", result.Stats.APICallsUsed)

	return result, nil
}

func (o *Orchestrator) testConnection(ctx context.Context, client *erp.Client) (*Result, error) {
	if err := client.AccountInfo(ctx); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "ERP connectivity test succeeded")
	return &Result{
		TestOnly: true,
		Stats: Stats{
			APICallsUsed: client.CallsUsed(),
			MaxCalls:     client.MaxCalls(),
		},
	}, nil
}

// reconcile walks the page in remote order. It stops at the first error;
// writes already issued stay committed.
func (o *Orchestrator) reconcile(
	ctx context.Context,
	m Mapping,
	records []erp.Record,
	dryRun bool,
	result *Result,
) error {
	for i, rec := range records {
		tinyID := rec.ID()
		if tinyID == "" {
			return syncerr.Remote(fmt.Sprintf("ERP returned a %s without an id at position %d", m.Singular, i))
		}
		result.Stats.ItemsProcessed++

		hash := m.Hash(rec)

		existing, err := o.store.FindByLinkage(ctx, m.Table, m.LinkageColumn, tinyID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			existing = nil
		case err != nil:
			return syncerr.Storage("lookup", err)
		}

		if existing != nil && existing.Hash == hash {
			result.Stats.ItemsSkipped++
			continue
		}

		payload := m.Payload(rec, hash, o.now().UTC())

		action := ActionCreate
		if existing != nil {
			action = ActionUpdate
		}
		result.Summary = append(result.Summary, SummaryEntry{
			Action:   action,
			Entity:   m.Singular,
			TinyID:   tinyID,
			LabelKey: m.LabelKey,
			Label:    m.Label(rec),
		})

		if dryRun {
			continue
		}

		if existing != nil {
			if err := o.store.Update(ctx, m.Table, existing.ID, payload); err != nil {
				return syncerr.Storage("update", err)
			}
			result.Stats.ItemsUpdated++
			continue
		}
		if _, err := o.store.Insert(ctx, m.Table, payload); err != nil {
			return syncerr.Storage("insert", err)
		}
		result.Stats.ItemsCreated++
	}
	return nil
}

func (o *Orchestrator) persistRunLog(ctx context.Context, req Request, actor string, result *Result) (*store.RunLog, error) {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run summary: %w", err)
	}

	runLog := &store.RunLog{
		ID:             result.RunID,
		EntityType:     req.Entity,
		Operation:      req.Operation(),
		Status:         RunStatusSuccess,
		ItemsProcessed: result.Stats.ItemsProcessed,
		ItemsCreated:   result.Stats.ItemsCreated,
		ItemsUpdated:   result.Stats.ItemsUpdated,
		ItemsSkipped:   result.Stats.ItemsSkipped,
		APICallsUsed:   result.Stats.APICallsUsed,
		Summary:        summary,
		CreatedBy:      actor,
		CreatedAt:      o.now().UTC(),
	}
	if err := o.store.InsertRunLog(ctx, runLog); err != nil {
		return nil, syncerr.Storage("insert run log", err)
	}
	return runLog, nil
}

// archive uploads the run log when an archiver is configured. Failures are
// logged only.
func (o *Orchestrator) archive(ctx context.Context, runLog *store.RunLog) {
	if o.archiver == nil {
		return
	}
	if err := o.archiver.ArchiveRun(ctx, runLog); err != nil {
		slog.WarnContext(ctx, "Failed to archive run summary",
			"run_id", runLog.ID.String(),
			"entity", runLog.EntityType,
			"error", err)
	}
}
