package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atelier-ops/atelier-sync/internal/config"
	pkgsync "github.com/atelier-ops/atelier-sync/internal/sync"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

// SchedulerActor is recorded as created_by on scheduled runs
const SchedulerActor = "scheduler"

// Runner executes sync invocations
type Runner interface {
	Run(ctx context.Context, req pkgsync.Request, actor string) (*pkgsync.Result, error)
}

// Coordinator manages scheduled sync runs
type Coordinator interface {
	// Start schedules every job and blocks until ctx is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop cancels in-flight runs and waits for them to return
	Stop() error
}

// defaultCoordinator is the cron backed implementation of Coordinator
type defaultCoordinator struct {
	runner Runner
	jobs   []config.ScheduleJob
	cron   *cron.Cron

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*options)

type options struct {
	location *time.Location
}

// WithLocation overrides the timezone of the cron expressions
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// New creates a coordinator for the jobs of cfg. A nil cfg schedules nothing.
func New(runner Runner, cfg *config.ScheduleConfig, opts ...Option) (Coordinator, error) {
	o := &options{location: time.UTC}
	var jobs []config.ScheduleJob
	if cfg != nil {
		loc, err := cfg.GetLocation()
		if err != nil {
			return nil, fmt.Errorf("invalid schedule timezone: %w", err)
		}
		o.location = loc
		jobs = cfg.Jobs
	}
	for _, opt := range opts {
		opt(o)
	}

	logger := cronLogger{}
	c := &defaultCoordinator{
		runner: runner,
		jobs:   jobs,
		cron: cron.New(
			cron.WithLocation(o.location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		done: make(chan struct{}),
	}
	return c, nil
}

// Start registers the jobs and runs the scheduler until ctx is done
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer close(c.done)

	for _, job := range c.jobs {
		runJob := c.jobFunc(coordCtx, job)
		if _, err := c.cron.AddJob(job.Cron, cron.NewChain(cron.SkipIfStillRunning(cronLogger{})).Then(runJob)); err != nil {
			cancel()
			return fmt.Errorf("failed to schedule %s job %q: %w", job.Entity, job.Cron, err)
		}
		slog.Info("Scheduled sync job",
			"entity", job.Entity,
			"cron", job.Cron,
			"dry_run", job.DryRun)
	}

	slog.Info("Starting sync coordinator", "job_count", len(c.jobs))
	c.cron.Start()

	<-coordCtx.Done()

	slog.Info("Sync coordinator stopping")
	<-c.cron.Stop().Done()
	return nil
}

// Stop cancels the coordinator and waits for Start to return
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) jobFunc(ctx context.Context, job config.ScheduleJob) cron.FuncJob {
	return func() {
		c.runJob(ctx, job)
	}
}

// runJob executes one scheduled run and logs its outcome
func (c *defaultCoordinator) runJob(ctx context.Context, job config.ScheduleJob) {
	if ctx.Err() != nil {
		return
	}

	req := pkgsync.Request{Entity: job.Entity, DryRun: job.DryRun}
	start := time.Now()

	slog.Info("Starting scheduled sync", "entity", job.Entity, "dry_run", job.DryRun)

	result, err := c.runner.Run(ctx, req, SchedulerActor)
	duration := time.Since(start)

	switch {
	case errors.Is(err, syncerr.ErrConflict):
		slog.Info("Scheduled sync skipped, another run holds the lock",
			"entity", job.Entity)
	case err != nil:
		slog.Error("Scheduled sync failed",
			"entity", job.Entity,
			"kind", string(syncerr.KindOf(err)),
			"duration", duration,
			"error", syncerr.Excerpt(err))
	default:
		slog.Info("Scheduled sync completed",
			"entity", job.Entity,
			"run_id", result.RunID,
			"processed", result.Stats.ItemsProcessed,
			"created", result.Stats.ItemsCreated,
			"updated", result.Stats.ItemsUpdated,
			"skipped", result.Stats.ItemsSkipped,
			"api_calls", result.Stats.APICallsUsed,
			"duration", duration)
	}
}

// cronLogger routes robfig/cron logs to slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
