package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-sync/internal/config"
	pkgsync "github.com/atelier-ops/atelier-sync/internal/sync"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

type recordingRunner struct {
	mu     sync.Mutex
	reqs   []pkgsync.Request
	actors []string
	err    error
}

func (r *recordingRunner) Run(_ context.Context, req pkgsync.Request, actor string) (*pkgsync.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	r.actors = append(r.actors, actor)
	if r.err != nil {
		return nil, r.err
	}
	return &pkgsync.Result{Entity: req.Entity, DryRun: req.DryRun}, nil
}

func (r *recordingRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *config.ScheduleConfig
		wantErr bool
	}{
		{name: "nil schedule", cfg: nil},
		{name: "utc default", cfg: &config.ScheduleConfig{Jobs: []config.ScheduleJob{{Entity: "products", Cron: "@hourly"}}}},
		{name: "named timezone", cfg: &config.ScheduleConfig{Timezone: "America/Sao_Paulo"}},
		{name: "unknown timezone", cfg: &config.ScheduleConfig{Timezone: "Mars/Olympus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			coord, err := New(&recordingRunner{}, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, coord)
		})
	}
}

func TestRunJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		job  config.ScheduleJob
		err  error
	}{
		{name: "apply run", job: config.ScheduleJob{Entity: "products", Cron: "@hourly"}},
		{name: "dry run", job: config.ScheduleJob{Entity: "orders", Cron: "@daily", DryRun: true}},
		{name: "lock conflict is not fatal", job: config.ScheduleJob{Entity: "contacts", Cron: "@hourly"}, err: syncerr.Conflict("sync already running for contacts")},
		{name: "run failure is not fatal", job: config.ScheduleJob{Entity: "contacts", Cron: "@hourly"}, err: syncerr.RemoteUnavailable(503, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &recordingRunner{err: tt.err}
			coord, err := New(runner, nil)
			require.NoError(t, err)

			coord.(*defaultCoordinator).runJob(context.Background(), tt.job)

			require.Equal(t, 1, runner.calls())
			assert.Equal(t, pkgsync.Request{Entity: tt.job.Entity, DryRun: tt.job.DryRun}, runner.reqs[0])
			assert.Equal(t, SchedulerActor, runner.actors[0])
		})
	}
}

func TestRunJob_CancelledContext(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	coord, err := New(runner, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	coord.(*defaultCoordinator).runJob(ctx, config.ScheduleJob{Entity: "products"})

	assert.Zero(t, runner.calls())
}

func TestStart_InvalidCron(t *testing.T) {
	t.Parallel()

	coord, err := New(&recordingRunner{}, &config.ScheduleConfig{
		Jobs: []config.ScheduleJob{{Entity: "products", Cron: "every tuesday"}},
	})
	require.NoError(t, err)

	err = coord.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every tuesday")
}

func TestStop_WithoutStart(t *testing.T) {
	t.Parallel()

	coord, err := New(&recordingRunner{}, nil)
	require.NoError(t, err)
	assert.NoError(t, coord.Stop())
}

func TestStartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a cron tick")
	}
	t.Parallel()

	runner := &recordingRunner{}
	coord, err := New(runner, &config.ScheduleConfig{
		Jobs: []config.ScheduleJob{{Entity: "products", Cron: "@every 1s", DryRun: true}},
	})
	require.NoError(t, err)

	started := make(chan error, 1)
	go func() { started <- coord.Start(context.Background()) }()

	require.Eventually(t, func() bool { return runner.calls() > 0 }, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, coord.Stop())
	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestStart_ParentContextCancelled(t *testing.T) {
	t.Parallel()

	coord, err := New(&recordingRunner{}, &config.ScheduleConfig{
		Jobs: []config.ScheduleJob{{Entity: "orders", Cron: "@daily"}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coord.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.False(t, errors.Is(err, context.Canceled))
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
