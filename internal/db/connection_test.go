package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-sync/internal/config"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForDatabase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		maxTries  uint
		wantErr   bool
		wantCalls int
	}{
		{name: "first ping succeeds", failures: 0, maxTries: 3, wantCalls: 1},
		{name: "recovers after retries", failures: 2, maxTries: 3, wantCalls: 3},
		{name: "gives up", failures: 5, maxTries: 3, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &flakyPinger{failures: tt.failures}
			err := WaitForDatabase(context.Background(), p,
				WithMaxTries(tt.maxTries),
				WithInitialInterval(time.Millisecond))

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "connection refused")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, p.calls)
		})
	}
}

func TestWaitForDatabase_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForDatabase(ctx, &flakyPinger{failures: 100},
		WithMaxTries(50),
		WithInitialInterval(time.Second))
	require.Error(t, err)
}

func TestNewPool_InvalidConfig(t *testing.T) {
	_, err := NewPool(context.Background(), nil)
	require.Error(t, err)

	t.Run("missing password", func(t *testing.T) {
		cfg := &config.DatabaseConfig{Host: "localhost", Port: 5432, User: "sync", Database: "atelier"}
		t.Setenv(config.DatabasePasswordEnv, "")
		_, err := NewPool(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "password")
	})
}
