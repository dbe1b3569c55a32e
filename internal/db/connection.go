// Package db contains code for connecting to the database.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-ops/atelier-sync/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnectTimeout  = 10 * time.Second
	defaultMaxTries        = 5
	defaultInitialInterval = 500 * time.Millisecond
)

// Pinger is the part of a pool used to verify connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures connection retries
type Option func(*options)

type options struct {
	maxTries        uint
	initialInterval time.Duration
}

// WithMaxTries bounds the number of connectivity checks
func WithMaxTries(n uint) Option {
	return func(o *options) {
		o.maxTries = n
	}
}

// WithInitialInterval sets the first retry delay; later delays grow exponentially
func WithInitialInterval(d time.Duration) Option {
	return func(o *options) {
		o.initialInterval = d
	}
}

// NewPool creates a connection pool from the provided configuration and
// waits until the database answers a ping
func NewPool(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("database configuration is required")
	}

	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to get database password: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	poolCfg.MaxConns = defaultMaxOpenConns
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = cfg.MaxOpenConns
	}
	poolCfg.MaxConnLifetime = defaultConnMaxLifetime
	if lifetime := cfg.GetConnMaxLifetime(); lifetime > 0 {
		poolCfg.MaxConnLifetime = lifetime
	}
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := WaitForDatabase(ctx, pool, opts...); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("Database connection established",
		"user", cfg.User,
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database)

	return pool, nil
}

// WaitForDatabase pings until the database answers, the retries run out
// or ctx is done
func WaitForDatabase(ctx context.Context, p Pinger, opts ...Option) error {
	o := &options{
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(o)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.initialInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Database not reachable", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(o.maxTries),
	)
	if err != nil {
		return fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
	}
	return nil
}
