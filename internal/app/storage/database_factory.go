package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-ops/atelier-sync/database"
	"github.com/atelier-ops/atelier-sync/internal/config"
	"github.com/atelier-ops/atelier-sync/internal/db"
	"github.com/atelier-ops/atelier-sync/internal/store"
)

// DatabaseFactory creates the PostgreSQL backed store
type DatabaseFactory struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer

	connectOpts []db.Option
}

var _ Factory = (*DatabaseFactory)(nil)

// DatabaseFactoryOption is a functional option for configuring the DatabaseFactory
type DatabaseFactoryOption func(*DatabaseFactory)

// WithTracer sets the OpenTelemetry tracer for store queries.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.tracer = tracer
	}
}

// WithConnectOptions tunes the connection retries
func WithConnectOptions(opts ...db.Option) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.connectOpts = append(f.connectOpts, opts...)
	}
}

// NewDatabaseFactory connects to the configured database and, when
// MigrateOnStart is set, applies pending migrations
func NewDatabaseFactory(ctx context.Context, cfg *config.DatabaseConfig, opts ...DatabaseFactoryOption) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, errors.New("database configuration is required")
	}

	factory := &DatabaseFactory{}
	for _, opt := range opts {
		opt(factory)
	}

	slog.Info("Creating database-backed storage factory")

	if cfg.MigrateOnStart {
		if err := runMigrations(cfg); err != nil {
			return nil, err
		}
	}

	pool, err := db.NewPool(ctx, cfg, factory.connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	factory.pool = pool

	return factory, nil
}

// NewDatabaseFactoryFromPool wraps an existing pool. The factory takes
// ownership and closes it on Cleanup.
func NewDatabaseFactoryFromPool(pool *pgxpool.Pool, opts ...DatabaseFactoryOption) *DatabaseFactory {
	factory := &DatabaseFactory{pool: pool}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// CreateStore returns a store on the factory's pool
func (d *DatabaseFactory) CreateStore(_ context.Context) (store.Store, error) {
	var opts []store.PostgresOption
	if d.tracer != nil {
		opts = append(opts, store.WithTracer(d.tracer))
		slog.Debug("Database store tracing enabled")
	}
	return store.NewPostgresStore(d.pool, opts...), nil
}

// CheckReadiness pings the database
func (d *DatabaseFactory) CheckReadiness(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Cleanup closes the connection pool
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

func runMigrations(cfg *config.DatabaseConfig) error {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to get database password: %w", err)
	}

	m, err := database.NewFromConnectionString(connStr)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)
	return nil
}
