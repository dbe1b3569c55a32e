package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-ops/atelier-sync/internal/api"
	"github.com/atelier-ops/atelier-sync/internal/api/health"
	"github.com/atelier-ops/atelier-sync/internal/api/tinysync"
	"github.com/atelier-ops/atelier-sync/internal/app/storage"
	"github.com/atelier-ops/atelier-sync/internal/config"
	"github.com/atelier-ops/atelier-sync/internal/httpclient"
	"github.com/atelier-ops/atelier-sync/internal/identity"
	"github.com/atelier-ops/atelier-sync/internal/lock"
	"github.com/atelier-ops/atelier-sync/internal/objectstore"
	"github.com/atelier-ops/atelier-sync/internal/secrets"
	"github.com/atelier-ops/atelier-sync/internal/store"
	pkgsync "github.com/atelier-ops/atelier-sync/internal/sync"
	"github.com/atelier-ops/atelier-sync/internal/sync/coordinator"
	"github.com/atelier-ops/atelier-sync/internal/telemetry"
)

const (
	// A run may spend its whole call budget on slow ERP responses, so the
	// request timeout is well above the ERP timeout.
	defaultRequestTimeout = 2 * time.Minute
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = defaultRequestTimeout + 15*time.Second
	defaultIdleTimeout    = 60 * time.Second

	// SyncTracerName names the tracer of the orchestrator and the store
	SyncTracerName = "github.com/atelier-ops/atelier-sync/sync"

	// devUserID is the caller identity when no auth section is configured
	devUserID = "local-dev"
)

// SyncAppOption is a function that configures the sync app builder
type SyncAppOption func(*syncAppConfig) error

// syncAppConfig collects the builder inputs. Injected components take
// precedence over the ones built from config.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	tokenSource    secrets.TokenSource
	httpClient     httpclient.Client
	locker         lock.Locker
	archiver       objectstore.Archiver
	resolver       identity.Resolver

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	metricsHandler http.Handler

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...SyncAppOption) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.GetAddress()
	}
	if cfg.requestTimeout == 0 {
		cfg.requestTimeout = cfg.config.Server.GetRequestTimeout()
	}
	if cfg.requestTimeout == 0 {
		cfg.requestTimeout = defaultRequestTimeout
	}

	return cfg, nil
}

// NewSyncApp wires every component described by the configuration
func NewSyncApp(ctx context.Context, opts ...SyncAppOption) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components := &AppComponents{}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			components.release()
		}
	}()

	if err := buildStorage(ctx, cfg, components); err != nil {
		return nil, fmt.Errorf("failed to build storage: %w", err)
	}

	if err := buildOrchestrator(ctx, cfg, components); err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	components.Coordinator, err = coordinator.New(components.Orchestrator, cfg.config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync coordinator: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	var releaseOnce sync.Once

	// Cleanup is now handled by the app
	cleanupNeeded = false

	return &SyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: func() {
			cancel()
			releaseOnce.Do(components.release)
		},
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithTokenSource overrides the ERP token source built from config
func WithTokenSource(src secrets.TokenSource) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.tokenSource = src
		return nil
	}
}

// WithHTTPClient overrides the HTTP client used for ERP calls
func WithHTTPClient(c httpclient.Client) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLocker overrides the run lock built from config
func WithLocker(l lock.Locker) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.locker = l
		return nil
	}
}

// WithArchiver overrides the run log archiver built from config
func WithArchiver(a objectstore.Archiver) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.archiver = a
		return nil
	}
}

// WithResolver overrides the caller identity resolver built from config
func WithResolver(r identity.Resolver) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.resolver = r
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP and sync metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithMetricsHandler exposes a scrape handler on GET /metrics
func WithMetricsHandler(h http.Handler) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) SyncAppOption {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

func (b *syncAppConfig) tracer() trace.Tracer {
	if b.tracerProvider == nil {
		return nil
	}
	return b.tracerProvider.Tracer(SyncTracerName)
}

// buildStorage creates the storage factory and the shared store
func buildStorage(ctx context.Context, b *syncAppConfig, c *AppComponents) error {
	if b.storageFactory == nil {
		var opts []storage.DatabaseFactoryOption
		if tracer := b.tracer(); tracer != nil {
			opts = append(opts, storage.WithTracer(tracer))
		}
		factory, err := storage.NewStorageFactory(ctx, b.config, opts...)
		if err != nil {
			return err
		}
		b.storageFactory = factory
	}
	c.StorageFactory = b.storageFactory

	st, err := b.storageFactory.CreateStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	c.Store = st
	return nil
}

// buildOrchestrator wires the token source, lock, archiver and metrics
// into the orchestrator
func buildOrchestrator(ctx context.Context, b *syncAppConfig, c *AppComponents) error {
	slog.Info("Initializing sync components")

	if b.tokenSource == nil {
		src, err := secrets.FromConfig(ctx, &b.config.ERP)
		if err != nil {
			return fmt.Errorf("failed to build ERP token source: %w", err)
		}
		b.tokenSource = src
	}

	if b.locker == nil {
		locker, closer, err := buildLocker(ctx, b.config.Lock)
		if err != nil {
			return err
		}
		b.locker = locker
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	if b.archiver == nil && b.config.ObjectStorage != nil {
		archiver, err := buildArchiver(ctx, b.config.ObjectStorage)
		if err != nil {
			return err
		}
		b.archiver = archiver
	}

	if b.httpClient == nil {
		b.httpClient = httpclient.NewDefaultClient(b.config.ERP.GetTimeout())
	}

	opts := []pkgsync.Option{
		pkgsync.WithSettings(pkgsync.Settings{
			BaseURL:  b.config.ERP.BaseURL,
			MaxCalls: b.config.ERP.MaxCalls,
		}),
		pkgsync.WithHTTPClient(b.httpClient),
		pkgsync.WithLocker(b.locker),
	}
	if b.config.ERP.PageSize > 0 {
		opts = append(opts, pkgsync.WithPageStrategy(pkgsync.SinglePage{Limit: b.config.ERP.PageSize}))
	}
	if b.archiver != nil {
		opts = append(opts, pkgsync.WithArchiver(b.archiver))
	}
	if tracer := b.tracer(); tracer != nil {
		opts = append(opts, pkgsync.WithTracer(tracer))
	}
	if b.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return fmt.Errorf("failed to create sync metrics: %w", err)
		}
		opts = append(opts, pkgsync.WithMetrics(syncMetrics))
		slog.Info("Sync metrics enabled")
	}

	c.Orchestrator = pkgsync.NewOrchestrator(b.tokenSource, c.Store, opts...)
	slog.Info("Sync components initialized successfully")
	return nil
}

// buildLocker connects to Redis when configured. Without a lock section
// runs are not serialised and the returned locker is nil.
func buildLocker(ctx context.Context, cfg *config.LockConfig) (lock.Locker, func() error, error) {
	if cfg == nil {
		slog.Info("No lock backend configured, run lock disabled")
		return nil, nil, nil
	}

	locker, client, err := lock.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.GetTTL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to lock backend: %w", err)
	}
	slog.Info("Using Redis run lock", "addr", cfg.Redis.Addr, "ttl", cfg.GetTTL())
	return locker, client.Close, nil
}

// buildArchiver creates the object storage client and the archive bucket
func buildArchiver(ctx context.Context, cfg *config.ObjectStorageConfig) (objectstore.Archiver, error) {
	secretKey, err := cfg.GetSecretKey()
	if err != nil {
		return nil, err
	}

	s, err := objectstore.NewMinioStore(objectstore.MinioOptions{
		Endpoint:      cfg.Endpoint,
		AccessKey:     cfg.AccessKey,
		SecretKey:     secretKey,
		Region:        cfg.Region,
		UseSSL:        cfg.UseSSL,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx, cfg.ArchiveBucket); err != nil {
		return nil, fmt.Errorf("failed to prepare archive bucket %s: %w", cfg.ArchiveBucket, err)
	}

	slog.Info("Run log archiving enabled", "bucket", cfg.ArchiveBucket)
	return objectstore.NewRunArchiver(s, cfg.ArchiveBucket), nil
}

// buildIdentity returns the caller resolver and role checker. Without an
// auth section every caller is the same local user and holds no role.
func buildIdentity(b *syncAppConfig, st store.RoleLister) (identity.Resolver, identity.RoleChecker, error) {
	if b.resolver != nil {
		roles, ok := b.resolver.(identity.RoleChecker)
		if !ok {
			return nil, nil, errors.New("injected resolver must also implement identity.RoleChecker")
		}
		return b.resolver, roles, nil
	}

	if b.config.Auth == nil {
		slog.Warn("No auth configured, every request runs as an anonymous local user without roles; do not use in production")
		dev := identity.StaticResolver{User: identity.User{ID: devUserID}}
		return dev, dev, nil
	}

	secret, err := b.config.Auth.GetJWTSecret()
	if err != nil {
		return nil, nil, err
	}
	resolver, err := identity.NewJWTResolver(secret, st,
		identity.WithIssuer(b.config.Auth.Issuer),
		identity.WithAudience(b.config.Auth.Audience),
	)
	if err != nil {
		return nil, nil, err
	}
	return resolver, resolver, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *syncAppConfig, c *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	users, roles, err := buildIdentity(b, c.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity resolver: %w", err)
	}

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}, b.middlewares...)
	}

	// Metrics go first so rejected requests are counted too
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
		slog.Info("HTTP metrics middleware enabled")
	}

	routes := tinysync.NewRoutes(c.Orchestrator, users, roles, c.Store, b.config.Auth.GetAdminRole())
	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithReadinessChecker(health.CheckerFunc(c.StorageFactory.CheckReadiness)),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	router := api.NewServer(routes, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
