// Package config provides configuration loading and management for the sync service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/atelier-ops/atelier-sync/internal/telemetry"
)

const (
	// EnvPrefix prefixes the environment variables read through viper
	EnvPrefix = "ATELIER_SYNC"

	// DefaultAddress is the HTTP listen address
	DefaultAddress = ":8080"

	// DefaultTokenEnv is the environment variable holding the ERP token
	DefaultTokenEnv = "TINY_API_TOKEN"

	// DefaultERPTimeout bounds each ERP request
	DefaultERPTimeout = 30 * time.Second

	// DefaultLockTTL bounds how long a crashed run holds the entity lock
	DefaultLockTTL = 2 * time.Minute

	// DefaultAdminRole is the role allowed to read the run log
	DefaultAdminRole = "admin"

	// DatabasePasswordEnv is read when no password file is configured
	DatabasePasswordEnv = "ATELIER_DATABASE_PASSWORD"

	// JWTSecretEnv is read when no JWT secret is configured
	JWTSecretEnv = "ATELIER_JWT_SECRET"

	// ObjectStorageSecretKeyEnv is read when no object storage secret is configured
	ObjectStorageSecretKeyEnv = "ATELIER_OBJECT_STORAGE_SECRET_KEY"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server ServerConfig `yaml:"server,omitempty"`

	// ERP configures the remote ERP client and its token
	ERP ERPConfig `yaml:"erp"`

	// Database selects the Postgres data store. When nil the service runs
	// on the in-memory store.
	Database *DatabaseConfig `yaml:"database,omitempty"`

	Auth          *AuthConfig          `yaml:"auth,omitempty"`
	ObjectStorage *ObjectStorageConfig `yaml:"objectStorage,omitempty"`
	Lock          *LockConfig          `yaml:"lock,omitempty"`
	Schedule      *ScheduleConfig      `yaml:"schedule,omitempty"`
	Telemetry     *telemetry.Config    `yaml:"telemetry,omitempty"`
}

// ServerConfig defines the HTTP server settings
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080"
	Address string `yaml:"address,omitempty"`

	// RequestTimeout bounds each HTTP request (e.g. "60s")
	RequestTimeout string `yaml:"requestTimeout,omitempty" validate:"omitempty,duration"`
}

// ERPConfig defines the remote ERP settings
type ERPConfig struct {
	// BaseURL of the ERP API. Defaults to the public endpoint.
	BaseURL string `yaml:"baseURL,omitempty" validate:"omitempty,http_url"`

	// Token is the ERP API token inline. Prefer TokenFile or AWSSecret.
	Token string `yaml:"token,omitempty"`

	// TokenFile is a file holding only the token
	TokenFile string `yaml:"tokenFile,omitempty"`

	// TokenEnv names the environment variable holding the token.
	// Defaults to TINY_API_TOKEN.
	TokenEnv string `yaml:"tokenEnv,omitempty"`

	// AWSSecret reads the token from AWS Secrets Manager
	AWSSecret *AWSSecretConfig `yaml:"awsSecret,omitempty"`

	// MaxCalls is the per-invocation call budget. Defaults to 3.
	MaxCalls int `yaml:"maxCalls,omitempty" validate:"gte=0,lte=10"`

	// PageSize caps the records reconciled per invocation. Defaults to 50.
	PageSize int `yaml:"pageSize,omitempty" validate:"gte=0,lte=100"`

	// Timeout bounds each ERP request (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty" validate:"omitempty,duration"`
}

// AWSSecretConfig locates the ERP token in AWS Secrets Manager
type AWSSecretConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Region string `yaml:"region,omitempty"`

	// JSONKey reads the token from a key of a JSON secret
	JSONKey string `yaml:"jsonKey,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host" validate:"required"`

	// Port is the database server port
	Port int `yaml:"port" validate:"required,min=1,max=65535"`

	// User is the database username
	User string `yaml:"user" validate:"required"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database" validate:"required"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty" validate:"gte=0"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty" validate:"omitempty,duration"`

	// MigrateOnStart applies pending migrations before serving
	MigrateOnStart bool `yaml:"migrateOnStart,omitempty"`
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	// JWTSecret is the HS256 signing secret of the identity platform
	JWTSecret string `yaml:"jwtSecret,omitempty"`

	// JWTSecretFile is a file holding only the secret
	JWTSecretFile string `yaml:"jwtSecretFile,omitempty"`

	// Issuer, when set, must match the token's iss claim
	Issuer string `yaml:"issuer,omitempty"`

	// Audience, when set, must be present in the token's aud claim
	Audience string `yaml:"audience,omitempty"`

	// AdminRole may read the run log. Defaults to "admin".
	AdminRole string `yaml:"adminRole,omitempty"`
}

// ObjectStorageConfig configures the S3-compatible store used for run archives
type ObjectStorageConfig struct {
	Endpoint      string `yaml:"endpoint" validate:"required,hostname_port"`
	AccessKey     string `yaml:"accessKey" validate:"required"`
	SecretKey     string `yaml:"secretKey,omitempty"`
	SecretKeyFile string `yaml:"secretKeyFile,omitempty"`
	Region        string `yaml:"region,omitempty"`
	UseSSL        bool   `yaml:"useSSL,omitempty"`

	// PublicBaseURL overrides the host of public object URLs
	PublicBaseURL string `yaml:"publicBaseURL,omitempty" validate:"omitempty,http_url"`

	// ArchiveBucket receives a JSON copy of every run summary
	ArchiveBucket string `yaml:"archiveBucket" validate:"required"`
}

// LockConfig enables the per-entity run lock
type LockConfig struct {
	Redis RedisConfig `yaml:"redis"`

	// TTL bounds how long a lock outlives a crashed run (e.g. "2m")
	TTL string `yaml:"ttl,omitempty" validate:"omitempty,duration"`
}

// RedisConfig defines the Redis connection of the run lock
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" validate:"gte=0"`
}

// ScheduleConfig defines cron-driven runs
type ScheduleConfig struct {
	// Timezone of the cron expressions. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	Jobs []ScheduleJob `yaml:"jobs" validate:"dive"`
}

// ScheduleJob runs one entity on a cron schedule
type ScheduleJob struct {
	Entity string `yaml:"entity" validate:"required,oneof=contacts products orders"`

	// Cron is a standard five-field expression or a descriptor like "@hourly"
	Cron string `yaml:"cron" validate:"required"`

	DryRun bool `yaml:"dryRun,omitempty"`
}

// GetAddress returns the listen address, using the default if not specified
func (s ServerConfig) GetAddress() string {
	if s.Address == "" {
		return DefaultAddress
	}
	return s.Address
}

// GetRequestTimeout returns the request timeout, or zero for the server default
func (s ServerConfig) GetRequestTimeout() time.Duration {
	d, _ := time.ParseDuration(s.RequestTimeout)
	return d
}

// GetTokenEnv returns the token environment variable name
func (e *ERPConfig) GetTokenEnv() string {
	if e.TokenEnv == "" {
		return DefaultTokenEnv
	}
	return e.TokenEnv
}

// GetTimeout returns the ERP request timeout
func (e *ERPConfig) GetTimeout() time.Duration {
	if d, err := time.ParseDuration(e.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultERPTimeout
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from ATELIER_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		return readSecretFile(d.PasswordFile, "password")
	}

	if envPassword := os.Getenv(DatabasePasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", DatabasePasswordEnv,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetConnMaxLifetime returns the connection lifetime, or zero for the pool default
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	lifetime, _ := time.ParseDuration(d.ConnMaxLifetime)
	return lifetime
}

// GetJWTSecret returns the signing secret from JWTSecretFile, JWTSecret or
// ATELIER_JWT_SECRET, in that order.
func (a *AuthConfig) GetJWTSecret() (string, error) {
	if a.JWTSecretFile != "" {
		return readSecretFile(a.JWTSecretFile, "JWT secret")
	}
	if a.JWTSecret != "" {
		return a.JWTSecret, nil
	}
	if env := os.Getenv(JWTSecretEnv); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no JWT secret configured: set jwtSecret, jwtSecretFile or %s", JWTSecretEnv)
}

// GetAdminRole returns the admin role name
func (a *AuthConfig) GetAdminRole() string {
	if a == nil || a.AdminRole == "" {
		return DefaultAdminRole
	}
	return a.AdminRole
}

// GetSecretKey returns the object storage secret from SecretKeyFile, SecretKey
// or ATELIER_OBJECT_STORAGE_SECRET_KEY, in that order.
func (o *ObjectStorageConfig) GetSecretKey() (string, error) {
	if o.SecretKeyFile != "" {
		return readSecretFile(o.SecretKeyFile, "secret key")
	}
	if o.SecretKey != "" {
		return o.SecretKey, nil
	}
	if env := os.Getenv(ObjectStorageSecretKeyEnv); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no object storage secret key configured: set secretKey, secretKeyFile or %s",
		ObjectStorageSecretKeyEnv)
}

// GetTTL returns the lock TTL
func (l *LockConfig) GetTTL() time.Duration {
	if d, err := time.ParseDuration(l.TTL); err == nil && d > 0 {
		return d
	}
	return DefaultLockTTL
}

// GetLocation returns the schedule time zone
func (s *ScheduleConfig) GetLocation() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

func readSecretFile(path, what string) (string, error) {
	// Use filepath.Clean to prevent path traversal attacks
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to read %s from file %s: %w", what, path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// validator has no built-in duration string check
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(c); err != nil {
		return describeValidationError(err)
	}

	var errs []error

	if c.ERP.AWSSecret != nil && c.ERP.Token != "" {
		errs = append(errs, fmt.Errorf("erp: token and awsSecret are mutually exclusive"))
	}

	if c.Schedule != nil {
		if _, err := c.Schedule.GetLocation(); err != nil {
			errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
		}
		for i, job := range c.Schedule.Jobs {
			if _, err := cron.ParseStandard(job.Cron); err != nil {
				errs = append(errs, fmt.Errorf("schedule.jobs[%d] (%s): invalid cron %q: %w", i, job.Entity, job.Cron, err))
			}
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// describeValidationError turns validator output into "<path>: failed <tag>" lines
func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			errs = append(errs, fmt.Errorf("%s: failed %s=%s", path, fe.Tag(), fe.Param()))
		} else {
			errs = append(errs, fmt.Errorf("%s: failed %s", path, fe.Tag()))
		}
	}
	return errors.Join(errs...)
}
