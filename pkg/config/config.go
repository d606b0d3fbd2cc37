package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for querybridge.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Backend     BackendConfig     `yaml:"backend"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Probe       ProbeConfig       `yaml:"probe"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// BackendConfig selects the table/document backend queries execute against.
type BackendConfig struct {
	// Type is one of the registered backend adapters: mongodb, postgres, memory.
	Type string `yaml:"type" env:"QUERY_BACKEND" env-default:"mongodb"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	Host                  string `yaml:"host" env:"MONGO_HOST" env-default:"localhost"`
	Port                  int    `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User                  string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password              string `yaml:"-" env:"MONGO_PASSWORD"` // Secret - not in YAML
	Database              string `yaml:"database" env:"MONGO_DATABASE" env-default:"contracts"`
	URI                   string `yaml:"uri" env:"MONGO_URI" env-default:""` // Overrides host/port/user when set
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds" env:"MONGO_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
	EnsureIndexes         bool   `yaml:"ensure_indexes" env:"MONGO_ENSURE_INDEXES" env-default:"true"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"querybridge"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"contracts"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	RunMigrations  bool   `yaml:"run_migrations" env:"PG_RUN_MIGRATIONS" env-default:"true"`
}

// RedisConfig holds Redis settings. An empty host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// ProbeConfig controls the backend health probe.
type ProbeConfig struct {
	TimeoutMillis int    `yaml:"timeout_millis" env:"PROBE_TIMEOUT_MILLIS" env-default:"3000"`
	Table         string `yaml:"table" env:"PROBE_TABLE" env-default:"roles"`
}

// MaintenanceConfig controls startup backfills and the periodic job.
type MaintenanceConfig struct {
	RunOnStartup bool `yaml:"run_on_startup" env:"MAINTENANCE_RUN_ON_STARTUP" env-default:"true"`
	// IntervalMinutes is the periodic job interval; 0 disables the job.
	IntervalMinutes int `yaml:"interval_minutes" env:"MAINTENANCE_INTERVAL_MINUTES" env-default:"60"`
	LockTTLSeconds  int `yaml:"lock_ttl_seconds" env:"MAINTENANCE_LOCK_TTL_SECONDS" env-default:"300"`
}

// knownBackends are the adapter types config accepts.
var knownBackends = []string{"mongodb", "postgres", "memory"}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist only the environment is read.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile reads configuration from path with environment variable overrides.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		if !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c *Config) Validate() error {
	valid := false
	for _, t := range knownBackends {
		if c.Backend.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("backend.type %q must be one of %v", c.Backend.Type, knownBackends)
	}
	if c.Probe.TimeoutMillis <= 0 {
		return fmt.Errorf("probe.timeout_millis must be positive, got %d", c.Probe.TimeoutMillis)
	}
	if c.Probe.Table == "" {
		return fmt.Errorf("probe.table must not be empty")
	}
	if c.Maintenance.IntervalMinutes < 0 {
		return fmt.Errorf("maintenance.interval_minutes must not be negative")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ConnectionURI returns the MongoDB connection URI. An explicit URI wins;
// otherwise one is assembled with escaped credentials.
func (c *MongoConfig) ConnectionURI() string {
	if c.URI != "" {
		return c.URI
	}
	u := &url.URL{
		Scheme: "mongodb",
		Host:   HostPort(c.Host, c.Port),
		Path:   "/",
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// BackendSettings returns the generic settings map handed to the backend
// registry factory for the configured backend type.
func (c *Config) BackendSettings() map[string]any {
	switch c.Backend.Type {
	case "mongodb":
		return map[string]any{
			"uri":                     c.Mongo.ConnectionURI(),
			"database":                c.Mongo.Database,
			"connect_timeout_seconds": c.Mongo.ConnectTimeoutSeconds,
			"ensure_indexes":          c.Mongo.EnsureIndexes,
		}
	case "postgres":
		return map[string]any{
			"host":            c.Postgres.Host,
			"port":            c.Postgres.Port,
			"user":            c.Postgres.User,
			"password":        c.Postgres.Password,
			"database":        c.Postgres.Database,
			"ssl_mode":        c.Postgres.SSLMode,
			"max_connections": c.Postgres.MaxConnections,
			"run_migrations":  c.Postgres.RunMigrations,
		}
	default:
		return map[string]any{}
	}
}
