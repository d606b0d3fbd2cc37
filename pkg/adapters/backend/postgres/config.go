package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/querybridge/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string // "disable", "require", "verify-ca", "verify-full"
	MaxConnections int32
	RunMigrations  bool
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromMap creates a Config from a generic settings map.
func FromMap(settings map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		SSLMode: DefaultSSLMode(),
	}

	if host, ok := settings["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := settings["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := settings["port"].(int); ok {
		cfg.Port = port
	}

	if user, ok := settings["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := settings["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := settings["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if sslMode, ok := settings["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}

	if maxConns, ok := settings["max_connections"].(int); ok {
		cfg.MaxConnections = int32(maxConns)
	} else if maxConns, ok := settings["max_connections"].(int32); ok {
		cfg.MaxConnections = maxConns
	}

	if run, ok := settings["run_migrations"].(bool); ok {
		cfg.RunMigrations = run
	}

	return cfg, nil
}

// buildConnectionString builds a PostgreSQL URL with every user-provided
// field escaped. localhost resolves to host.docker.internal inside Docker.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		config.HostPort(cfg.Host, cfg.Port),
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}
