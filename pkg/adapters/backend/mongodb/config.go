package mongodb

import (
	"fmt"
	"time"
)

// Config contains MongoDB connection options.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	EnsureIndexes  bool
}

// DefaultConnectTimeout is used when the settings omit connect_timeout_seconds.
func DefaultConnectTimeout() time.Duration {
	return 10 * time.Second
}

// FromMap creates a Config from a generic settings map.
func FromMap(settings map[string]any) (*Config, error) {
	cfg := &Config{
		ConnectTimeout: DefaultConnectTimeout(),
		EnsureIndexes:  true,
	}

	if uri, ok := settings["uri"].(string); ok && uri != "" {
		cfg.URI = uri
	} else {
		return nil, fmt.Errorf("uri is required")
	}

	if database, ok := settings["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if secs, ok := settings["connect_timeout_seconds"].(float64); ok { // JSON numbers are float64
		cfg.ConnectTimeout = time.Duration(secs * float64(time.Second))
	} else if secs, ok := settings["connect_timeout_seconds"].(int); ok && secs > 0 {
		cfg.ConnectTimeout = time.Duration(secs) * time.Second
	}

	if ensure, ok := settings["ensure_indexes"].(bool); ok {
		cfg.EnsureIndexes = ensure
	}

	return cfg, nil
}
