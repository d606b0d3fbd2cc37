package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

func init() {
	backend.Register(backend.Registration{
		Info: backend.AdapterInfo{
			Type:        "memory",
			DisplayName: "In-memory",
			Description: "Process-local tables for development and tests",
		},
		Factory: func(ctx context.Context, settings map[string]any, logger *zap.Logger) (backend.Backend, error) {
			logger.Warn("using in-memory query backend; data is not persisted")
			return NewAdapter(nil), nil
		},
	})
}
