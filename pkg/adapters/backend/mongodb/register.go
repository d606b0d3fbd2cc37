package mongodb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

func init() {
	backend.Register(backend.Registration{
		Info: backend.AdapterInfo{
			Type:        "mongodb",
			DisplayName: "MongoDB",
			Description: "Collections as tables, relation embedding through $lookup",
		},
		Factory: func(ctx context.Context, settings map[string]any, logger *zap.Logger) (backend.Backend, error) {
			cfg, err := FromMap(settings)
			if err != nil {
				return nil, err
			}
			adapter, err := NewAdapter(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			if cfg.EnsureIndexes {
				if err := adapter.EnsureIndexes(ctx); err != nil {
					_ = adapter.Close(ctx)
					return nil, fmt.Errorf("ensure indexes: %w", err)
				}
			}
			return adapter, nil
		},
	})
}
