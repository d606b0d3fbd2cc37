package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

func init() {
	backend.Register(backend.Registration{
		Info: backend.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Tables accessed through generated single-table statements",
		},
		Factory: func(ctx context.Context, settings map[string]any, logger *zap.Logger) (backend.Backend, error) {
			cfg, err := FromMap(settings)
			if err != nil {
				return nil, err
			}
			if cfg.RunMigrations {
				if err := RunMigrations(buildConnectionString(cfg), logger); err != nil {
					return nil, err
				}
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
