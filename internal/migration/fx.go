package migration

import (
	"context"

	"github.com/smallbiznis/finsight/internal/config"
	"github.com/smallbiznis/finsight/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates on start and, when bootstrap is enabled, seeds the default
// organization and administrator.
var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config, seeder *seed.Seeder, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := Run(ctx, conn); err != nil {
					return err
				}
				log.Info("schema up to date")
				if !cfg.Bootstrap.Enabled {
					return nil
				}
				_, err := seeder.Run(ctx)
				return err
			},
		})
	}),
)
