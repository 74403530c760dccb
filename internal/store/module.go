package store

import (
	"context"
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("store",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
			db, err := Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, logger)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					sqlDB, err := db.DB()
					if err != nil {
						return err
					}
					return sqlDB.Close()
				},
			})
			return db, nil
		},
		NewUsers,
		NewTokens,
		NewNotifications,
		NewSchedules,
		NewMessages,
		NewComments,
		NewReactions,
	),
)
