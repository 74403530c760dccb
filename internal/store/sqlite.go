// Package store persists durable records in SQLite through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sqlite "github.com/glebarez/sqlite"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&model.User{},
		&model.DeviceToken{},
		&model.Notification{},
		&model.ScheduledNotification{},
		&model.Message{},
		&model.Comment{},
		&model.Like{},
		&model.Favorite{},
	}
}

// Open establishes a SQLite connection and performs schema migrations.
func Open(dsn string, maxOpen int, log *slog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Info("DATABASE_INITIALIZED", slog.String("dsn", dsn))
	return db, nil
}

// translate maps gorm errors onto the domain taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, model.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx)
}
