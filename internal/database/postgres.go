package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jengzang/spotmap-go/internal/models"
)

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	DSN        string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// OpenPostgres connects through gorm, retrying while the server comes up,
// and migrates the spot and user tables
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*gorm.DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 30
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < cfg.MaxRetries; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err == nil {
			break
		}
		logger.Warn("waiting for database",
			zap.Int("attempt", i+1),
			zap.Int("max", cfg.MaxRetries),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.PublicSpot{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	logger.Info("postgres initialized")
	return db, nil
}
