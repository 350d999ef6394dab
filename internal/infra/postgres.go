package infra

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timelens/internal/config"
	"timelens/internal/models/db_models"
)

// InitPostgresql opens the pool and migrates the schema.
func InitPostgresql(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresURL), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	log.Info("PostgreSQL connected")
	return db, nil
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&db_models.User{},
		&db_models.UsageCounter{},
		&db_models.Subscription{},
		&db_models.Transaction{},
		&db_models.TransformResult{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func ClosePostgresql(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("Error getting database instance", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Error("Error closing database connection", zap.Error(err))
	} else {
		log.Info("PostgreSQL database connection closed successfully")
	}
}
