package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	return logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
}

func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

// Open wraps any dialector with the shared logger and pool settings. Tests
// pass an in-memory sqlite dialector.
func Open(dialector gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger(log)})
	if err != nil {
		return nil, err
	}
	if err := configureConnectionPool(db); err != nil {
		return nil, err
	}
	return db, nil
}

func NewGormDBFromDSN(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(postgres.Open(dsn), log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// EnableVector installs the pgvector extension. Postgres only.
func EnableVector(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error
}
