package database

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahmetk3436/markops/internal/models"
)

func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("Database connected")
	return db, nil
}

// Migrate creates the schema plus the partial unique index that enforces a
// single open incident per (data source, checked URL).
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("enable pgcrypto: %w", err)
	}
	err := db.AutoMigrate(
		&models.Client{},
		&models.AccountIssues{},
		&models.DataSource{},
		&models.UptimeCheck{},
		&models.SSLCert{},
		&models.Incident{},
		&models.IncidentEvent{},
		&models.Notification{},
		&models.CampaignMetric{},
		&models.KPIReport{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_incident_open_per_url
		ON incidents (data_source_id, checked_url)
		WHERE status IN ('ONGOING', 'ACKNOWLEDGED')`).Error
}

// Pinger returns a health probe for the pool behind db.
func Pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
