package db

import (
	"log"
	"time"

	"cashier-backend/internal/config"
	"cashier-backend/internal/metrics"
	"cashier-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB connects to the database and migrates the schema. The audit trail
// is required for operation; a missing DSN is fatal.
func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	dsn := config.AppConfig.Database.DSN

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		log.Fatalf("Failed to connect database: %v", err)
	}

	if err := DB.AutoMigrate(
		&models.OperationEvent{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	metrics.DBConnectionStatus.Set(1)
	startPoolMetrics()

	log.Println("Database connected and schema migrated")
}

// startPoolMetrics samples connection-pool stats in the background.
func startPoolMetrics() {
	sqlDB, err := DB.DB()
	if err != nil {
		return
	}
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := sqlDB.Stats()
			metrics.DBConnectionPoolSize.Set(float64(stats.OpenConnections))
			metrics.DBConnectionIdle.Set(float64(stats.Idle))
			if err := sqlDB.Ping(); err != nil {
				metrics.DBConnectionStatus.Set(0)
			} else {
				metrics.DBConnectionStatus.Set(1)
			}
		}
	}()
}
