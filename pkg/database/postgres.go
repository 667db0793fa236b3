package database

import (
	"fmt"
	"log"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// indexes that AutoMigrate cannot express. The capacity, payment and
// admission checks live on the model tags.
var indexes = []string{
	// at most one live reservation per table
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_live_table
		ON table_reservations (table_id)
		WHERE table_id IS NOT NULL AND status IN ('HELD', 'CONFIRMED')`,
}

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// Migrate creates the schema, its check constraints and the partial
// indexes. The statements run on both Postgres and SQLite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
