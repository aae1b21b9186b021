package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the Postgres schema for every
// persisted model. Both processes call it on startup so either can be
// deployed first against a fresh database.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("nil gorm db")
	}
	return db.AutoMigrate(
		&User{},
		&Photo{},
		&Estimate{},
		&Meal{},
		&Goal{},
		&InlineAnalyticsDaily{},
	)
}
