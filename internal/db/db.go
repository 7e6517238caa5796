package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the postgres connection used by every handler.
func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}
