package database

import (
	"github.com/kevgathuku/server/pkg/models"
	"gorm.io/gorm"
)

// MigrateDB brings the schema up to date. The share schema is small
// enough that gorm's auto migration covers it.
func MigrateDB(db *gorm.DB) error {
	if err := db.Exec("CREATE SCHEMA IF NOT EXISTS server").Error; err != nil {
		return err
	}
	return db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.File{},
		&models.Share{},
	)
}
