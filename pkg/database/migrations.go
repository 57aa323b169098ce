package database

import (
	"github.com/wagateway/pkg/entities"
	"gorm.io/gorm"
)

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entities.Organization{},
		&entities.OrganizationCredential{},
		&entities.User{},
		&entities.Integration{},
		&entities.Instance{},
		&entities.Contact{},
		&entities.Conversation{},
		&entities.Message{},
	)
}
