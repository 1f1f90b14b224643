package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
	"gorm.io/gorm"
)

func createDispatchOutcomesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_dispatch_outcomes",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.DispatchOutcomeModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DispatchOutcomeModel{})
		},
	}
}
