package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func createDailyCountersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_daily_counters",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DailyCounterModel{}); err != nil {
				return err
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&repository.DailyCounterModel{ID: repository.DailyCounterRowID}).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DailyCounterModel{})
		},
	}
}
