package repository

import (
	"context"
	"errors"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, settings *domain.Settings) error
}

type GormSettingsRepo struct {
	db       *gorm.DB
	defaults domain.Settings
	now      func() time.Time
}

var _ SettingsRepository = (*GormSettingsRepo)(nil)

// NewGormSettingsRepo returns a repository that reports defaults until
// settings are saved for the first time.
func NewGormSettingsRepo(db *gorm.DB, defaults domain.Settings) *GormSettingsRepo {
	defaults.Normalize()
	return &GormSettingsRepo{db: db, defaults: defaults, now: time.Now}
}

func (r *GormSettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	var model SettingsModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := r.defaults
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return settingsModelToDomain(&model), nil
}

func (r *GormSettingsRepo) Save(ctx context.Context, settings *domain.Settings) error {
	if settings == nil {
		return errors.New("settings are required")
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return err
	}

	settings.UpdatedAt = r.now().UTC()
	model := settingsModelFromDomain(settings)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error; err != nil {
		return err
	}
	return nil
}
