package main

import (
	"fmt"

	"github.com/teeshirtminute/tm-autoreply/internal/config"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/infra/database"
	"github.com/teeshirtminute/tm-autoreply/internal/infra/database/migrations"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime holds what every command needs: configuration, a logger and a
// migrated database.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.NewDatabase(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, db: db}, nil
}

func (r *runtime) settingsRepo() *repository.GormSettingsRepo {
	return repository.NewGormSettingsRepo(r.db, domain.Settings{
		Enabled:     r.cfg.ServiceEnabled,
		EndpointURL: r.cfg.StoreAPIURL,
		APIKey:      r.cfg.StoreAPIKey,
		SIMSlot:     r.cfg.SIMSlot,
	})
}

func (r *runtime) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = r.logger.Sync()
}
