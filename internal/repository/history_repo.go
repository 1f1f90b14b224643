package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"gorm.io/gorm"
)

// HistoryRepository stores dispatch outcomes, newest first, capped at
// domain.MaxHistoryEntries.
type HistoryRepository interface {
	Add(ctx context.Context, outcome *domain.DispatchOutcome) error
	List(ctx context.Context, limit int) ([]domain.DispatchOutcome, error)
	Last(ctx context.Context) (*domain.DispatchOutcome, error)
	Clear(ctx context.Context) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type GormHistoryRepo struct {
	db         *gorm.DB
	maxEntries int
	now        func() time.Time
}

var _ HistoryRepository = (*GormHistoryRepo)(nil)

func NewGormHistoryRepo(db *gorm.DB) *GormHistoryRepo {
	return &GormHistoryRepo{
		db:         db,
		maxEntries: domain.MaxHistoryEntries,
		now:        time.Now,
	}
}

// Add inserts outcome and evicts everything older than the newest
// maxEntries rows in the same transaction.
func (r *GormHistoryRepo) Add(ctx context.Context, outcome *domain.DispatchOutcome) error {
	if outcome == nil {
		return fmt.Errorf("%w: outcome is required", domain.ErrValidation)
	}
	if err := outcome.Validate(); err != nil {
		return err
	}
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = r.now().UTC()
	}

	model := outcomeModelFromDomain(outcome)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		var cutoff []int64
		if err := tx.Model(&DispatchOutcomeModel{}).
			Order("seq DESC").
			Offset(r.maxEntries).
			Limit(1).
			Pluck("seq", &cutoff).Error; err != nil {
			return err
		}
		if len(cutoff) == 0 {
			return nil
		}

		return tx.Where("seq <= ?", cutoff[0]).Delete(&DispatchOutcomeModel{}).Error
	})
}

// List returns up to limit outcomes, most recent first. A non-positive limit
// returns the whole history.
func (r *GormHistoryRepo) List(ctx context.Context, limit int) ([]domain.DispatchOutcome, error) {
	if limit <= 0 || limit > r.maxEntries {
		limit = r.maxEntries
	}

	var models []DispatchOutcomeModel
	if err := r.db.WithContext(ctx).
		Order("seq DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	outcomes := make([]domain.DispatchOutcome, 0, len(models))
	for i := range models {
		outcomes = append(outcomes, *outcomeModelToDomain(&models[i]))
	}
	return outcomes, nil
}

func (r *GormHistoryRepo) Last(ctx context.Context) (*domain.DispatchOutcome, error) {
	var model DispatchOutcomeModel
	err := r.db.WithContext(ctx).Order("seq DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return outcomeModelToDomain(&model), nil
}

func (r *GormHistoryRepo) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&DispatchOutcomeModel{}).Error
}

// CountSince counts outcomes recorded at or after since.
func (r *GormHistoryRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DispatchOutcomeModel{}).
		Where("recorded_at >= ?", since.UTC()).
		Count(&count).Error
	return count, err
}
