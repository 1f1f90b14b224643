package repository

import (
	"context"
	"errors"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterStore keeps the number of replies sent today. Increment resets the
// count when the day changed since the last send.
type CounterStore interface {
	Increment(ctx context.Context, phoneNumber string, at time.Time) (*domain.DailySendCounter, error)
	Get(ctx context.Context) (*domain.DailySendCounter, error)
}

type GormCounterRepo struct {
	db  *gorm.DB
	loc *time.Location
}

var _ CounterStore = (*GormCounterRepo)(nil)

func NewGormCounterRepo(db *gorm.DB, loc *time.Location) *GormCounterRepo {
	if loc == nil {
		loc = time.Local
	}
	return &GormCounterRepo{db: db, loc: loc}
}

func (r *GormCounterRepo) Increment(ctx context.Context, phoneNumber string, at time.Time) (*domain.DailySendCounter, error) {
	var model DailyCounterModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", DailyCounterRowID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			model = DailyCounterModel{ID: DailyCounterRowID}
		} else if err != nil {
			return err
		}

		key := domain.DateKey(at, r.loc)
		if model.DateKey != key {
			model.DateKey = key
			model.Count = 0
		}
		model.Count++
		model.LastPhone = phoneNumber
		lastAt := at.UTC()
		model.LastAt = &lastAt

		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
	})
	if err != nil {
		return nil, err
	}
	return counterModelToDomain(&model), nil
}

// Get returns the stored counter; a missing row reads as an empty counter.
func (r *GormCounterRepo) Get(ctx context.Context) (*domain.DailySendCounter, error) {
	var model DailyCounterModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", DailyCounterRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.DailySendCounter{}, nil
	}
	if err != nil {
		return nil, err
	}
	return counterModelToDomain(&model), nil
}
