package repository

import (
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
)

// DispatchOutcomeModel is the persistence model for the dispatch_outcomes
// table. Seq preserves insertion order independently of clock changes.
type DispatchOutcomeModel struct {
	Seq         int64          `gorm:"primaryKey;autoIncrement"`
	ID          string         `gorm:"type:varchar(36);not null;uniqueIndex"`
	PhoneNumber string         `gorm:"type:varchar(32);not null"`
	Timestamp   time.Time      `gorm:"column:recorded_at;not null;index"`
	Channel     domain.Channel `gorm:"type:varchar(10);not null"`
	Result      domain.Result  `gorm:"type:varchar(10);not null"`
	StoreStatus string         `gorm:"type:text;not null"`
}

func (DispatchOutcomeModel) TableName() string {
	return "dispatch_outcomes"
}

// SettingsModel is the single-row settings table.
type SettingsModel struct {
	ID          int    `gorm:"primaryKey;autoIncrement:false"`
	Enabled     bool   `gorm:"not null"`
	EndpointURL string `gorm:"type:varchar(512);not null"`
	APIKey      string `gorm:"type:varchar(255);not null"`
	SIMSlot     int    `gorm:"not null"`
	UpdatedAt   time.Time
}

func (SettingsModel) TableName() string {
	return "settings"
}

// DailyCounterModel is the single-row daily send counter table.
type DailyCounterModel struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false"`
	Count     int    `gorm:"not null"`
	DateKey   string `gorm:"type:varchar(10);not null"`
	LastPhone string `gorm:"type:varchar(32);not null"`
	LastAt    *time.Time
}

func (DailyCounterModel) TableName() string {
	return "daily_counters"
}

// DailyCounterRowID is the key of the only daily_counters row. Migrations
// seed it so row locks always have something to hold.
const DailyCounterRowID = 1

const settingsRowID = 1

func outcomeModelFromDomain(o *domain.DispatchOutcome) *DispatchOutcomeModel {
	if o == nil {
		return nil
	}

	return &DispatchOutcomeModel{
		ID:          o.ID,
		PhoneNumber: o.PhoneNumber,
		Timestamp:   o.Timestamp.UTC(),
		Channel:     o.Channel,
		Result:      o.Result,
		StoreStatus: o.StoreStatus,
	}
}

func outcomeModelToDomain(m *DispatchOutcomeModel) *domain.DispatchOutcome {
	if m == nil {
		return nil
	}

	return &domain.DispatchOutcome{
		ID:          m.ID,
		PhoneNumber: m.PhoneNumber,
		Timestamp:   m.Timestamp,
		Channel:     m.Channel,
		Result:      m.Result,
		StoreStatus: m.StoreStatus,
	}
}

func settingsModelFromDomain(s *domain.Settings) *SettingsModel {
	if s == nil {
		return nil
	}

	return &SettingsModel{
		ID:          settingsRowID,
		Enabled:     s.Enabled,
		EndpointURL: s.EndpointURL,
		APIKey:      s.APIKey,
		SIMSlot:     s.SIMSlot,
		UpdatedAt:   s.UpdatedAt,
	}
}

func settingsModelToDomain(m *SettingsModel) *domain.Settings {
	if m == nil {
		return nil
	}

	return &domain.Settings{
		Enabled:     m.Enabled,
		EndpointURL: m.EndpointURL,
		APIKey:      m.APIKey,
		SIMSlot:     m.SIMSlot,
		UpdatedAt:   m.UpdatedAt,
	}
}

func counterModelToDomain(m *DailyCounterModel) *domain.DailySendCounter {
	if m == nil {
		return nil
	}

	c := &domain.DailySendCounter{
		Count:     m.Count,
		DateKey:   m.DateKey,
		LastPhone: m.LastPhone,
	}
	if m.LastAt != nil {
		c.LastAt = *m.LastAt
	}
	return c
}
