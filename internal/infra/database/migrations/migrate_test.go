package migrations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/teeshirtminute/tm-autoreply/internal/infra/database"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
)

func TestMigrateCreatesTablesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	db, err := database.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	for _, model := range []any{
		&repository.DispatchOutcomeModel{},
		&repository.SettingsModel{},
		&repository.DailyCounterModel{},
	} {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("table for %T was not created", model)
		}
	}
}

func TestMigrateSeedsDailyCounterRow(t *testing.T) {
	t.Parallel()

	db, err := database.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var rows []repository.DailyCounterModel
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != repository.DailyCounterRowID || rows[0].Count != 0 {
		t.Fatalf("daily_counters = %+v, want one empty seeded row", rows)
	}

	repo := repository.NewGormCounterRepo(db, time.UTC)
	at := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Increment(context.Background(), "0612345678", at); err != nil {
				t.Errorf("Increment() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Count != 5 || got.DateKey != "2026-05-12" {
		t.Fatalf("counter = %+v, want 5 on 2026-05-12", got)
	}

	var count int64
	if err := db.Model(&repository.DailyCounterModel{}).Count(&count).Error; err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("daily_counters rows = %d, want 1", count)
	}
}
