package alerts

import (
	"context"
	"testing"
	"time"

	"marketpulse/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.MigrateUserModels(db); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	if err := models.MigrateAlertModels(db); err != nil {
		t.Fatalf("migrate alerts: %v", err)
	}
	return db
}

func TestGormStoreListEligible(t *testing.T) {
	db := newTestDB(t)
	store := NewGormStore(db)

	past := time.Now().Add(-time.Hour)
	seed := []models.Alert{
		{UserID: 1, Symbol: "NIFTY", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 1, IsActive: true},
		{UserID: 1, Symbol: "SENSEX", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 1, IsActive: false},
		{UserID: 1, Symbol: "TCS", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 1, IsActive: true, IsTriggered: true},
		{UserID: 1, Symbol: "INFY", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 1, IsActive: true, ExpiresAt: &past},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	eligible, err := store.ListEligible(context.Background())
	if err != nil {
		t.Fatalf("ListEligible failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].Symbol != "NIFTY" {
		t.Fatalf("expected only the active untriggered unexpired alert, got %v", eligible)
	}
}

func TestGormStoreMarkTriggeredOnce(t *testing.T) {
	db := newTestDB(t)
	store := NewGormStore(db)

	alert := models.Alert{UserID: 1, Symbol: "NIFTY", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 20000, IsActive: true}
	if err := db.Create(&alert).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	at := time.Now()
	won, err := store.MarkTriggered(context.Background(), alert.ID, 20050, at)
	if err != nil {
		t.Fatalf("MarkTriggered failed: %v", err)
	}
	if !won {
		t.Fatal("first transition should win")
	}

	// Second attempt loses the race and writes nothing
	won, err = store.MarkTriggered(context.Background(), alert.ID, 21000, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkTriggered failed: %v", err)
	}
	if won {
		t.Fatal("second transition must lose")
	}

	var stored models.Alert
	if err := db.First(&stored, alert.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !stored.IsTriggered || stored.CurrentValue != 20050 {
		t.Fatalf("first write must stick, got %+v", stored)
	}
}

func TestGormStoreUpdateCurrentValueSkipsTriggered(t *testing.T) {
	db := newTestDB(t)
	store := NewGormStore(db)

	alert := models.Alert{UserID: 1, Symbol: "NIFTY", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 1, IsActive: true, IsTriggered: true, CurrentValue: 500}
	if err := db.Create(&alert).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := store.UpdateCurrentValue(context.Background(), alert.ID, 999); err != nil {
		t.Fatalf("UpdateCurrentValue failed: %v", err)
	}

	var stored models.Alert
	if err := db.First(&stored, alert.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.CurrentValue != 500 {
		t.Fatalf("triggered alert's value must be frozen, got %v", stored.CurrentValue)
	}
}

func TestGormStoreDeactivateExpired(t *testing.T) {
	db := newTestDB(t)
	store := NewGormStore(db)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := models.Alert{UserID: 1, Symbol: "NIFTY", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 1, IsActive: true, ExpiresAt: &past}
	live := models.Alert{UserID: 1, Symbol: "SENSEX", AlertType: models.AlertTypePrice, Condition: models.ConditionAbove, TargetValue: 1, IsActive: true, ExpiresAt: &future}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Create(&live).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := store.DeactivateExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("DeactivateExpired failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deactivation, got %d", n)
	}

	var stored models.Alert
	db.First(&stored, live.ID)
	if !stored.IsActive {
		t.Fatal("unexpired alert must stay active")
	}
}
