package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/fetchify-app/fetchify/internal/config"
	"github.com/fetchify-app/fetchify/internal/models"
)

func TestRetentionSweeperDeletesOldRows(t *testing.T) {
	db := openLedgerTestDB(t)
	user, key := seedLedgerUser(t, db, 100)

	old := models.APIUsage{
		UserID:      user.ID,
		APIKeyID:    key.ID,
		Endpoint:    "/api/extract",
		Method:      "POST",
		StatusCode:  200,
		Success:     true,
		CreditsUsed: 1,
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("create old row: %v", err)
	}
	stale := time.Now().UTC().AddDate(0, 0, -40)
	if err := db.Model(&models.APIUsage{}).Where("id = ?", old.ID).Update("created_at", stale).Error; err != nil {
		t.Fatalf("backdate row: %v", err)
	}

	fresh := models.APIUsage{
		UserID:      user.ID,
		APIKeyID:    key.ID,
		Endpoint:    "/api/extract",
		Method:      "POST",
		StatusCode:  200,
		Success:     true,
		CreditsUsed: 1,
	}
	if err := db.Create(&fresh).Error; err != nil {
		t.Fatalf("create fresh row: %v", err)
	}

	sweeper := NewRetentionSweeper(db, config.RetentionConfig{Days: 30, SweepInterval: time.Hour})
	if sweeper == nil {
		t.Fatal("sweeper should be enabled")
	}
	sweeper.sweepOnce(context.Background())

	var remaining []models.APIUsage
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != fresh.ID {
		t.Fatalf("remaining rows = %+v, want only the fresh row", remaining)
	}
}

func TestRetentionSweeperDisabled(t *testing.T) {
	db := openLedgerTestDB(t)
	if sweeper := NewRetentionSweeper(db, config.RetentionConfig{Days: 0}); sweeper != nil {
		t.Fatal("zero retention days should disable the sweeper")
	}
	if sweeper := NewRetentionSweeper(nil, config.RetentionConfig{Days: 30}); sweeper != nil {
		t.Fatal("nil db should disable the sweeper")
	}
}
