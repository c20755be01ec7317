package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fetchify-app/fetchify/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.APIKey{}, &models.APIUsage{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func seedLedgerUser(t *testing.T, db *gorm.DB, credits int64) (*models.User, *models.APIKey) {
	t.Helper()
	user := &models.User{Email: fmt.Sprintf("u%d@example.com", time.Now().UnixNano()), Credits: credits}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	key := &models.APIKey{UserID: user.ID, Name: "default", Key: fmt.Sprintf("fk_%d", user.ID), IsActive: true}
	if err := db.Create(key).Error; err != nil {
		t.Fatalf("create key: %v", err)
	}
	return user, key
}

func TestRecordSuccessChargesAndWritesRow(t *testing.T) {
	db := openLedgerTestDB(t)
	user, key := seedLedgerUser(t, db, 10)
	l := New(db)

	remaining, err := l.RecordSuccess(context.Background(), Entry{
		UserID:     user.ID,
		APIKeyID:   key.ID,
		Endpoint:   "/api/extract",
		Method:     "POST",
		StatusCode: 200,
		Credits:    3,
		Metadata:   json.RawMessage(`{"extractionType":"productList"}`),
	})
	if err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if remaining != 7 {
		t.Errorf("remaining = %d, want 7", remaining)
	}

	var reloaded models.User
	if err := db.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.Credits != 7 {
		t.Errorf("credits = %d, want 7", reloaded.Credits)
	}

	var row models.APIUsage
	if err := db.Where("user_id = ?", user.ID).First(&row).Error; err != nil {
		t.Fatalf("load usage row: %v", err)
	}
	if !row.Success || row.CreditsUsed != 3 {
		t.Errorf("usage row success=%v credits=%d", row.Success, row.CreditsUsed)
	}

	var reloadedKey models.APIKey
	if err := db.First(&reloadedKey, key.ID).Error; err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if reloadedKey.LastUsedAt == nil {
		t.Error("expected last_used_at to be set")
	}
}

func TestRecordSuccessInsufficientCredits(t *testing.T) {
	db := openLedgerTestDB(t)
	user, key := seedLedgerUser(t, db, 2)
	l := New(db)

	_, err := l.RecordSuccess(context.Background(), Entry{
		UserID:   user.ID,
		APIKeyID: key.ID,
		Credits:  5,
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	var reloaded models.User
	if err := db.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.Credits != 2 {
		t.Errorf("credits = %d, want 2 (unchanged)", reloaded.Credits)
	}

	var count int64
	if err := db.Model(&models.APIUsage{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count usage: %v", err)
	}
	if count != 0 {
		t.Errorf("usage rows = %d, want 0 when the debit is refused", count)
	}
}

func TestRecordSuccessExactBalance(t *testing.T) {
	db := openLedgerTestDB(t)
	user, key := seedLedgerUser(t, db, 5)
	l := New(db)

	remaining, err := l.RecordSuccess(context.Background(), Entry{
		UserID:   user.ID,
		APIKeyID: key.ID,
		Credits:  5,
	})
	if err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestRecordFailureNeverCharges(t *testing.T) {
	db := openLedgerTestDB(t)
	user, key := seedLedgerUser(t, db, 10)
	l := New(db)

	if err := l.RecordFailure(context.Background(), Entry{
		UserID:     user.ID,
		APIKeyID:   key.ID,
		Endpoint:   "/api/extract",
		Method:     "POST",
		StatusCode: 500,
	}); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	var reloaded models.User
	if err := db.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.Credits != 10 {
		t.Errorf("credits = %d, want 10 (unchanged)", reloaded.Credits)
	}

	var row models.APIUsage
	if err := db.Where("user_id = ?", user.ID).First(&row).Error; err != nil {
		t.Fatalf("load usage row: %v", err)
	}
	if row.Success || row.CreditsUsed != 0 {
		t.Errorf("failure row success=%v credits=%d", row.Success, row.CreditsUsed)
	}
}

func TestAddCredits(t *testing.T) {
	db := openLedgerTestDB(t)
	user, _ := seedLedgerUser(t, db, 10)
	l := New(db)

	if err := l.AddCredits(context.Background(), user.ID, 100); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	balance, err := l.Balance(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 110 {
		t.Errorf("balance = %d, want 110", balance)
	}

	if err := l.AddCredits(context.Background(), user.ID, 0); err == nil {
		t.Error("expected error for zero amount")
	}
	if err := l.AddCredits(context.Background(), 99999, 10); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound for missing user, got %v", err)
	}
}

func TestCountRecentUsage(t *testing.T) {
	db := openLedgerTestDB(t)
	user, key := seedLedgerUser(t, db, 1000)
	l := New(db)

	for i := 0; i < 3; i++ {
		if _, err := l.RecordSuccess(context.Background(), Entry{
			UserID:   user.ID,
			APIKeyID: key.ID,
			Credits:  1,
		}); err != nil {
			t.Fatalf("RecordSuccess %d: %v", i, err)
		}
	}
	if err := l.RecordFailure(context.Background(), Entry{UserID: user.ID, APIKeyID: key.ID}); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	// An old row outside the window must not count.
	old := models.APIUsage{
		UserID:    user.ID,
		APIKeyID:  key.ID,
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("create old row: %v", err)
	}

	count, err := l.CountRecentUsage(context.Background(), user.ID, key.ID, time.Minute)
	if err != nil {
		t.Fatalf("CountRecentUsage: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4 (failures count, old rows do not)", count)
	}
}
