package access

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fetchify-app/fetchify/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openAccessTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:access_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.APIKey{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func seedUserWithKey(t *testing.T, db *gorm.DB, key string, active bool) *models.User {
	t.Helper()
	user := &models.User{Email: fmt.Sprintf("%s@example.com", key), Name: "Test", Credits: 10}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	apiKey := &models.APIKey{UserID: user.ID, Name: "default", Key: key, IsActive: active}
	if err := db.Create(apiKey).Error; err != nil {
		t.Fatalf("create api key: %v", err)
	}
	return user
}

func TestAuthenticateBearerHeader(t *testing.T) {
	db := openAccessTestDB(t)
	user := seedUserWithKey(t, db, "fk_bearer_key", true)

	a := NewAuthenticator(db)
	req := httptest.NewRequest("POST", "/api/extract", nil)
	req.Header.Set("Authorization", "Bearer fk_bearer_key")

	apiKey, gotUser, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if apiKey.Key != "fk_bearer_key" {
		t.Errorf("key = %q", apiKey.Key)
	}
	if gotUser.ID != user.ID {
		t.Errorf("user id = %d, want %d", gotUser.ID, user.ID)
	}
}

func TestAuthenticateQueryParam(t *testing.T) {
	db := openAccessTestDB(t)
	seedUserWithKey(t, db, "fk_query_key", true)

	a := NewAuthenticator(db)
	req := httptest.NewRequest("POST", "/api/extract?apiKey=fk_query_key", nil)

	apiKey, _, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if apiKey.Key != "fk_query_key" {
		t.Errorf("key = %q", apiKey.Key)
	}
}

func TestAuthenticateAPIKeyHeader(t *testing.T) {
	db := openAccessTestDB(t)
	seedUserWithKey(t, db, "fk_header_key", true)

	a := NewAuthenticator(db)
	req := httptest.NewRequest("GET", "/api/v1/product-crawl?url=https://example.com", nil)
	req.Header.Set("X-API-Key", "fk_header_key")

	apiKey, _, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if apiKey.Key != "fk_header_key" {
		t.Errorf("key = %q", apiKey.Key)
	}
}

func TestAuthenticateLowercaseQueryParam(t *testing.T) {
	db := openAccessTestDB(t)
	seedUserWithKey(t, db, "fk_lower_key", true)

	a := NewAuthenticator(db)
	req := httptest.NewRequest("GET", "/api/v1/product-crawl?apikey=fk_lower_key", nil)

	apiKey, _, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if apiKey.Key != "fk_lower_key" {
		t.Errorf("key = %q", apiKey.Key)
	}
}

func TestAuthenticateHeaderWinsOverQuery(t *testing.T) {
	db := openAccessTestDB(t)
	seedUserWithKey(t, db, "fk_header", true)
	seedUserWithKey(t, db, "fk_query", true)

	a := NewAuthenticator(db)
	req := httptest.NewRequest("POST", "/api/extract?apiKey=fk_query", nil)
	req.Header.Set("Authorization", "Bearer fk_header")

	apiKey, _, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if apiKey.Key != "fk_header" {
		t.Errorf("key = %q, want fk_header", apiKey.Key)
	}
}

func TestAuthenticateNoCredentials(t *testing.T) {
	a := NewAuthenticator(openAccessTestDB(t))
	req := httptest.NewRequest("POST", "/api/extract", nil)

	_, _, err := a.Authenticate(context.Background(), req)
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestAuthenticateInvalidKey(t *testing.T) {
	a := NewAuthenticator(openAccessTestDB(t))
	req := httptest.NewRequest("POST", "/api/extract", nil)
	req.Header.Set("Authorization", "Bearer fk_unknown")

	_, _, err := a.Authenticate(context.Background(), req)
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestAuthenticateDisabledKey(t *testing.T) {
	db := openAccessTestDB(t)
	seedUserWithKey(t, db, "fk_disabled", false)

	a := NewAuthenticator(db)
	req := httptest.NewRequest("POST", "/api/extract", nil)
	req.Header.Set("Authorization", "Bearer fk_disabled")

	_, _, err := a.Authenticate(context.Background(), req)
	if !errors.Is(err, ErrKeyDisabled) {
		t.Fatalf("expected ErrKeyDisabled, got %v", err)
	}
}

func TestTouchLastUsed(t *testing.T) {
	db := openAccessTestDB(t)
	seedUserWithKey(t, db, "fk_touch", true)

	var apiKey models.APIKey
	if err := db.Where("key = ?", "fk_touch").First(&apiKey).Error; err != nil {
		t.Fatalf("load key: %v", err)
	}
	if apiKey.LastUsedAt != nil {
		t.Fatal("expected nil last_used_at before touch")
	}

	a := NewAuthenticator(db)
	if err := a.TouchLastUsed(context.Background(), apiKey.ID); err != nil {
		t.Fatalf("TouchLastUsed: %v", err)
	}
	if err := db.Where("key = ?", "fk_touch").First(&apiKey).Error; err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if apiKey.LastUsedAt == nil {
		t.Fatal("expected last_used_at to be set")
	}
}
