// Package access authenticates extraction requests using API keys stored
// in the database.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fetchify-app/fetchify/internal/models"

	"gorm.io/gorm"
)

// ErrNoCredentials indicates the request carried no API key.
var ErrNoCredentials = errors.New("no api key provided")

// ErrInvalidKey indicates the supplied API key does not exist.
var ErrInvalidKey = errors.New("invalid api key")

// ErrKeyDisabled indicates the API key exists but has been deactivated.
var ErrKeyDisabled = errors.New("api key is disabled")

// ErrUserNotFound indicates the key's owning user record is missing.
var ErrUserNotFound = errors.New("user not found")

// Authenticator resolves API keys against the database.
type Authenticator struct {
	db *gorm.DB
}

// NewAuthenticator constructs an Authenticator backed by db.
func NewAuthenticator(db *gorm.DB) *Authenticator {
	return &Authenticator{db: db}
}

// Authenticate extracts the API key from the request and resolves it to the
// key record and its owning user. The key's last_used_at is not touched here;
// usage recording owns that write so it lands in the same transaction as the
// ledger row.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*models.APIKey, *models.User, error) {
	if a == nil || a.db == nil || r == nil {
		return nil, nil, ErrNoCredentials
	}

	token := ExtractToken(r)
	if token == "" {
		return nil, nil, ErrNoCredentials
	}

	var apiKey models.APIKey
	err := a.db.WithContext(ctx).
		Preload("User").
		Where("key = ?", token).
		First(&apiKey).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil, ErrInvalidKey
	default:
		return nil, nil, fmt.Errorf("access: query api key: %w", err)
	}

	if !apiKey.IsActive {
		return nil, nil, ErrKeyDisabled
	}
	if apiKey.User == nil {
		return nil, nil, ErrUserNotFound
	}
	return &apiKey, apiKey.User, nil
}

// TouchLastUsed records that the key was just used. Failures are ignored by
// callers; the timestamp is advisory.
func (a *Authenticator) TouchLastUsed(ctx context.Context, keyID uint64) error {
	now := time.Now().UTC()
	return a.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", keyID).
		Update("last_used_at", &now).Error
}

// ExtractToken pulls the API key from an Authorization Bearer header, an
// X-API-Key header, or the apiKey/apikey query parameters, in that order.
func ExtractToken(r *http.Request) string {
	val := strings.TrimSpace(r.Header.Get("Authorization"))
	if val != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(val, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(val, prefix))
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v
	}
	if r.URL != nil {
		query := r.URL.Query()
		if v := strings.TrimSpace(query.Get("apiKey")); v != "" {
			return v
		}
		if v := strings.TrimSpace(query.Get("apikey")); v != "" {
			return v
		}
	}
	return ""
}
