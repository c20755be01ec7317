// Package ledger owns credit balances and the usage history. Every charge
// goes through a single transaction so the balance and the usage row can
// never disagree.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fetchify-app/fetchify/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInsufficientCredits indicates the user's balance could not cover the
// requested debit.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger records usage and debits credits against user balances.
type Ledger struct {
	db *gorm.DB
}

// New constructs a Ledger backed by db.
func New(db *gorm.DB) *Ledger { return &Ledger{db: db} }

// Entry describes one usage event to record.
type Entry struct {
	UserID     uint64          // Owning user.
	APIKeyID   uint64          // Key the request was made with.
	Endpoint   string          // Request path.
	Method     string          // HTTP method.
	StatusCode int             // Response status served to the caller.
	Credits    int64           // Credits to charge.
	Response   json.RawMessage // Optional extracted payload snapshot.
	Metadata   json.RawMessage // Request descriptor (type, source, url, timing).
}

// tryDebit atomically decrements the user's balance if and only if it covers
// amount. The conditional UPDATE makes concurrent debits safe without a
// row lock: two racing requests both issue the decrement, and the one that
// finds the balance already spent matches zero rows.
func tryDebit(ctx context.Context, tx *gorm.DB, userID uint64, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res := tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND credits >= ?", userID, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("ledger: debit credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

// RecordSuccess charges the user for a successful extraction and writes the
// usage row in the same transaction. It returns the remaining balance.
// ErrInsufficientCredits is returned without any row written when the
// balance no longer covers the charge.
func (l *Ledger) RecordSuccess(ctx context.Context, entry Entry) (int64, error) {
	if l == nil || l.db == nil {
		return 0, errors.New("ledger: nil db")
	}

	var remaining int64
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDebit := tryDebit(ctx, tx, entry.UserID, entry.Credits); errDebit != nil {
			return errDebit
		}

		now := time.Now().UTC()
		if errTouch := tx.WithContext(ctx).Model(&models.APIKey{}).
			Where("id = ?", entry.APIKeyID).
			Update("last_used_at", &now).Error; errTouch != nil {
			return errTouch
		}

		row := models.APIUsage{
			UserID:      entry.UserID,
			APIKeyID:    entry.APIKeyID,
			Endpoint:    entry.Endpoint,
			Method:      entry.Method,
			StatusCode:  entry.StatusCode,
			Success:     true,
			CreditsUsed: entry.Credits,
			Response:    datatypes.JSON(entry.Response),
			Metadata:    datatypes.JSON(entry.Metadata),
			CreatedAt:   now,
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}

		var user models.User
		if errBalance := tx.WithContext(ctx).Select("credits").First(&user, entry.UserID).Error; errBalance != nil {
			return errBalance
		}
		remaining = user.Credits
		return nil
	})
	if errTx != nil {
		return 0, errTx
	}
	return remaining, nil
}

// RecordFailure writes a zero-cost usage row for a failed extraction. The
// balance is never touched on failure.
func (l *Ledger) RecordFailure(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return errors.New("ledger: nil db")
	}
	row := models.APIUsage{
		UserID:      entry.UserID,
		APIKeyID:    entry.APIKeyID,
		Endpoint:    entry.Endpoint,
		Method:      entry.Method,
		StatusCode:  entry.StatusCode,
		Success:     false,
		CreditsUsed: 0,
		Response:    datatypes.JSON(entry.Response),
		Metadata:    datatypes.JSON(entry.Metadata),
		CreatedAt:   time.Now().UTC(),
	}
	return l.db.WithContext(ctx).Create(&row).Error
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (int64, error) {
	var user models.User
	if err := l.db.WithContext(ctx).Select("credits").First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// AddCredits increments the user's balance. Used for purchases and signup
// grants.
func (l *Ledger) AddCredits(ctx context.Context, userID uint64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: non-positive credit amount %d", amount)
	}
	res := l.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountRecentUsage counts usage rows written for the (user, key) pair within
// the trailing window. The extract handler uses this to enforce its request
// rate limit; failed attempts count too.
func (l *Ledger) CountRecentUsage(ctx context.Context, userID, apiKeyID uint64, window time.Duration) (int64, error) {
	since := time.Now().UTC().Add(-window)
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.APIUsage{}).
		Where("user_id = ? AND api_key_id = ? AND created_at >= ?", userID, apiKeyID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
