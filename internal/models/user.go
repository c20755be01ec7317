package models

import "time"

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Name     string `gorm:"type:text"`                      // Display name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Credits int64 `gorm:"not null;default:0"` // Credit balance, never negative.

	IsAdmin    bool `gorm:"not null;default:false"` // Grants admin API access.
	IsVerified bool `gorm:"not null;default:false"` // Whether the email is verified.

	EmailVerifiedAt *time.Time // Verification time, if verified.

	StripeCustomerID string `gorm:"type:text;index"` // Stripe customer ID when known.

	APIKeys []APIKey `gorm:"foreignKey:UserID"` // Related API keys.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
