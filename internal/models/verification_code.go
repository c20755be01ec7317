package models

import "time"

// VerificationCode stores a short-lived email verification code.
type VerificationCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Related user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Related user record.

	Code string `gorm:"type:text;not null"` // Six-digit verification code.

	ExpiresAt time.Time `gorm:"not null"`                // Expiration time.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
