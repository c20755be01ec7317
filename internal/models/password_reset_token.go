package models

import "time"

// PasswordResetToken stores a single-use password reset token.
type PasswordResetToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Related user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Related user record.

	Token string `gorm:"type:text;not null;uniqueIndex"` // Opaque reset token.

	Used bool `gorm:"not null;default:false"` // Whether the token was consumed.

	ExpiresAt time.Time `gorm:"not null"`                // Expiration time.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
