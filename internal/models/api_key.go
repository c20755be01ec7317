package models

import "time"

// APIKey represents an API key issued to a user.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Associated user record.

	Name string `gorm:"type:text;not null"`             // Display name for the key.
	Key  string `gorm:"type:text;not null;uniqueIndex"` // Full API key string.

	IsActive bool `gorm:"not null;default:true"` // Whether the key is enabled.

	LastUsedAt *time.Time // Last successful usage time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
