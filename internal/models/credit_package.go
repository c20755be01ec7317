package models

import (
	"time"

	"gorm.io/datatypes"
)

// CreditPackage is an admin-managed catalog entry for purchasable credits.
type CreditPackage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null"` // Package display name.
	Description string `gorm:"type:text"`          // Marketing description.

	Credits    int64 `gorm:"not null"` // Credits granted on purchase.
	PriceCents int64 `gorm:"not null"` // Price in euro cents.

	Features datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Feature list JSON array.

	IsPopular bool `gorm:"not null;default:false"` // Highlighted in the catalog.
	IsActive  bool `gorm:"not null;default:true"`  // Whether the package is purchasable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
