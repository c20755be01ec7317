package models

import (
	"time"

	"gorm.io/datatypes"
)

// APIUsage records one extraction attempt in the usage ledger.
// Rows are append-only; CreditsUsed is 0 exactly when the attempt failed.
type APIUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Related user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Related user record.

	APIKeyID uint64  `gorm:"not null;index"`      // Related API key ID.
	APIKey   *APIKey `gorm:"foreignKey:APIKeyID"` // Related API key record.

	Endpoint string `gorm:"type:text;not null"` // Endpoint with extraction type.
	Method   string `gorm:"type:text;not null"` // HTTP method.

	StatusCode int  `gorm:"not null;default:0"`     // HTTP status returned to the caller.
	Success    bool `gorm:"not null;default:false"` // Whether the upstream call succeeded.

	CreditsUsed int64 `gorm:"not null;default:0"` // Credits charged for the attempt.

	Response datatypes.JSON `gorm:"type:jsonb"` // Serialized response data or error.
	Metadata datatypes.JSON `gorm:"type:jsonb"` // Extraction metadata snapshot.

	CreatedAt time.Time `gorm:"not null;index;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (APIUsage) TableName() string {
	return "api_usages"
}
