package models

import "time"

// PurchaseStatusSucceeded marks a completed purchase.
const PurchaseStatusSucceeded = "succeeded"

// Purchase records a completed payment. Rows are created exclusively by the
// payment webhook handler and are immutable once written.
type Purchase struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Purchasing user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Purchasing user record.

	StripePaymentID string `gorm:"type:text;not null;index"` // Stripe payment intent ID.
	StripeInvoiceID string `gorm:"type:text"`                // Stripe invoice ID, if any.

	AmountCents int64 `gorm:"not null"` // Amount paid in euro cents.
	Credits     int64 `gorm:"not null"` // Credits granted.

	Status string `gorm:"type:text;not null"` // Payment status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
