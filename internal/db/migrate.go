package db

import (
	"fmt"

	"github.com/fetchify-app/fetchify/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate applies the schema and seeds the default credit packages.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if err := conn.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.APIUsage{},
		&models.CreditPackage{},
		&models.Purchase{},
		&models.VerificationCode{},
		&models.PasswordResetToken{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return seedCreditPackages(conn)
}

// seedCreditPackages inserts the default catalog when no packages exist yet.
func seedCreditPackages(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&models.CreditPackage{}).Count(&count).Error; err != nil {
		return fmt.Errorf("db: count credit packages: %w", err)
	}
	if count > 0 {
		return nil
	}

	packages := []models.CreditPackage{
		{
			Name:        "Starter",
			Description: "For trying things out and small projects",
			Credits:     100,
			PriceCents:  999,
			Features:    datatypes.JSON(`["100 credits","All extraction types","Email support"]`),
			IsActive:    true,
		},
		{
			Name:        "Pro",
			Description: "For growing teams with steady extraction needs",
			Credits:     500,
			PriceCents:  3999,
			Features:    datatypes.JSON(`["500 credits","All extraction types","Priority support"]`),
			IsPopular:   true,
			IsActive:    true,
		},
		{
			Name:        "Enterprise",
			Description: "For high-volume production workloads",
			Credits:     2000,
			PriceCents:  12999,
			Features:    datatypes.JSON(`["2000 credits","All extraction types","Dedicated support"]`),
			IsActive:    true,
		},
	}
	if err := conn.Create(&packages).Error; err != nil {
		return fmt.Errorf("db: seed credit packages: %w", err)
	}
	return nil
}
