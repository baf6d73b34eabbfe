package models

import (
	"time"

	"gorm.io/datatypes"
)

// TableSandboxTransactions is created by the goose scripts in
// internal/infrastructure/migration/scripts.
const TableSandboxTransactions = "sandbox_transactions"

// SandboxTransactionModel represents the database persistence model for
// sandbox store transactions
type SandboxTransactionModel struct {
	ID            uint      `gorm:"primarykey"`
	TransactionID string    `gorm:"uniqueIndex;not null;size:64"`
	ProductID     string    `gorm:"not null;size:128"`
	Receipt       string    `gorm:"uniqueIndex;not null;size:255"`
	PurchasedAt   time.Time `gorm:"not null"`
	ExpiresAt     *time.Time
	Finished      bool `gorm:"not null;default:false;index"`
	FinishedAt    *time.Time
	Metadata      datatypes.JSON
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name for GORM
func (SandboxTransactionModel) TableName() string {
	return TableSandboxTransactions
}
