package db

import (
	"gorm.io/gorm"
)

// PurchaseOrder sorts ledger rows oldest first, breaking ties by insertion.
func PurchaseOrder() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("purchased_at ASC").Order("id ASC")
	}
}

// Unfinished keeps rows whose transaction was never finished.
func Unfinished() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("finished = ?", false)
	}
}
