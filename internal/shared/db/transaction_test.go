package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ledgerRow struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	PurchasedAt int64
	Finished    bool
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, gdb.AutoMigrate(&ledgerRow{}))
	return gdb
}

func count(t *testing.T, gdb *gorm.DB) int64 {
	var n int64
	require.NoError(t, gdb.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestRunInTransaction_CommitAndRollback(t *testing.T) {
	gdb := setupDB(t)
	tm := NewTransactionManager(gdb)
	ctx := context.Background()

	err := tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		return GetTxFromContext(txCtx, gdb).Create(&ledgerRow{Name: "kept"}).Error
	})
	require.NoError(t, err)

	err = tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, GetTxFromContext(txCtx, gdb).Create(&ledgerRow{Name: "dropped"}).Error)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, int64(1), count(t, gdb))
}

func TestRunInTransaction_NestedJoinsOuter(t *testing.T) {
	gdb := setupDB(t)
	tm := NewTransactionManager(gdb)

	err := tm.RunInTransaction(context.Background(), func(txCtx context.Context) error {
		require.NoError(t, tm.RunInTransaction(txCtx, func(inner context.Context) error {
			return GetTxFromContext(inner, gdb).Create(&ledgerRow{Name: "inner"}).Error
		}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Zero(t, count(t, gdb))
}

func TestScopes(t *testing.T) {
	gdb := setupDB(t)
	require.NoError(t, gdb.Create(&[]ledgerRow{
		{Name: "b", PurchasedAt: 2},
		{Name: "a", PurchasedAt: 1, Finished: true},
		{Name: "c", PurchasedAt: 2},
	}).Error)

	var ordered []ledgerRow
	require.NoError(t, gdb.Scopes(PurchaseOrder()).Find(&ordered).Error)
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ordered[0].Name, ordered[1].Name, ordered[2].Name})

	var open []ledgerRow
	require.NoError(t, gdb.Scopes(Unfinished(), PurchaseOrder()).Find(&open).Error)
	require.Len(t, open, 2)
	assert.Equal(t, "b", open[0].Name)
}
