package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iapgate/internal/infrastructure/database"
	"iapgate/internal/shared/config"
	"iapgate/internal/shared/logger"
)

func TestGooseStrategy_UpAndDown(t *testing.T) {
	db, err := database.Open(&config.DatabaseConfig{Path: database.MemoryPath})
	require.NoError(t, err)

	manager := NewManager(logger.Nop())
	require.NoError(t, manager.Migrate(db))
	assert.True(t, db.Migrator().HasTable("sandbox_transactions"))

	strategy := manager.GetStrategy().(*GooseStrategy)
	version, err := strategy.GetVersion(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// idempotent
	require.NoError(t, manager.Migrate(db))

	require.NoError(t, strategy.MigrateDown(db, 1))
	assert.False(t, db.Migrator().HasTable("sandbox_transactions"))

	version, err = strategy.GetVersion(db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}
