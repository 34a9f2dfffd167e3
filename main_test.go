package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/config"
	"github.com/reelbux/reelbux/models"
	testingutil "github.com/reelbux/reelbux/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsurePlatformEntitiesIdempotent(t *testing.T) {
	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("skipping: test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testDB.TeardownTestDB()
	})

	cfg := &config.ProductionConfig{
		System: config.SystemConfig{
			PlatformEmail:      "platform@reelbux.test",
			PlatformUserUUID:   uuid.NewString(),
			PlatformWalletUUID: uuid.NewString(),
		},
	}

	require.NoError(t, ensurePlatformEntities(testDB.DB, cfg))

	// A second boot reuses the existing account and wallet
	require.NoError(t, ensurePlatformEntities(testDB.DB, cfg))

	var accounts int64
	require.NoError(t, testDB.DB.Model(&models.Customer{}).
		Where("uuid = ?", cfg.System.PlatformUserUUID).Count(&accounts).Error)
	assert.Equal(t, int64(1), accounts)

	var wallets int64
	require.NoError(t, testDB.DB.Model(&models.Wallet{}).
		Where("uuid = ?", cfg.System.PlatformWalletUUID).Count(&wallets).Error)
	assert.Equal(t, int64(1), wallets)
}
