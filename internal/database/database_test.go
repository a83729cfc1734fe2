package database

import (
	"testing"

	"micro-trade-bot-go/internal/config"
	"micro-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
)

// testConfig builds a config backed by a named shared-cache in-memory
// database, so every pooled connection in one test sees the same data.
func testConfig(name string) *config.Config {
	cfg := &config.Config{}
	cfg.Database.DSN = "file:" + name + "?mode=memory&cache=shared"
	cfg.Trading.UserID = "default"
	cfg.Trading.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	cfg.Trading.InitialBalance = 1000
	cfg.Trading.DefaultTestMode = true
	return cfg
}

func TestNewDatabase_SeedsPortfolio(t *testing.T) {
	cfg := testConfig("seed_test")

	db, err := NewDatabase(cfg)
	assert.NoError(t, err)

	var account models.Account
	assert.NoError(t, db.Where("user_id = ?", "default").First(&account).Error)
	assert.Equal(t, 1000.0, account.USDBalance)

	var assets []models.Asset
	assert.NoError(t, db.Find(&assets).Error)
	assert.Len(t, assets, 2)

	for _, asset := range assets {
		var settings models.MicroProcessingSettings
		assert.NoError(t, db.Where("asset_id = ?", asset.ID).First(&settings).Error)
		assert.Equal(t, models.StatusIdle, settings.ProcessingStatus)
		assert.True(t, settings.TestMode)
		assert.False(t, settings.Enabled, "new assets start with the loop off")
	}
}

func TestAutoMigrate_IsIdempotent(t *testing.T) {
	cfg := testConfig("idempotent_test")

	db, err := NewDatabase(cfg)
	assert.NoError(t, err)

	// Running migration again must not duplicate the seeded rows.
	assert.NoError(t, AutoMigrate(db, cfg))

	var assetCount, accountCount int64
	db.Model(&models.Asset{}).Count(&assetCount)
	db.Model(&models.Account{}).Count(&accountCount)
	assert.Equal(t, int64(2), assetCount)
	assert.Equal(t, int64(1), accountCount)
}
