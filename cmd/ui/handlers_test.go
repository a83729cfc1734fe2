package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"micro-trade-bot-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAPI(t *testing.T) (*gorm.DB, *chi.Mux) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Asset{},
		&models.Account{},
		&models.MicroProcessingSettings{},
		&models.TradeLock{},
		&models.Transaction{},
	)
	assert.NoError(t, err)

	h := NewAPIHandler(zap.NewNop(), db)
	r := chi.NewRouter()
	r.Get("/api/assets/{assetID}/settings", h.GetSettingsHandler)
	r.Put("/api/assets/{assetID}/settings", h.UpdateSettingsHandler)
	return db, r
}

func seedOpenPosition(t *testing.T, db *gorm.DB) *models.Asset {
	asset := models.Asset{UserID: "u1", Symbol: "BTCUSDT", Shares: 0.01, CurrentPrice: 50100}
	assert.NoError(t, db.Create(&asset).Error)

	price := 50000.0
	shares := 0.01
	now := time.Now()
	settings := models.MicroProcessingSettings{
		AssetID:           asset.ID,
		Enabled:           true,
		SellPercentage:    0.5,
		TradeByShares:     0.01,
		ProcessingStatus:  models.StatusSelling,
		LastBuyPrice:      &price,
		LastBuyShares:     &shares,
		LastBuyAt:         &now,
		WebsocketProvider: "binance",
		TradingPlatform:   "paper",
	}
	assert.NoError(t, db.Create(&settings).Error)
	return &asset
}

func putSettings(r *chi.Mux, assetID uint, payload settingsPayload) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/assets/%d/settings", assetID), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUpdateSettings_PreservesWorkingMemory(t *testing.T) {
	// Arrange: an open position mid-cycle.
	db, r := setupAPI(t)
	asset := seedOpenPosition(t, db)

	// Act: the operator changes the threshold while the position is open.
	rec := putSettings(r, asset.ID, settingsPayload{
		Enabled:           true,
		SellPercentage:    1.5,
		TradeByShares:     0.01,
		WebsocketProvider: "kraken",
		TradingPlatform:   "paper",
		TestMode:          false,
	})

	// Assert: editable fields changed, the machine's working memory did not.
	assert.Equal(t, http.StatusOK, rec.Code)

	var settings models.MicroProcessingSettings
	assert.NoError(t, db.Where("asset_id = ?", asset.ID).First(&settings).Error)
	assert.Equal(t, 1.5, settings.SellPercentage)
	assert.Equal(t, "kraken", settings.WebsocketProvider)
	assert.Equal(t, models.StatusSelling, settings.ProcessingStatus)
	assert.NotNil(t, settings.LastBuyPrice)
	assert.Equal(t, 50000.0, *settings.LastBuyPrice)
	assert.NotNil(t, settings.LastBuyShares)
	assert.Equal(t, 0.01, *settings.LastBuyShares)
	assert.NotNil(t, settings.LastBuyAt)
}

func TestUpdateSettings_NeverWritesStatusColumns(t *testing.T) {
	// Arrange
	db, r := setupAPI(t)
	asset := seedOpenPosition(t, db)

	// A sell completes after the row was last seen by any client: the
	// machine re-arms at idle and clears its working memory.
	assert.NoError(t, db.Model(&models.MicroProcessingSettings{}).
		Where("asset_id = ?", asset.ID).
		Updates(map[string]interface{}{
			"processing_status": models.StatusIdle,
			"last_buy_price":    nil,
			"last_buy_shares":   nil,
			"last_buy_at":       nil,
		}).Error)

	// Act: a stale update arrives afterwards.
	rec := putSettings(r, asset.ID, settingsPayload{
		Enabled:           true,
		SellPercentage:    0.8,
		TradeByShares:     0.01,
		WebsocketProvider: "binance",
		TradingPlatform:   "paper",
	})

	// Assert: the completed cycle is not resurrected.
	assert.Equal(t, http.StatusOK, rec.Code)

	var settings models.MicroProcessingSettings
	assert.NoError(t, db.Where("asset_id = ?", asset.ID).First(&settings).Error)
	assert.Equal(t, models.StatusIdle, settings.ProcessingStatus)
	assert.Nil(t, settings.LastBuyPrice)
	assert.Nil(t, settings.LastBuyShares)
	assert.Nil(t, settings.LastBuyAt)
	assert.Equal(t, 0.8, settings.SellPercentage)
}

func TestUpdateSettings_RejectsInvalidSizing(t *testing.T) {
	db, r := setupAPI(t)
	asset := seedOpenPosition(t, db)

	// Both sizing modes at once is never valid.
	rec := putSettings(r, asset.ID, settingsPayload{
		Enabled:           true,
		SellPercentage:    0.5,
		TradeByShares:     0.01,
		TradeByValue:      true,
		TotalValue:        500,
		WebsocketProvider: "binance",
		TradingPlatform:   "paper",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var settings models.MicroProcessingSettings
	assert.NoError(t, db.Where("asset_id = ?", asset.ID).First(&settings).Error)
	assert.Equal(t, 0.5, settings.SellPercentage)
	assert.False(t, settings.TradeByValue)
}
