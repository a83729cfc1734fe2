package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"micro-trade-bot-go/internal/models"
	"micro-trade-bot-go/internal/trader"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	db    *gorm.DB
	start time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db, start: time.Now()}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// StatusHandler reports uptime and the live shape of the portfolio.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	var enabled, openPositions int64
	h.db.Model(&models.MicroProcessingSettings{}).Where("enabled = ?", true).Count(&enabled)
	h.db.Model(&models.MicroProcessingSettings{}).
		Where("processing_status = ?", models.StatusSelling).Count(&openPositions)

	status := struct {
		StartTime     string `json:"start_time"`
		Uptime        string `json:"uptime"`
		EnabledAssets int64  `json:"enabled_assets"`
		OpenPositions int64  `json:"open_positions"`
	}{
		StartTime:     h.start.Format(time.RFC3339),
		Uptime:        time.Since(h.start).String(),
		EnabledAssets: enabled,
		OpenPositions: openPositions,
	}
	h.writeJSON(w, status)
}

// TransactionsHandler returns the audit log, most recent first.
func (h *APIHandler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	var transactions []models.Transaction
	if err := h.db.Order("timestamp desc").Find(&transactions).Error; err != nil {
		h.log.Error("Failed to get transactions from database", zap.Error(err))
		http.Error(w, "Failed to get transactions", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, transactions)
}

// AssetsHandler returns the tracked portfolio.
func (h *APIHandler) AssetsHandler(w http.ResponseWriter, r *http.Request) {
	var assets []models.Asset
	if err := h.db.Find(&assets).Error; err != nil {
		h.log.Error("Failed to get assets from database", zap.Error(err))
		http.Error(w, "Failed to get assets", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, assets)
}

func (h *APIHandler) assetID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "assetID"), 10, 32)
	if err != nil {
		http.Error(w, "Invalid asset id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

// GetSettingsHandler returns the micro-processing settings for one asset.
func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}

	var settings models.MicroProcessingSettings
	if err := h.db.Where("asset_id = ?", assetID).First(&settings).Error; err != nil {
		http.Error(w, "Settings not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, settings)
}

// settingsPayload is the editable subset of the settings row. The machine's
// working memory (status, last-buy fields) is not writable from the UI.
type settingsPayload struct {
	Enabled           bool     `json:"enabled"`
	SellPercentage    float64  `json:"sell_percentage"`
	TradeByShares     float64  `json:"trade_by_shares"`
	TradeByValue      bool     `json:"trade_by_value"`
	TotalValue        float64  `json:"total_value"`
	PurchasePrice     *float64 `json:"purchase_price"`
	WebsocketProvider string   `json:"websocket_provider"`
	TradingPlatform   string   `json:"trading_platform"`
	TestMode          bool     `json:"test_mode"`
}

// UpdateSettingsHandler validates and saves a settings update. The payload
// is re-parsed through the same boundary the trading loop uses, so an
// invalid sizing combination is rejected before it is ever persisted.
//
// Only the editable columns are written. Writing the whole row back would
// also persist the status and last-buy fields as they were when the row was
// read, silently reverting any trade that completed in between.
func (h *APIHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}

	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var settings models.MicroProcessingSettings
	if err := h.db.Where("asset_id = ?", assetID).First(&settings).Error; err != nil {
		http.Error(w, "Settings not found", http.StatusNotFound)
		return
	}

	merged := settings
	merged.Enabled = payload.Enabled
	merged.SellPercentage = payload.SellPercentage
	merged.TradeByShares = payload.TradeByShares
	merged.TradeByValue = payload.TradeByValue
	merged.TotalValue = payload.TotalValue
	merged.PurchasePrice = payload.PurchasePrice
	merged.WebsocketProvider = payload.WebsocketProvider
	merged.TradingPlatform = payload.TradingPlatform
	merged.TestMode = payload.TestMode

	if _, err := trader.ParsePlan(&merged); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	updates := map[string]interface{}{
		"enabled":            payload.Enabled,
		"sell_percentage":    payload.SellPercentage,
		"trade_by_shares":    payload.TradeByShares,
		"trade_by_value":     payload.TradeByValue,
		"total_value":        payload.TotalValue,
		"purchase_price":     payload.PurchasePrice,
		"websocket_provider": payload.WebsocketProvider,
		"trading_platform":   payload.TradingPlatform,
		"test_mode":          payload.TestMode,
	}
	err := h.db.Model(&models.MicroProcessingSettings{}).
		Where("asset_id = ?", assetID).
		Updates(updates).Error
	if err != nil {
		h.log.Error("Failed to save settings", zap.Uint("asset_id", assetID), zap.Error(err))
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}

	var fresh models.MicroProcessingSettings
	if err := h.db.Where("asset_id = ?", assetID).First(&fresh).Error; err != nil {
		http.Error(w, "Settings not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, fresh)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalCycles      int64   `json:"total_cycles"`
	ProfitableCycles int64   `json:"profitable_cycles"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// StatisticsHandler aggregates realized profit over completed buy/sell
// cycles. Each SELL transaction closes one cycle and carries its realized
// profit.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	var sells []models.Transaction
	if err := h.db.Where("action = ?", "SELL").Find(&sells).Error; err != nil {
		h.log.Error("Failed to get transactions for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	since24h := now.Add(-24 * time.Hour)

	stats24h := StatsDetail{}
	statsAllTime := StatsDetail{}

	for _, sell := range sells {
		statsAllTime.TotalCycles++
		if sell.Profit > 0 {
			statsAllTime.ProfitableCycles++
		}
		statsAllTime.TotalProfit += sell.Profit

		soldAt := time.Unix(sell.Timestamp/1000, 0)
		if soldAt.After(since24h) {
			stats24h.TotalCycles++
			if sell.Profit > 0 {
				stats24h.ProfitableCycles++
			}
			stats24h.TotalProfit += sell.Profit
		}
	}

	if statsAllTime.TotalCycles > 0 {
		statsAllTime.WinRate = float64(statsAllTime.ProfitableCycles) / float64(statsAllTime.TotalCycles)
	}
	if stats24h.TotalCycles > 0 {
		stats24h.WinRate = float64(stats24h.ProfitableCycles) / float64(stats24h.TotalCycles)
	}

	h.writeJSON(w, StatisticsResponse{Since24h: stats24h, AllTime: statsAllTime})
}
