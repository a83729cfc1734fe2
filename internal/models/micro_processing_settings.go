package models

import (
	"time"

	"gorm.io/gorm"
)

// ProcessingStatus is the state of the micro-processing machine for one asset.
type ProcessingStatus string

const (
	StatusIdle    ProcessingStatus = "idle"
	StatusBuying  ProcessingStatus = "buying"
	StatusSelling ProcessingStatus = "selling"
)

// MicroProcessingSettings is the per-asset auto-trade configuration plus the
// machine's persisted working memory. Exactly one sizing mode must be set:
// a fixed share quantity, or trade-by-value with a total notional value.
// LastBuyPrice/LastBuyShares are populated on a successful buy and cleared
// on a successful sell; they are only meaningful while the status is selling.
type MicroProcessingSettings struct {
	gorm.Model
	AssetID           uint             `gorm:"uniqueIndex;not null" json:"asset_id"`
	Enabled           bool             `gorm:"default:false" json:"enabled"`
	SellPercentage    float64          `json:"sell_percentage" validate:"gte=0"`
	TradeByShares     float64          `json:"trade_by_shares" validate:"gte=0"`
	TradeByValue      bool             `json:"trade_by_value"`
	TotalValue        float64          `json:"total_value" validate:"gte=0"`
	PurchasePrice     *float64         `json:"purchase_price,omitempty"`
	LastBuyPrice      *float64         `json:"last_buy_price,omitempty"`
	LastBuyShares     *float64         `json:"last_buy_shares,omitempty"`
	LastBuyAt         *time.Time       `json:"last_buy_at,omitempty"`
	ProcessingStatus  ProcessingStatus `gorm:"default:idle" json:"processing_status" validate:"oneof=idle buying selling"`
	WebsocketProvider string           `gorm:"default:binance" json:"websocket_provider" validate:"oneof=binance kraken"`
	TradingPlatform   string           `gorm:"default:paper" json:"trading_platform" validate:"oneof=binance kraken paper"`
	TestMode          bool             `gorm:"default:true" json:"test_mode"`
}
