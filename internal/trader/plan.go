package trader

import (
	"fmt"

	"micro-trade-bot-go/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Sizing determines how many shares a buy order is for. Exactly one of the
// two modes exists on a valid plan; downstream code never re-checks the raw
// settings fields.
type Sizing interface {
	// OrderQuantity returns the share quantity for a buy at the given price.
	OrderQuantity(price float64) float64
}

// SizeByShares buys a fixed share quantity every cycle.
type SizeByShares struct {
	Quantity float64
}

func (s SizeByShares) OrderQuantity(price float64) float64 { return s.Quantity }

// SizeByValue buys a fixed notional value; the quantity is derived from the
// price at buy time.
type SizeByValue struct {
	TotalValue float64
}

func (s SizeByValue) OrderQuantity(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return s.TotalValue / price
}

// TradePlan is the validated runtime view of a settings row. Parse once at
// the boundary with ParsePlan; everything after that trusts the plan.
type TradePlan struct {
	AssetID        uint
	Enabled        bool
	SellPercentage float64
	Sizing         Sizing
	PurchasePrice  *float64
	LastBuyPrice   *float64
	LastBuyShares  *float64
	Status         models.ProcessingStatus
	Platform       string
	Provider       string
	TestMode       bool
}

// ParsePlan validates a settings row and builds its TradePlan. It enforces
// the sizing invariant: either a positive fixed share quantity, or
// trade-by-value with a positive total value, never both and never neither.
func ParsePlan(s *models.MicroProcessingSettings) (*TradePlan, error) {
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("invalid settings for asset %d: %w", s.AssetID, err)
	}

	var sizing Sizing
	switch {
	case s.TradeByValue && s.TradeByShares > 0:
		return nil, fmt.Errorf("asset %d: trade_by_shares and trade_by_value are mutually exclusive", s.AssetID)
	case s.TradeByValue:
		if s.TotalValue <= 0 {
			return nil, fmt.Errorf("asset %d: trade_by_value requires a positive total_value", s.AssetID)
		}
		sizing = SizeByValue{TotalValue: s.TotalValue}
	case s.TradeByShares > 0:
		sizing = SizeByShares{Quantity: s.TradeByShares}
	default:
		return nil, fmt.Errorf("asset %d: no sizing mode configured", s.AssetID)
	}

	return &TradePlan{
		AssetID:        s.AssetID,
		Enabled:        s.Enabled,
		SellPercentage: s.SellPercentage,
		Sizing:         sizing,
		PurchasePrice:  s.PurchasePrice,
		LastBuyPrice:   s.LastBuyPrice,
		LastBuyShares:  s.LastBuyShares,
		Status:         s.ProcessingStatus,
		Platform:       s.TradingPlatform,
		Provider:       s.WebsocketProvider,
		TestMode:       s.TestMode,
	}, nil
}

// ReferencePrice returns the price the sell threshold is measured against:
// the explicit purchase-price override when set, else the last buy price.
func (p *TradePlan) ReferencePrice() (float64, bool) {
	if p.PurchasePrice != nil && *p.PurchasePrice > 0 {
		return *p.PurchasePrice, true
	}
	if p.LastBuyPrice != nil && *p.LastBuyPrice > 0 {
		return *p.LastBuyPrice, true
	}
	return 0, false
}
