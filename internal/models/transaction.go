package models

import "gorm.io/gorm"

// Transaction is an append-only audit record of an executed (or simulated)
// trade. Rows are never mutated after creation; after a settled trade they
// are the source of truth for reconciliation.
type Transaction struct {
	gorm.Model
	AssetID      uint    `gorm:"index" json:"asset_id"`
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"` // "BUY" or "SELL"
	Shares       float64 `json:"shares"`
	Price        float64 `json:"price"`
	TotalAmount  float64 `json:"total_amount"`
	Profit       float64 `json:"profit,omitempty"` // realized on SELL rows only
	Timestamp    int64   `json:"timestamp"`
	OrderID      string  `json:"order_id"`
	IsSimulation bool    `json:"is_simulation"`
	RawRequest   string  `json:"raw_request,omitempty"`
	RawResponse  string  `json:"raw_response,omitempty"`
}
