package models

import "gorm.io/gorm"

// Asset represents a tradable instrument tracked in a user's portfolio.
// Shares and CurrentPrice are mutated by trade settlement and by the
// price feed respectively; the trade path only touches them under the
// asset's trade lock.
type Asset struct {
	gorm.Model
	UserID       string  `gorm:"uniqueIndex:idx_user_symbol;not null" json:"user_id"`
	Symbol       string  `gorm:"uniqueIndex:idx_user_symbol;not null" json:"symbol"`
	Shares       float64 `json:"shares"`
	CurrentPrice float64 `json:"current_price"`
}
