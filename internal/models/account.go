package models

import "gorm.io/gorm"

// Account holds the USD balance backing a user's trades.
type Account struct {
	gorm.Model
	UserID     string  `gorm:"uniqueIndex;not null" json:"user_id"`
	USDBalance float64 `json:"usd_balance"`
}
