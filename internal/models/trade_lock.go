package models

import "time"

// TradeLock is the ephemeral mutual-exclusion record for one asset.
// The unique index on AssetID is what makes acquisition atomic: the
// second of two concurrent inserts fails with a duplicate-key error.
// It deliberately does not embed gorm.Model: a soft-deleted row would
// keep the unique index occupied and block every future acquisition.
type TradeLock struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	AssetID  uint      `gorm:"uniqueIndex;not null" json:"asset_id"`
	Action   string    `gorm:"not null" json:"action"` // "buy" or "sell"
	LockedAt time.Time `gorm:"not null" json:"locked_at"`
}
