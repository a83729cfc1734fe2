// Package lock implements the durable per-asset trade lock.
//
// The lock is the only mutual-exclusion boundary on the trade path: two
// concurrent price ticks for the same asset must never both reach the
// exchange. It is backed by a database table rather than process memory so
// it holds across restarts and across multiple running instances.
package lock

import (
	"errors"
	"time"

	"micro-trade-bot-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultExpiry is the staleness window after which a lock is treated as
// abandoned (e.g. the holder crashed between acquire and release).
const DefaultExpiry = 5 * time.Minute

// Manager acquires and releases trade locks keyed by asset id.
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
	expiry time.Duration
}

// NewManager creates a lock manager. A non-positive expiry falls back to
// DefaultExpiry.
func NewManager(db *gorm.DB, logger *zap.Logger, expiry time.Duration) *Manager {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Manager{db: db, logger: logger, expiry: expiry}
}

// Acquire attempts to create a lock record for the asset. It returns false
// if a live lock already exists or the insert loses a race; acquisition is
// atomic because the lock table has a unique index on asset_id, so exactly
// one of two concurrent inserts can succeed.
func (m *Manager) Acquire(assetID uint, action string) bool {
	// Clears an expired leftover first so a crashed holder cannot wedge
	// the asset forever.
	if m.IsLocked(assetID) {
		return false
	}

	record := models.TradeLock{
		AssetID:  assetID,
		Action:   action,
		LockedAt: time.Now(),
	}
	if err := m.db.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			m.logger.Debug("Lost trade lock race", zap.Uint("asset_id", assetID), zap.String("action", action))
			return false
		}
		m.logger.Error("Failed to create trade lock", zap.Uint("asset_id", assetID), zap.Error(err))
		return false
	}
	return true
}

// IsLocked reports whether a live lock exists for the asset. A lock older
// than the expiry window is deleted on sight and reported as absent.
// Unexpected store errors report locked, erring on the side of not trading.
func (m *Manager) IsLocked(assetID uint) bool {
	var record models.TradeLock
	err := m.db.Where("asset_id = ?", assetID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if err != nil {
		m.logger.Error("Failed to read trade lock", zap.Uint("asset_id", assetID), zap.Error(err))
		return true
	}

	if time.Since(record.LockedAt) > m.expiry {
		m.logger.Warn("Removing expired trade lock",
			zap.Uint("asset_id", assetID),
			zap.String("action", record.Action),
			zap.Time("locked_at", record.LockedAt))
		if err := m.db.Delete(&models.TradeLock{}, "asset_id = ?", assetID).Error; err != nil {
			m.logger.Error("Failed to delete expired trade lock", zap.Uint("asset_id", assetID), zap.Error(err))
			return true
		}
		return false
	}
	return true
}

// Release unconditionally deletes the lock record for the asset. Callers
// must invoke it exactly once per successful Acquire, on every path.
func (m *Manager) Release(assetID uint) {
	if err := m.db.Delete(&models.TradeLock{}, "asset_id = ?", assetID).Error; err != nil {
		m.logger.Error("Failed to release trade lock", zap.Uint("asset_id", assetID), zap.Error(err))
	}
}
