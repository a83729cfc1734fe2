package lock

import (
	"sync"
	"testing"
	"time"

	"micro-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTest creates an isolated in-memory database with the lock table.
// A single pooled connection keeps every caller on the same in-memory DB
// and serializes the inserts the way a shared store would.
func setupTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.TradeLock{})
	assert.NoError(t, err)

	return db
}

func TestManager_AcquireAndRelease(t *testing.T) {
	db := setupTest(t)
	m := NewManager(db, zap.NewNop(), 0)

	assert.False(t, m.IsLocked(1))

	assert.True(t, m.Acquire(1, "buy"))
	assert.True(t, m.IsLocked(1))

	// A second acquire on the same asset is denied; other assets are free.
	assert.False(t, m.Acquire(1, "sell"))
	assert.True(t, m.Acquire(2, "buy"))

	m.Release(1)
	assert.False(t, m.IsLocked(1))
	assert.True(t, m.IsLocked(2))

	// Re-acquire after release succeeds.
	assert.True(t, m.Acquire(1, "sell"))
}

func TestManager_ExpiredLockIsAbsent(t *testing.T) {
	db := setupTest(t)
	m := NewManager(db, zap.NewNop(), 5*time.Minute)

	// Simulate a lock left behind by a crashed holder.
	stale := models.TradeLock{
		AssetID:  7,
		Action:   "buy",
		LockedAt: time.Now().Add(-10 * time.Minute),
	}
	assert.NoError(t, db.Create(&stale).Error)

	// The stale lock reads as absent and is lazily deleted.
	assert.False(t, m.IsLocked(7))

	var count int64
	db.Model(&models.TradeLock{}).Where("asset_id = ?", 7).Count(&count)
	assert.Equal(t, int64(0), count)

	// A fresh acquire then succeeds.
	assert.True(t, m.Acquire(7, "buy"))
	assert.True(t, m.IsLocked(7))
}

func TestManager_FreshLockIsNotExpired(t *testing.T) {
	db := setupTest(t)
	m := NewManager(db, zap.NewNop(), 5*time.Minute)

	assert.True(t, m.Acquire(3, "sell"))
	assert.True(t, m.IsLocked(3))
	assert.False(t, m.Acquire(3, "sell"))
}

func TestManager_ConcurrentAcquire_ExactlyOneWins(t *testing.T) {
	db := setupTest(t)
	m := NewManager(db, zap.NewNop(), 0)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.Acquire(42, "buy")
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent acquire must succeed")
	assert.True(t, m.IsLocked(42))
}
