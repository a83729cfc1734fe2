package database

import (
	"fmt"

	"micro-trade-bot-go/internal/config"
	"micro-trade-bot-go/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
// TranslateError is required so a unique-constraint violation on the trade
// lock table surfaces as gorm.ErrDuplicatedKey.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates the schema and seeds the tracked assets, their
// micro-processing settings, and the user account from the config.
func AutoMigrate(db *gorm.DB, cfg *config.Config) error {
	err := db.AutoMigrate(
		&models.Asset{},
		&models.Account{},
		&models.MicroProcessingSettings{},
		&models.TradeLock{},
		&models.Transaction{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// Seed the user account on first run.
	account := models.Account{UserID: cfg.Trading.UserID, USDBalance: cfg.Trading.InitialBalance}
	if err := db.FirstOrCreate(&account, models.Account{UserID: cfg.Trading.UserID}).Error; err != nil {
		return fmt.Errorf("failed to seed account for user '%s': %w", cfg.Trading.UserID, err)
	}

	// Seed tracked assets and their settings rows from the config.
	for _, symbol := range cfg.Trading.Symbols {
		asset := models.Asset{UserID: cfg.Trading.UserID, Symbol: symbol}
		if err := db.FirstOrCreate(&asset, models.Asset{UserID: cfg.Trading.UserID, Symbol: symbol}).Error; err != nil {
			return fmt.Errorf("failed to seed asset '%s': %w", symbol, err)
		}

		settings := models.MicroProcessingSettings{
			AssetID:          asset.ID,
			ProcessingStatus: models.StatusIdle,
			TestMode:         cfg.Trading.DefaultTestMode,
		}
		if err := db.FirstOrCreate(&settings, models.MicroProcessingSettings{AssetID: asset.ID}).Error; err != nil {
			return fmt.Errorf("failed to seed settings for asset '%s': %w", symbol, err)
		}
	}

	return nil
}
