package trader

import (
	"context"
	"time"

	"micro-trade-bot-go/internal/config"
	"micro-trade-bot-go/internal/feed"
	"micro-trade-bot-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine drives the micro-processing loop. Two things trigger a cycle:
// price ticks pushed by the feed adapters, and a timer so the machine still
// progresses for assets whose feed is quiet.
type Engine struct {
	logger    *zap.Logger
	cfg       *config.Config
	db        *gorm.DB
	processor *Processor
	feeds     *feed.Registry
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, db *gorm.DB, processor *Processor, feeds *feed.Registry) *Engine {
	return &Engine{
		logger:    logger,
		cfg:       cfg,
		db:        db,
		processor: processor,
		feeds:     feeds,
	}
}

// Run starts the feed subscriptions and the timer loop, blocking until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Initializing trading engine...")
	if err := e.startFeeds(ctx); err != nil {
		e.logger.Fatal("Failed to start price feeds", zap.Error(err))
	}
	e.logger.Info("Engine initialized successfully.")

	interval := time.Duration(e.cfg.Trading.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting micro-processing loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return
		case <-ticker.C:
			summary := e.processor.ProcessAllEnabled(ctx, e.cfg.Trading.UserID)
			e.logger.Info("Batch cycle complete",
				zap.Int("processed", summary.Processed),
				zap.Int("errors", summary.Errors),
				zap.Strings("messages", summary.Messages))
		}
	}
}

// startFeeds subscribes every enabled asset of the configured user to its
// websocket provider, delivering ticks into OnPriceUpdate. Other users'
// assets never get a connection; the engine would drop their ticks anyway.
func (e *Engine) startFeeds(ctx context.Context) error {
	var rows []models.MicroProcessingSettings
	err := e.db.
		Joins("JOIN assets a ON a.id = micro_processing_settings.asset_id AND a.deleted_at IS NULL").
		Where("a.user_id = ? AND micro_processing_settings.enabled = ?", e.cfg.Trading.UserID, true).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for _, settings := range rows {
		var asset models.Asset
		if err := e.db.First(&asset, settings.AssetID).Error; err != nil {
			e.logger.Warn("Settings row without asset, skipping feed",
				zap.Uint("asset_id", settings.AssetID), zap.Error(err))
			continue
		}

		provider, err := e.feeds.Resolve(settings.WebsocketProvider)
		if err != nil {
			e.logger.Warn("Unknown websocket provider for asset, skipping feed",
				zap.String("symbol", asset.Symbol),
				zap.String("provider", settings.WebsocketProvider))
			continue
		}

		if err := provider.Subscribe(ctx, asset.Symbol, func(symbol string, price float64) {
			e.OnPriceUpdate(ctx, symbol, price)
		}); err != nil {
			e.logger.Error("Failed to subscribe to feed",
				zap.String("symbol", asset.Symbol),
				zap.String("provider", provider.Name()),
				zap.Error(err))
			continue
		}
		e.logger.Info("Feed subscription started",
			zap.String("symbol", asset.Symbol),
			zap.String("provider", provider.Name()))
	}
	return nil
}

// OnPriceUpdate records a tick and runs one cycle for the matching asset.
// Errors are logged here, never propagated: a tick handler must not fail
// the feed.
func (e *Engine) OnPriceUpdate(ctx context.Context, symbol string, price float64) {
	if price <= 0 {
		return
	}

	var asset models.Asset
	err := e.db.Where("user_id = ? AND symbol = ?", e.cfg.Trading.UserID, symbol).First(&asset).Error
	if err != nil {
		e.logger.Debug("Tick for untracked symbol", zap.String("symbol", symbol))
		return
	}

	if err := e.db.Model(&models.Asset{}).Where("id = ?", asset.ID).Update("current_price", price).Error; err != nil {
		e.logger.Error("Failed to record tick price", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	message, err := e.processor.ProcessAsset(ctx, asset.ID)
	if err != nil {
		e.logger.Error("Tick-driven processing failed",
			zap.String("symbol", symbol),
			zap.Float64("price", price),
			zap.Error(err))
		return
	}
	if message != "" {
		e.logger.Debug("Tick processed",
			zap.String("symbol", symbol),
			zap.Float64("price", price),
			zap.String("result", message))
	}
}
