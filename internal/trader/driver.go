package trader

import (
	"context"
	"fmt"

	"micro-trade-bot-go/internal/metrics"
	"micro-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// Summary aggregates one batch run. One asset's failure never aborts the
// rest; every error is captured here instead of propagated.
type Summary struct {
	Processed int      `json:"processed"`
	Errors    int      `json:"errors"`
	Messages  []string `json:"messages"`
}

// ProcessAllEnabled runs one decision/execution cycle for every enabled
// asset of the user. Errors (including panics) are captured per asset.
func (p *Processor) ProcessAllEnabled(ctx context.Context, userID string) Summary {
	var assets []models.Asset
	err := p.db.
		Joins("JOIN micro_processing_settings s ON s.asset_id = assets.id AND s.deleted_at IS NULL").
		Where("assets.user_id = ? AND s.enabled = ?", userID, true).
		Find(&assets).Error
	if err != nil {
		p.logger.Error("Failed to enumerate enabled assets", zap.String("user_id", userID), zap.Error(err))
		return Summary{Errors: 1, Messages: []string{fmt.Sprintf("enumerate assets: %v", err)}}
	}

	summary := Summary{}
	for _, asset := range assets {
		message, err := p.processAsset(ctx, &asset)
		summary.Processed++
		if err != nil {
			summary.Errors++
			summary.Messages = append(summary.Messages, fmt.Sprintf("%s: %v", asset.Symbol, err))
			p.logger.Error("Asset processing failed",
				zap.String("symbol", asset.Symbol),
				zap.Uint("asset_id", asset.ID),
				zap.Error(err))
			continue
		}
		if message != "" {
			summary.Messages = append(summary.Messages, fmt.Sprintf("%s: %s", asset.Symbol, message))
		}
	}
	return summary
}

// ProcessAsset runs one cycle for a single asset, e.g. in response to a
// price tick for its symbol.
func (p *Processor) ProcessAsset(ctx context.Context, assetID uint) (string, error) {
	var asset models.Asset
	if err := p.db.First(&asset, assetID).Error; err != nil {
		return "", &PersistenceError{Op: "load asset", Err: err}
	}
	return p.processAsset(ctx, &asset)
}

func (p *Processor) processAsset(ctx context.Context, asset *models.Asset) (message string, err error) {
	// The driver is the boundary nothing may escape; a panic in one
	// asset's cycle becomes that asset's error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
			metrics.ProcessingErrorsTotal.WithLabelValues("panic").Inc()
		}
	}()

	var settings models.MicroProcessingSettings
	if err := p.db.Where("asset_id = ?", asset.ID).First(&settings).Error; err != nil {
		return "", &PersistenceError{Op: "load settings", Err: err}
	}
	plan, err := ParsePlan(&settings)
	if err != nil {
		return "", err
	}

	decision := Decide(asset, plan, p.locks.IsLocked(asset.ID))
	metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()

	if !decision.Trade {
		if decision.Reason == ReasonNoReference {
			// Selling with no reference price is a data inconsistency;
			// repair by restarting the cycle from idle.
			p.logger.Warn("Selling state without reference price, resetting to idle",
				zap.Uint("asset_id", asset.ID), zap.String("symbol", asset.Symbol))
			p.resetIdle(asset.ID)
			return "reset to idle: " + decision.Reason, nil
		}
		return "skipped: " + decision.Reason, nil
	}

	switch decision.Action {
	case ActionBuy:
		err = p.ExecuteBuy(ctx, asset.ID)
	case ActionSell:
		err = p.ExecuteSell(ctx, asset.ID)
	}
	if err != nil {
		if IsBenign(err) {
			return "skipped: " + err.Error(), nil
		}
		return "", err
	}
	return string(decision.Action) + " executed", nil
}
