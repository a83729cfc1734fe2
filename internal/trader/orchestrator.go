package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"micro-trade-bot-go/internal/gateway"
	"micro-trade-bot-go/internal/lock"
	"micro-trade-bot-go/internal/metrics"
	"micro-trade-bot-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GatewayResolver maps a trading platform name to an execution gateway.
type GatewayResolver interface {
	Resolve(platform string) (gateway.Gateway, error)
}

// Processor runs the buy/sell orchestration for single assets and the batch
// driver across a user's portfolio. All mutations of shares, balance, and
// settings happen inside a held trade lock for the asset.
type Processor struct {
	db       *gorm.DB
	logger   *zap.Logger
	locks    *lock.Manager
	gateways GatewayResolver
}

// NewProcessor creates a new trade processor.
func NewProcessor(db *gorm.DB, logger *zap.Logger, locks *lock.Manager, gateways GatewayResolver) *Processor {
	return &Processor{db: db, logger: logger, locks: locks, gateways: gateways}
}

// ExecuteBuy opens a position for the asset: checkpoint the buying status,
// size the order, verify balance, submit, and on success move the machine
// to selling with the buy recorded as its working memory.
//
// A failed buy resets the status to idle: nothing was committed, so the
// next cycle can safely start from scratch.
func (p *Processor) ExecuteBuy(ctx context.Context, assetID uint) error {
	asset, settings, err := p.load(assetID)
	if err != nil {
		return err
	}
	plan, err := ParsePlan(settings)
	if err != nil {
		return err
	}

	// Re-validate against the fresh row; the decision may have raced an
	// earlier execution.
	if !plan.Enabled {
		return ErrDisabled
	}
	if plan.Status != models.StatusIdle {
		return fmt.Errorf("%w: buy requires idle, found %s", ErrWrongStatus, plan.Status)
	}

	if !p.locks.Acquire(assetID, "buy") {
		return ErrLocked
	}
	defer p.locks.Release(assetID)

	l := p.logger.With(zap.Uint("asset_id", assetID), zap.String("symbol", asset.Symbol))

	// Durable checkpoint before any external call. A crash past this point
	// leaves the buying status plus a stale lock, which together flag an
	// interrupted operation for reconciliation.
	if err := p.setStatus(assetID, models.StatusBuying); err != nil {
		return &PersistenceError{Op: "checkpoint buying status", Err: err}
	}

	price := asset.CurrentPrice
	if price <= 0 {
		p.resetIdle(assetID)
		return ErrNoPrice
	}
	quantity := plan.Sizing.OrderQuantity(price)
	if quantity <= 0 {
		p.resetIdle(assetID)
		return fmt.Errorf("%w: price %.8f", ErrInvalidQuantity, price)
	}

	cost := quantity * price
	account, err := p.loadAccount(asset.UserID)
	if err != nil {
		p.resetIdle(assetID)
		return err
	}
	if account.USDBalance < cost {
		p.resetIdle(assetID)
		return fmt.Errorf("%w: need %.2f USD, have %.2f", ErrInsufficientBalance, cost, account.USDBalance)
	}

	gw, err := p.gateways.Resolve(plan.Platform)
	if err != nil {
		p.resetIdle(assetID)
		return err
	}

	result, err := gw.SubmitMarketOrder(ctx, gateway.OrderRequest{
		Symbol:         asset.Symbol,
		Side:           gateway.SideBuy,
		Quantity:       quantity,
		ReferencePrice: price,
		TestMode:       plan.TestMode,
	})
	if err != nil {
		// The buy never happened, so there is nothing to unwind.
		p.resetIdle(assetID)
		metrics.ProcessingErrorsTotal.WithLabelValues("gateway").Inc()
		return &GatewayError{Platform: plan.Platform, Side: gateway.SideBuy, Err: err}
	}
	metrics.OrdersTotal.WithLabelValues(plan.Platform, gateway.SideBuy, orderMode(result)).Inc()

	p.appendTransaction(asset, gateway.SideBuy, result, 0)

	if !result.Simulated {
		p.settleBalances(l, asset, result.FilledQuantity, -result.TotalAmount)
	}

	fillPrice := result.FilledPrice
	if fillPrice <= 0 {
		fillPrice = price
	}
	now := time.Now()
	updates := map[string]interface{}{
		"processing_status": models.StatusSelling,
		"last_buy_price":    fillPrice,
		"last_buy_shares":   result.FilledQuantity,
		"last_buy_at":       now,
	}
	if err := p.db.Model(&models.MicroProcessingSettings{}).Where("asset_id = ?", assetID).Updates(updates).Error; err != nil {
		// The trade settled. The transaction record is the source of truth;
		// this asset needs manual reconciliation.
		l.Error("Buy settled but state update failed, reconciliation required", zap.Error(err))
		metrics.ProcessingErrorsTotal.WithLabelValues("persistence").Inc()
		return &PersistenceError{Op: "persist post-buy state", Err: err}
	}

	metrics.OpenPositions.Inc()
	l.Info("Buy settled, position opened",
		zap.Float64("quantity", result.FilledQuantity),
		zap.Float64("price", fillPrice),
		zap.Bool("simulated", result.Simulated))
	return nil
}

// ExecuteSell closes the asset's position at the recorded buy size and, on
// success, clears the working memory and re-arms the cycle at idle.
//
// A failed sell leaves the status at selling: the position is real and must
// still eventually be sold, so the condition is simply re-evaluated on the
// next tick.
func (p *Processor) ExecuteSell(ctx context.Context, assetID uint) error {
	asset, settings, err := p.load(assetID)
	if err != nil {
		return err
	}
	plan, err := ParsePlan(settings)
	if err != nil {
		return err
	}

	if !plan.Enabled {
		return ErrDisabled
	}
	if plan.Status != models.StatusSelling {
		return fmt.Errorf("%w: sell requires selling, found %s", ErrWrongStatus, plan.Status)
	}

	reference, ok := plan.ReferencePrice()
	if !ok {
		return ErrNoReferencePrice
	}
	if plan.LastBuyShares == nil || *plan.LastBuyShares <= 0 {
		return fmt.Errorf("%w: no recorded buy shares", ErrInvalidQuantity)
	}
	quantity := *plan.LastBuyShares

	// Defends against the holding shrinking outside the machine, e.g. a
	// manual withdrawal. Simulated positions never credited shares, so the
	// check only applies to live trading.
	if !plan.TestMode && asset.Shares < quantity {
		return fmt.Errorf("%w: position is %.8f, holding %.8f", ErrInsufficientShares, quantity, asset.Shares)
	}

	if !p.locks.Acquire(assetID, "sell") {
		return ErrLocked
	}
	defer p.locks.Release(assetID)

	l := p.logger.With(zap.Uint("asset_id", assetID), zap.String("symbol", asset.Symbol))

	gw, err := p.gateways.Resolve(plan.Platform)
	if err != nil {
		return err
	}

	result, err := gw.SubmitMarketOrder(ctx, gateway.OrderRequest{
		Symbol:         asset.Symbol,
		Side:           gateway.SideSell,
		Quantity:       quantity,
		ReferencePrice: asset.CurrentPrice,
		TestMode:       plan.TestMode,
	})
	if err != nil {
		// Status stays at selling; the sell will be re-attempted when the
		// threshold is met again.
		metrics.ProcessingErrorsTotal.WithLabelValues("gateway").Inc()
		return &GatewayError{Platform: plan.Platform, Side: gateway.SideSell, Err: err}
	}
	metrics.OrdersTotal.WithLabelValues(plan.Platform, gateway.SideSell, orderMode(result)).Inc()

	basis := reference
	if plan.LastBuyPrice != nil && *plan.LastBuyPrice > 0 {
		basis = *plan.LastBuyPrice
	}
	profit := result.TotalAmount - basis*result.FilledQuantity
	p.appendTransaction(asset, gateway.SideSell, result, profit)

	if !result.Simulated {
		p.settleBalances(l, asset, -result.FilledQuantity, result.TotalAmount)
	}

	updates := map[string]interface{}{
		"processing_status": models.StatusIdle,
		"last_buy_price":    nil,
		"last_buy_shares":   nil,
		"last_buy_at":       nil,
	}
	if err := p.db.Model(&models.MicroProcessingSettings{}).Where("asset_id = ?", assetID).Updates(updates).Error; err != nil {
		l.Error("Sell settled but state update failed, reconciliation required", zap.Error(err))
		metrics.ProcessingErrorsTotal.WithLabelValues("persistence").Inc()
		return &PersistenceError{Op: "persist post-sell state", Err: err}
	}

	metrics.OpenPositions.Dec()
	l.Info("Sell settled, cycle re-armed",
		zap.Float64("quantity", result.FilledQuantity),
		zap.Float64("price", result.FilledPrice),
		zap.Float64("profit", profit),
		zap.Bool("simulated", result.Simulated))
	return nil
}

// load fetches the asset and its settings row.
func (p *Processor) load(assetID uint) (*models.Asset, *models.MicroProcessingSettings, error) {
	var asset models.Asset
	if err := p.db.First(&asset, assetID).Error; err != nil {
		return nil, nil, &PersistenceError{Op: "load asset", Err: err}
	}
	var settings models.MicroProcessingSettings
	if err := p.db.Where("asset_id = ?", assetID).First(&settings).Error; err != nil {
		return nil, nil, &PersistenceError{Op: "load settings", Err: err}
	}
	return &asset, &settings, nil
}

func (p *Processor) loadAccount(userID string) (*models.Account, error) {
	var account models.Account
	if err := p.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, &PersistenceError{Op: "load account", Err: err}
	}
	return &account, nil
}

func (p *Processor) setStatus(assetID uint, status models.ProcessingStatus) error {
	return p.db.Model(&models.MicroProcessingSettings{}).
		Where("asset_id = ?", assetID).
		Update("processing_status", status).Error
}

// resetIdle returns the machine to the safe pre-buy state after a buy-side
// failure. Errors are logged only: the caller is already on a failure path.
func (p *Processor) resetIdle(assetID uint) {
	if err := p.setStatus(assetID, models.StatusIdle); err != nil {
		p.logger.Error("Failed to reset processing status to idle",
			zap.Uint("asset_id", assetID), zap.Error(err))
		metrics.ProcessingErrorsTotal.WithLabelValues("persistence").Inc()
	}
}

// settleBalances applies a live fill to the held shares and USD balance.
// Failures here never roll back the settled trade; the transaction record
// stands and the discrepancy is logged for reconciliation.
func (p *Processor) settleBalances(l *zap.Logger, asset *models.Asset, shareDelta, balanceDelta float64) {
	err := p.db.Model(&models.Asset{}).Where("id = ?", asset.ID).
		Update("shares", gorm.Expr("shares + ?", shareDelta)).Error
	if err != nil {
		l.Error("Failed to update held shares after settled trade, reconciliation required", zap.Error(err))
		metrics.ProcessingErrorsTotal.WithLabelValues("persistence").Inc()
	}
	err = p.db.Model(&models.Account{}).Where("user_id = ?", asset.UserID).
		Update("usd_balance", gorm.Expr("usd_balance + ?", balanceDelta)).Error
	if err != nil {
		l.Error("Failed to update balance after settled trade, reconciliation required", zap.Error(err))
		metrics.ProcessingErrorsTotal.WithLabelValues("persistence").Inc()
	}
}

// appendTransaction writes the append-only audit record for a fill. Errors
// are logged, never silently dropped, and never roll back the trade.
func (p *Processor) appendTransaction(asset *models.Asset, side string, result *gateway.OrderResult, profit float64) {
	record := models.Transaction{
		AssetID:      asset.ID,
		Symbol:       asset.Symbol,
		Action:       side,
		Shares:       result.FilledQuantity,
		Price:        result.FilledPrice,
		TotalAmount:  result.TotalAmount,
		Profit:       profit,
		Timestamp:    time.Now().UnixMilli(),
		OrderID:      result.OrderID,
		IsSimulation: result.Simulated,
		RawRequest:   result.RawRequest,
		RawResponse:  result.RawResponse,
	}
	if err := p.db.Create(&record).Error; err != nil {
		p.logger.Error("Failed to append transaction record",
			zap.Uint("asset_id", asset.ID),
			zap.String("action", side),
			zap.Error(err))
		metrics.ProcessingErrorsTotal.WithLabelValues("persistence").Inc()
	}
}

func orderMode(result *gateway.OrderResult) string {
	if result.Simulated {
		return "test"
	}
	return "live"
}

// IsBenign reports whether an execution error is an expected skip (another
// trade in flight, feature disabled, or a status race) rather than a
// failure worth surfacing.
func IsBenign(err error) bool {
	return errors.Is(err, ErrLocked) || errors.Is(err, ErrDisabled) || errors.Is(err, ErrWrongStatus)
}
