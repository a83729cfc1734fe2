package feed

import (
	"context"
	"strconv"
	"time"

	"micro-trade-bot-go/internal/metrics"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// BinanceFeed streams trade ticks from the Binance websocket API.
type BinanceFeed struct {
	logger *zap.Logger
}

var _ Provider = (*BinanceFeed)(nil)

// NewBinanceFeed creates a Binance price feed provider.
func NewBinanceFeed(logger *zap.Logger) *BinanceFeed {
	return &BinanceFeed{logger: logger}
}

func (f *BinanceFeed) Name() string { return "binance" }

// Subscribe starts a trade stream for the symbol and keeps it alive,
// reconnecting with exponential backoff, until the context is cancelled.
func (f *BinanceFeed) Subscribe(ctx context.Context, symbol string, handler Handler) error {
	go f.run(ctx, symbol, handler)
	return nil
}

func (f *BinanceFeed) run(ctx context.Context, symbol string, handler Handler) {
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Jitter: true}

	for {
		wsHandler := func(event *binance.WsTradeEvent) {
			price, err := strconv.ParseFloat(event.Price, 64)
			if err != nil || price <= 0 {
				f.logger.Warn("Dropping unparseable trade tick",
					zap.String("symbol", event.Symbol), zap.String("price", event.Price))
				return
			}
			handler(event.Symbol, price)
		}
		errHandler := func(err error) {
			f.logger.Error("Binance stream error", zap.String("symbol", symbol), zap.Error(err))
		}

		doneC, stopC, err := binance.WsTradeServe(symbol, wsHandler, errHandler)
		if err != nil {
			wait := b.Duration()
			f.logger.Error("Failed to open Binance trade stream, retrying",
				zap.String("symbol", symbol), zap.Duration("retry_in", wait), zap.Error(err))
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		b.Reset()
		metrics.FeedConnections.WithLabelValues(f.Name()).Inc()
		f.logger.Info("Subscribed to Binance trade stream", zap.String("symbol", symbol))

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			metrics.FeedConnections.WithLabelValues(f.Name()).Dec()
			return
		case <-doneC:
			metrics.FeedConnections.WithLabelValues(f.Name()).Dec()
			f.logger.Warn("Binance trade stream closed, reconnecting", zap.String("symbol", symbol))
		}
	}
}
