package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"micro-trade-bot-go/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

const krakenWsURL = "wss://ws.kraken.com"

// KrakenFeed streams ticker updates from the Kraken public websocket API.
type KrakenFeed struct {
	logger *zap.Logger
	wsURL  string
}

var _ Provider = (*KrakenFeed)(nil)

// NewKrakenFeed creates a Kraken price feed provider.
func NewKrakenFeed(logger *zap.Logger) *KrakenFeed {
	return &KrakenFeed{logger: logger, wsURL: krakenWsURL}
}

func (f *KrakenFeed) Name() string { return "kraken" }

// krakenSubscribe is the subscription request for one pair's ticker channel.
type krakenSubscribe struct {
	Event        string   `json:"event"`
	Pair         []string `json:"pair"`
	Subscription struct {
		Name string `json:"name"`
	} `json:"subscription"`
}

// Subscribe connects, subscribes to the pair's ticker channel, and keeps the
// connection alive with exponential backoff reconnects until the context is
// cancelled.
func (f *KrakenFeed) Subscribe(ctx context.Context, symbol string, handler Handler) error {
	go f.run(ctx, symbol, handler)
	return nil
}

func (f *KrakenFeed) run(ctx context.Context, symbol string, handler Handler) {
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Jitter: true}

	for {
		if err := f.stream(ctx, symbol, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := b.Duration()
			f.logger.Error("Kraken stream failed, reconnecting",
				zap.String("pair", symbol), zap.Duration("retry_in", wait), zap.Error(err))
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		b.Reset()
	}
}

// stream runs one websocket session: dial, subscribe, read until error or
// cancellation.
func (f *KrakenFeed) stream(ctx context.Context, symbol string, handler Handler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := krakenSubscribe{Event: "subscribe", Pair: []string{symbol}}
	sub.Subscription.Name = "ticker"
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	metrics.FeedConnections.WithLabelValues(f.Name()).Inc()
	defer metrics.FeedConnections.WithLabelValues(f.Name()).Dec()
	f.logger.Info("Subscribed to Kraken ticker stream", zap.String("pair", symbol))

	// Close the connection when the context ends so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		pair, price, ok := parseTickerMessage(data)
		if !ok {
			continue // heartbeat, subscription status, or other event
		}
		handler(pair, price)
	}
}

// parseTickerMessage extracts the pair and last trade price from a ticker
// channel message. Ticker payloads are arrays of the form
// [channelID, {"c": ["<price>", "<lot>"], ...}, "ticker", "<pair>"];
// everything else (event objects, heartbeats) is reported as not-ok.
func parseTickerMessage(data []byte) (string, float64, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil || len(parts) < 4 {
		return "", 0, false
	}

	var payload struct {
		C []string `json:"c"`
	}
	if err := json.Unmarshal(parts[1], &payload); err != nil || len(payload.C) == 0 {
		return "", 0, false
	}

	var pair string
	if err := json.Unmarshal(parts[len(parts)-1], &pair); err != nil {
		return "", 0, false
	}

	price, err := strconv.ParseFloat(payload.C[0], 64)
	if err != nil || price <= 0 {
		return "", 0, false
	}
	return pair, price, true
}
