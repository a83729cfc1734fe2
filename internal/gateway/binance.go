package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"micro-trade-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	binanceBaseURL        = "https://api.binance.com/api/v3"
	binanceTestnetBaseURL = "https://testnet.binance.vision/api/v3"
	binanceRecvWindow     = "5000" // How long a request is valid in milliseconds
	orderTypeMarket       = "MARKET"
)

// BinanceGateway submits market orders to the Binance REST API.
type BinanceGateway struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

var _ Gateway = (*BinanceGateway)(nil)

// NewBinanceGateway creates a new Binance execution gateway.
func NewBinanceGateway(cfg *config.ExchangeKeys, logger *zap.Logger) *BinanceGateway {
	var url string
	if cfg.Testnet {
		url = binanceTestnetBaseURL
		logger.Warn("Using Binance Testnet")
	} else {
		url = binanceBaseURL
		logger.Info("Using Binance Production API")
	}

	client := resty.New().SetBaseURL(url)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &BinanceGateway{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

func (g *BinanceGateway) Name() string { return "binance" }

// sign creates a HMAC-SHA256 signature for the request.
func (g *BinanceGateway) sign(data string) string {
	h := hmac.New(sha256.New, []byte(g.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (g *BinanceGateway) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		g.logger.Debug("Executing request", zap.String("method", method), zap.String("url", g.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		g.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// binanceOrderResponse represents the response from creating a new order.
type binanceOrderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	TransactTime        int64  `json:"transactTime"`
	Price               string `json:"price"`
	OrigQuantity        string `json:"origQty"`
	ExecutedQuantity    string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	Type                string `json:"type"`
	Side                string `json:"side"`
}

// SubmitMarketOrder places a signed MARKET order. Test-mode orders go to the
// /order/test endpoint, which validates the request without executing it;
// the fill is then synthesized at the reference price.
func (g *BinanceGateway) SubmitMarketOrder(ctx context.Context, orderReq OrderRequest) (*OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", orderReq.Symbol)
	params.Set("side", orderReq.Side)
	params.Set("type", orderTypeMarket)
	params.Set("quantity", strconv.FormatFloat(orderReq.Quantity, 'f', -1, 64))
	params.Set("newClientOrderId", uuid.New().String())
	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	params.Set("recvWindow", binanceRecvWindow)

	queryString := params.Encode()
	signature := g.sign(queryString)
	params.Set("signature", signature)
	body := params.Encode()

	endpoint := "/order"
	if orderReq.TestMode {
		endpoint = "/order/test"
	}

	var orderResp binanceOrderResponse
	req := g.client.R().
		SetHeader("X-MBX-APIKEY", g.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(body).
		SetResult(&orderResp)

	resp, err := g.doRequest(ctx, "POST", endpoint, req)
	if err != nil {
		g.logger.Error("Failed to create order after multiple attempts",
			zap.Error(err),
			zap.String("symbol", orderReq.Symbol),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := &OrderResult{
		Symbol:      orderReq.Symbol,
		Side:        orderReq.Side,
		RawRequest:  body,
		RawResponse: resp.String(),
	}

	if orderReq.TestMode {
		// /order/test returns an empty object on success.
		result.OrderID = params.Get("newClientOrderId")
		result.FilledPrice = orderReq.ReferencePrice
		result.FilledQuantity = orderReq.Quantity
		result.TotalAmount = orderReq.ReferencePrice * orderReq.Quantity
		result.Simulated = true
		g.logger.Info("Validated test order on Binance", zap.String("symbol", orderReq.Symbol), zap.String("side", orderReq.Side))
		return result, nil
	}

	executedQty, _ := strconv.ParseFloat(orderResp.ExecutedQuantity, 64)
	quoteQty, _ := strconv.ParseFloat(orderResp.CummulativeQuoteQty, 64)

	result.OrderID = strconv.FormatInt(orderResp.OrderID, 10)
	result.FilledQuantity = executedQty
	result.TotalAmount = quoteQty
	if executedQty > 0 {
		result.FilledPrice = quoteQty / executedQty
	} else {
		result.FilledPrice = orderReq.ReferencePrice
	}

	g.logger.Info("Successfully created order",
		zap.String("symbol", orderReq.Symbol),
		zap.String("side", orderReq.Side),
		zap.String("order_id", result.OrderID),
		zap.Float64("filled_quantity", result.FilledQuantity),
		zap.Float64("filled_price", result.FilledPrice))
	return result, nil
}
