package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"micro-trade-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	krakenBaseURL      = "https://api.kraken.com"
	krakenAddOrderPath = "/0/private/AddOrder"
)

// KrakenGateway submits market orders to the Kraken REST API.
type KrakenGateway struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

var _ Gateway = (*KrakenGateway)(nil)

// NewKrakenGateway creates a new Kraken execution gateway.
func NewKrakenGateway(cfg *config.ExchangeKeys, logger *zap.Logger) *KrakenGateway {
	client := resty.New().SetBaseURL(krakenBaseURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &KrakenGateway{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

func (g *KrakenGateway) Name() string { return "kraken" }

// sign computes the API-Sign header: base64 of HMAC-SHA512 over
// path + SHA256(nonce + postdata), keyed with the base64-decoded secret.
func (g *KrakenGateway) sign(path, nonce, postData string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(g.secretKey)
	if err != nil {
		return "", fmt.Errorf("invalid kraken secret key: %w", err)
	}

	sha := sha256.New()
	sha.Write([]byte(nonce + postData))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(sha.Sum(nil))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// krakenOrderResponse represents the AddOrder response envelope.
type krakenOrderResponse struct {
	Error  []string `json:"error"`
	Result struct {
		Descr struct {
			Order string `json:"order"`
		} `json:"descr"`
		TxID []string `json:"txid"`
	} `json:"result"`
}

// SubmitMarketOrder places a market order via AddOrder. Test-mode orders set
// validate=true, which checks the request without placing it. AddOrder does
// not report a fill price, so the result is valued at the reference price.
func (g *KrakenGateway) SubmitMarketOrder(ctx context.Context, orderReq OrderRequest) (*OrderResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)

	form := url.Values{}
	form.Set("nonce", nonce)
	form.Set("ordertype", "market")
	form.Set("type", strings.ToLower(orderReq.Side))
	form.Set("pair", orderReq.Symbol)
	form.Set("volume", strconv.FormatFloat(orderReq.Quantity, 'f', -1, 64))
	form.Set("userref", strconv.FormatInt(int64(uuid.New().ID()), 10))
	if orderReq.TestMode {
		form.Set("validate", "true")
	}
	postData := form.Encode()

	signature, err := g.sign(krakenAddOrderPath, nonce, postData)
	if err != nil {
		return nil, err
	}

	var orderResp krakenOrderResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("API-Key", g.apiKey).
		SetHeader("API-Sign", signature).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(postData).
		SetResult(&orderResp).
		Post(krakenAddOrderPath)
	if err != nil {
		g.logger.Error("Kraken AddOrder request failed", zap.Error(err), zap.String("pair", orderReq.Symbol))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("kraken AddOrder failed with status %s: %s", resp.Status(), resp.String())
	}
	if len(orderResp.Error) > 0 {
		g.logger.Error("Kraken rejected order",
			zap.Strings("errors", orderResp.Error),
			zap.String("pair", orderReq.Symbol))
		return nil, fmt.Errorf("kraken rejected order: %s", strings.Join(orderResp.Error, "; "))
	}

	result := &OrderResult{
		Symbol:         orderReq.Symbol,
		Side:           orderReq.Side,
		FilledPrice:    orderReq.ReferencePrice,
		FilledQuantity: orderReq.Quantity,
		TotalAmount:    orderReq.ReferencePrice * orderReq.Quantity,
		Simulated:      orderReq.TestMode,
		RawRequest:     postData,
		RawResponse:    resp.String(),
	}
	if len(orderResp.Result.TxID) > 0 {
		result.OrderID = orderResp.Result.TxID[0]
	}

	g.logger.Info("Successfully submitted Kraken order",
		zap.String("pair", orderReq.Symbol),
		zap.String("side", orderReq.Side),
		zap.String("order_id", result.OrderID),
		zap.Bool("validate_only", orderReq.TestMode))
	return result, nil
}
