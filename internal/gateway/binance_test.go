package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupBinanceTestServer creates a test server and a gateway pointed at it.
func setupBinanceTestServer(handler http.Handler) (*BinanceGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	gw := &BinanceGateway{
		client:    client,
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return gw, server
}

func TestBinanceSubmitMarketOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockResponse := `{
			"symbol": "BTCUSDT",
			"orderId": 12345,
			"executedQty": "0.01000000",
			"cummulativeQuoteQty": "500.00000000",
			"status": "FILLED",
			"side": "BUY"
		}`

		var gotBody url.Values
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/order", r.URL.Path)
			assert.Equal(t, "test_api_key", r.Header.Get("X-MBX-APIKEY"))
			assert.NoError(t, r.ParseForm())
			gotBody = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		gw, server := setupBinanceTestServer(handler)
		defer server.Close()

		// Act
		result, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol:         "BTCUSDT",
			Side:           SideBuy,
			Quantity:       0.01,
			ReferencePrice: 50000,
		})

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, "12345", result.OrderID)
		assert.Equal(t, 0.01, result.FilledQuantity)
		assert.Equal(t, 500.0, result.TotalAmount)
		assert.InDelta(t, 50000, result.FilledPrice, 1e-9)
		assert.False(t, result.Simulated)

		// The request was signed and carries the order parameters.
		assert.Equal(t, "BTCUSDT", gotBody.Get("symbol"))
		assert.Equal(t, "BUY", gotBody.Get("side"))
		assert.Equal(t, "MARKET", gotBody.Get("type"))
		assert.NotEmpty(t, gotBody.Get("signature"))
		assert.NotEmpty(t, gotBody.Get("timestamp"))
	})

	t.Run("TestModeUsesValidationEndpoint", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/order/test", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		})

		gw, server := setupBinanceTestServer(handler)
		defer server.Close()

		result, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol:         "BTCUSDT",
			Side:           SideSell,
			Quantity:       0.01,
			ReferencePrice: 50300,
			TestMode:       true,
		})

		assert.NoError(t, err)
		assert.True(t, result.Simulated)
		assert.Equal(t, 50300.0, result.FilledPrice)
		assert.Equal(t, 0.01, result.FilledQuantity)
		assert.InDelta(t, 503, result.TotalAmount, 1e-9)
		assert.NotEmpty(t, result.OrderID)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code": -2010, "msg": "Account has insufficient balance"}`))
		})

		gw, server := setupBinanceTestServer(handler)
		defer server.Close()

		result, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     SideBuy,
			Quantity: 0.01,
		})

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "failed to create order")
	})
}

func TestBinanceSign(t *testing.T) {
	gw := &BinanceGateway{secretKey: "test_secret_key"}

	// HMAC-SHA256 is deterministic: same payload, same signature.
	sig1 := gw.sign("symbol=BTCUSDT&side=BUY")
	sig2 := gw.sign("symbol=BTCUSDT&side=BUY")
	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 64) // hex-encoded SHA256

	assert.NotEqual(t, sig1, gw.sign("symbol=ETHUSDT&side=BUY"))
}
