package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func setupKrakenTestServer(handler http.Handler) (*KrakenGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	gw := &KrakenGateway{
		client:    resty.New().SetBaseURL(server.URL),
		apiKey:    "test_api_key",
		secretKey: base64.StdEncoding.EncodeToString([]byte("test_secret_key")),
		logger:    zap.NewNop(),
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	return gw, server
}

func TestKrakenSubmitMarketOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockResponse := `{"error":[],"result":{"descr":{"order":"buy 0.01000000 XBTUSD @ market"},"txid":["OU22CG-KLAF2-FWUDD7"]}}`

		var gotForm url.Values
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/0/private/AddOrder", r.URL.Path)
			assert.Equal(t, "test_api_key", r.Header.Get("API-Key"))
			assert.NotEmpty(t, r.Header.Get("API-Sign"))
			assert.NoError(t, r.ParseForm())
			gotForm = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(mockResponse))
		})

		gw, server := setupKrakenTestServer(handler)
		defer server.Close()

		result, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol:         "XBTUSD",
			Side:           SideBuy,
			Quantity:       0.01,
			ReferencePrice: 50000,
		})

		assert.NoError(t, err)
		assert.Equal(t, "OU22CG-KLAF2-FWUDD7", result.OrderID)
		assert.Equal(t, 50000.0, result.FilledPrice)
		assert.Equal(t, 0.01, result.FilledQuantity)
		assert.False(t, result.Simulated)

		assert.Equal(t, "XBTUSD", gotForm.Get("pair"))
		assert.Equal(t, "buy", gotForm.Get("type"))
		assert.Equal(t, "market", gotForm.Get("ordertype"))
		assert.NotEmpty(t, gotForm.Get("nonce"))
		assert.Empty(t, gotForm.Get("validate"))
	})

	t.Run("TestModeSetsValidate", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "true", r.PostForm.Get("validate"))
			_, _ = w.Write([]byte(`{"error":[],"result":{"descr":{"order":"sell 0.01000000 XBTUSD @ market"}}}`))
		})

		gw, server := setupKrakenTestServer(handler)
		defer server.Close()

		result, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol:         "XBTUSD",
			Side:           SideSell,
			Quantity:       0.01,
			ReferencePrice: 50300,
			TestMode:       true,
		})

		assert.NoError(t, err)
		assert.True(t, result.Simulated)
	})

	t.Run("ExchangeRejection", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":["EOrder:Insufficient funds"]}`))
		})

		gw, server := setupKrakenTestServer(handler)
		defer server.Close()

		result, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol: "XBTUSD", Side: SideBuy, Quantity: 0.01,
		})

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "EOrder:Insufficient funds")
	})
}

func TestKrakenSign(t *testing.T) {
	gw := &KrakenGateway{secretKey: base64.StdEncoding.EncodeToString([]byte("secret"))}

	sig1, err := gw.sign("/0/private/AddOrder", "1", "nonce=1&pair=XBTUSD")
	assert.NoError(t, err)
	sig2, err := gw.sign("/0/private/AddOrder", "1", "nonce=1&pair=XBTUSD")
	assert.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	// The signature must be valid base64 and change with the payload.
	_, err = base64.StdEncoding.DecodeString(sig1)
	assert.NoError(t, err)
	sig3, err := gw.sign("/0/private/AddOrder", "2", "nonce=2&pair=XBTUSD")
	assert.NoError(t, err)
	assert.NotEqual(t, sig1, sig3)

	// A non-base64 secret is a configuration error.
	bad := &KrakenGateway{secretKey: "%%%not-base64%%%"}
	_, err = bad.sign("/0/private/AddOrder", "1", "nonce=1")
	assert.Error(t, err)
}
