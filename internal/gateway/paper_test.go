package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPaperGateway_FillsAtReferencePrice(t *testing.T) {
	gw := NewPaperGateway(zap.NewNop())

	result, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
		Symbol:         "BTCUSDT",
		Side:           SideBuy,
		Quantity:       0.01,
		ReferencePrice: 50000,
	})

	assert.NoError(t, err)
	assert.Equal(t, "BTCUSDT", result.Symbol)
	assert.Equal(t, SideBuy, result.Side)
	assert.Equal(t, 50000.0, result.FilledPrice)
	assert.Equal(t, 0.01, result.FilledQuantity)
	assert.InDelta(t, 500, result.TotalAmount, 1e-9)
	assert.True(t, result.Simulated)
	assert.NotEmpty(t, result.OrderID)
	assert.NotEmpty(t, result.RawRequest)
	assert.NotEmpty(t, result.RawResponse)
	assert.Equal(t, 1, gw.Fills())
}

func TestPaperGateway_RejectsInvalidOrders(t *testing.T) {
	gw := NewPaperGateway(zap.NewNop())

	_, err := gw.SubmitMarketOrder(context.Background(), OrderRequest{
		Symbol: "BTCUSDT", Side: SideBuy, Quantity: 0, ReferencePrice: 50000,
	})
	assert.Error(t, err)

	_, err = gw.SubmitMarketOrder(context.Background(), OrderRequest{
		Symbol: "BTCUSDT", Side: SideBuy, Quantity: 0.01, ReferencePrice: 0,
	})
	assert.Error(t, err)
	assert.Equal(t, 0, gw.Fills())
}
