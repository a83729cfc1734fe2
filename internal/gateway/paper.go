package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaperGateway simulates execution in memory using the reference price of
// each request. It never talks to an exchange; it exists so the loop can be
// validated end to end without credentials.
type PaperGateway struct {
	logger *zap.Logger
	mu     sync.Mutex
	fills  int
}

var _ Gateway = (*PaperGateway)(nil)

// NewPaperGateway creates a new in-memory simulated gateway.
func NewPaperGateway(logger *zap.Logger) *PaperGateway {
	return &PaperGateway{logger: logger}
}

func (g *PaperGateway) Name() string { return "paper" }

// Fills returns how many simulated orders this gateway has accepted.
func (g *PaperGateway) Fills() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fills
}

// SubmitMarketOrder fills the order instantly at the reference price.
func (g *PaperGateway) SubmitMarketOrder(ctx context.Context, orderReq OrderRequest) (*OrderResult, error) {
	if orderReq.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %f", orderReq.Quantity)
	}
	if orderReq.ReferencePrice <= 0 {
		return nil, fmt.Errorf("no reference price to value paper fill for %s", orderReq.Symbol)
	}

	g.mu.Lock()
	g.fills++
	g.mu.Unlock()

	result := &OrderResult{
		OrderID:        uuid.New().String(),
		Symbol:         orderReq.Symbol,
		Side:           orderReq.Side,
		FilledPrice:    orderReq.ReferencePrice,
		FilledQuantity: orderReq.Quantity,
		TotalAmount:    orderReq.ReferencePrice * orderReq.Quantity,
		Simulated:      true,
	}

	rawReq, _ := json.Marshal(orderReq)
	rawResp, _ := json.Marshal(map[string]interface{}{
		"order_id":  result.OrderID,
		"status":    "FILLED",
		"filled_at": time.Now().UTC().Format(time.RFC3339),
	})
	result.RawRequest = string(rawReq)
	result.RawResponse = string(rawResp)

	g.logger.Info("Paper fill",
		zap.String("symbol", orderReq.Symbol),
		zap.String("side", orderReq.Side),
		zap.Float64("quantity", orderReq.Quantity),
		zap.Float64("price", orderReq.ReferencePrice))
	return result, nil
}
