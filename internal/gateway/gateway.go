// Package gateway contains the trade execution gateways: one client per
// trading platform, normalized behind a single market-order interface.
// Exchange-specific request signing and encoding stays inside each client.
package gateway

import "context"

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// OrderRequest describes a market order to submit.
type OrderRequest struct {
	Symbol   string
	Side     string
	Quantity float64
	// ReferencePrice is the last observed price for the symbol. It is used
	// to value simulated fills; real fills report their own price.
	ReferencePrice float64
	// TestMode routes the order through the exchange's validation-only
	// path (or the paper gateway) without touching real balances.
	TestMode bool
}

// OrderResult is a normalized view of a filled (or simulated) market order.
type OrderResult struct {
	OrderID        string
	Symbol         string
	Side           string
	FilledPrice    float64
	FilledQuantity float64
	TotalAmount    float64
	Simulated      bool
	RawRequest     string
	RawResponse    string
}

// Gateway is the surface the trading core needs from an execution backend.
type Gateway interface {
	Name() string
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}
