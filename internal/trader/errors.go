package trader

import (
	"errors"
	"fmt"
)

// Failure taxonomy for one asset's processing. Configuration and validation
// failures abort before (or after resetting) any state mutation and are
// never retried; gateway failures follow the buy/sell asymmetry handled in
// the orchestrator; persistence failures after a settled trade mean the
// transaction record is the source of truth and an operator must reconcile.
var (
	ErrDisabled            = errors.New("micro processing disabled")
	ErrLocked              = errors.New("trade already in flight")
	ErrNoPrice             = errors.New("current price unknown")
	ErrWrongStatus         = errors.New("unexpected processing status")
	ErrInvalidQuantity     = errors.New("computed order quantity is not positive")
	ErrNoReferencePrice    = errors.New("no reference price for sell")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient shares")
)

// GatewayError wraps a failure from a trade execution gateway.
type GatewayError struct {
	Platform string
	Side     string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s %s order failed: %v", e.Platform, e.Side, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError wraps a store failure. When it occurs after a settled
// trade it marks a reconciliation-required condition rather than a rollback.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
