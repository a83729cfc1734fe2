package trader

import (
	"fmt"

	"micro-trade-bot-go/internal/models"
)

// Action is the trade side a decision resolves to.
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Decision reasons. ReasonNoReference signals a data inconsistency the
// caller is expected to repair by resetting the asset to idle.
const (
	ReasonDisabled       = "micro processing disabled"
	ReasonLocked         = "trade already in flight"
	ReasonNoPrice        = "current price unknown"
	ReasonIdleCycle      = "idle cycle opens a position"
	ReasonMidFlight      = "buy still settling"
	ReasonNoReference    = "no reference price"
	ReasonBelowThreshold = "gain below sell threshold"
	ReasonThresholdMet   = "sell threshold reached"
)

// Decision is the outcome of evaluating one price tick for one asset.
type Decision struct {
	Trade  bool
	Action Action
	Reason string
	// PercentChange is the gain over the reference price; only meaningful
	// for decisions made in the selling state.
	PercentChange float64
}

// Decide evaluates the micro-processing trigger for one asset. It is pure:
// all inputs are passed in, including whether a trade lock is currently
// held. The cycle is an unconditional buy from idle followed by a
// conditional sell. The machine never sells at a loss and waits
// indefinitely for the price to reach the threshold.
func Decide(asset *models.Asset, plan *TradePlan, locked bool) Decision {
	if !plan.Enabled {
		return Decision{Action: ActionNone, Reason: ReasonDisabled}
	}
	if locked {
		return Decision{Action: ActionNone, Reason: ReasonLocked}
	}
	if asset.CurrentPrice <= 0 {
		return Decision{Action: ActionNone, Reason: ReasonNoPrice}
	}

	switch plan.Status {
	case models.StatusIdle:
		return Decision{Trade: true, Action: ActionBuy, Reason: ReasonIdleCycle}

	case models.StatusBuying:
		return Decision{Action: ActionNone, Reason: ReasonMidFlight}

	case models.StatusSelling:
		reference, ok := plan.ReferencePrice()
		if !ok {
			return Decision{Action: ActionNone, Reason: ReasonNoReference}
		}
		percentChange := (asset.CurrentPrice - reference) / reference * 100
		if percentChange >= plan.SellPercentage {
			return Decision{
				Trade:         true,
				Action:        ActionSell,
				Reason:        ReasonThresholdMet,
				PercentChange: percentChange,
			}
		}
		return Decision{
			Action:        ActionNone,
			Reason:        fmt.Sprintf("%s (%.4f%% < %.4f%%)", ReasonBelowThreshold, percentChange, plan.SellPercentage),
			PercentChange: percentChange,
		}
	}

	return Decision{Action: ActionNone, Reason: fmt.Sprintf("unknown status %q", plan.Status)}
}
