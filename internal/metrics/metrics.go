package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "micro_decisions_total",
			Help: "Micro-processing decisions by resulting action",
		},
		[]string{"action"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "micro_orders_total",
			Help: "Orders submitted to a gateway",
		},
		[]string{"platform", "side", "mode"}, // mode: live|test
	)
	ProcessingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "micro_processing_errors_total",
			Help: "Per-asset processing failures by stage",
		},
		[]string{"stage"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "micro_open_positions",
			Help: "Assets currently holding a bought position (status selling)",
		},
	)
	FeedConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "micro_feed_connections",
			Help: "Active price feed connections per provider",
		},
		[]string{"provider"},
	)
)

// Register installs all collectors on the default registry. Call once at
// process start.
func Register() {
	prometheus.MustRegister(DecisionsTotal)
	prometheus.MustRegister(OrdersTotal)
	prometheus.MustRegister(ProcessingErrorsTotal)
	prometheus.MustRegister(OpenPositions)
	prometheus.MustRegister(FeedConnections)
}
