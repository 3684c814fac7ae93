// Package metrics exposes the kernel's operational state as Prometheus
// gauges/counters/histograms: a package-level custom Registry plus
// promauto.With(Registry).New*Vec(...) construction, so every metric is
// registered exactly once at package init and labeled consistently.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the kernel's own Prometheus registry, kept separate from
// the global default registry so /metrics exposes only kernel state.
var Registry = prometheus.NewRegistry()

var (
	// OpenPositions is the current count of OPEN/PARTIAL positions.
	OpenPositions = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "kernel_open_positions",
		Help: "Number of currently open positions.",
	})

	// DailyPnL is the running daily realised (net) P&L in rupees.
	DailyPnL = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "kernel_daily_pnl_rupees",
		Help: "Running daily realised net P&L.",
	})

	// SignalsTotal counts signals by strategy and outcome.
	SignalsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_signals_total",
		Help: "Signals produced, labeled by strategy and outcome.",
	}, []string{"strategy_id", "outcome"})

	// TradesTotal counts closed trades by strategy and exit reason.
	TradesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_trades_total",
		Help: "Closed trades, labeled by strategy and exit reason.",
	}, []string{"strategy_id", "exit_reason"})

	// CircuitBreakerOpen reports 1 when the circuit breaker is OPEN.
	CircuitBreakerOpen = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "kernel_circuit_breaker_open",
		Help: "1 when the circuit breaker is latched OPEN, else 0.",
	})

	// LoopIterationDuration tracks per-loop cycle latency.
	LoopIterationDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernel_loop_iteration_seconds",
		Help:    "Duration of one control-loop iteration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"loop"})
)
