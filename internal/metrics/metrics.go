// Package metrics provides Prometheus instrumentation for the redemption
// bridge: session transitions, verification and redemption outcomes, and
// ledger call latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionTransitions counts sessions entering each status.
	SessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zapp_session_transitions_total",
		Help: "Sessions entering each status",
	}, []string{"status"}) // status = "pending", "verified", "completed"

	// Verifications counts verification attempts by outcome.
	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zapp_verifications_total",
		Help: "Payment verification attempts by outcome",
	}, []string{"outcome"}) // outcome = "approved", "declined", "error"

	// Redemptions counts redemption attempts by outcome.
	Redemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zapp_redemptions_total",
		Help: "Redemption attempts by outcome",
	}, []string{"outcome"})

	// LedgerLatency records ledger call latency in seconds, by call.
	LedgerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zapp_ledger_call_seconds",
		Help:    "Ledger call latency in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"call"})
)

func init() {
	prometheus.MustRegister(
		SessionTransitions,
		Verifications,
		Redemptions,
		LedgerLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
