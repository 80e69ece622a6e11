// Package metrics exposes the process's Prometheus collectors, grounded on
// the teacher's direct github.com/prometheus/client_golang dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the shared collector registry for the process.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// DiscoveryTicks counts pool-discovery scheduler ticks per outcome.
	DiscoveryTicks = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_discovery_ticks_total",
		Help: "Pool-discovery scheduler ticks, by outcome.",
	}, []string{"outcome"})

	// PositionTicks counts position scheduler ticks per outcome.
	PositionTicks = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_position_ticks_total",
		Help: "Position scheduler ticks, by outcome.",
	}, []string{"outcome"})

	// ChainFetchFailures counts per-chain fetch failures.
	ChainFetchFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_chain_fetch_failures_total",
		Help: "Chain fetch failures, by chain name and error kind.",
	}, []string{"chain", "kind"})

	// NotificationsSent counts delivered notifications by kind.
	NotificationsSent = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_notifications_sent_total",
		Help: "Notifications delivered, by kind.",
	}, []string{"kind"})

	// NotificationsDropped counts drops by kind and reason (cooldown, unreachable, delivery_failed).
	NotificationsDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_notifications_dropped_total",
		Help: "Notifications dropped, by kind and reason.",
	}, []string{"kind", "reason"})

	// RPCRetries counts retry attempts on the chain-access layer.
	RPCRetries = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_rpc_retries_total",
		Help: "RPC call retry attempts, by chain.",
	}, []string{"chain"})

	// TickDuration observes wall-clock duration of each scheduler tick.
	TickDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitor_tick_duration_seconds",
		Help:    "Scheduler tick duration in seconds, by scheduler.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scheduler"})
)

// NewServeMux builds the /metrics HTTP handler over Registry.
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe blocks serving mux on addr.
func ListenAndServe(addr string, mux *http.ServeMux) error {
	return http.ListenAndServe(addr, mux)
}
