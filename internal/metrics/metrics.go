// Package metrics exposes the prometheus counters and summaries that back
// the LLM Router's provider performance tracking (spec.md §4.C) and the
// Safety Gatekeeper's decision audit trail (§4.A). Grounded on vjache-cie's
// use of github.com/prometheus/client_golang to instrument a code
// intelligence pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GatekeeperDecisions counts every FileChange decision the Gatekeeper
	// renders, labeled by decision ("Approved"|"NeedsApproval"|"Rejected")
	// and reason (empty for approvals).
	GatekeeperDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autodev",
		Subsystem: "gatekeeper",
		Name:      "decisions_total",
		Help:      "Count of Gatekeeper decisions by outcome and reason.",
	}, []string{"decision", "reason"})

	// ProviderCalls counts router-dispatched provider invocations by
	// provider name and outcome.
	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autodev",
		Subsystem: "router",
		Name:      "provider_calls_total",
		Help:      "Count of LLM provider invocations by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ProviderLatency tracks per-provider latency with quantile
	// objectives so p50/p95/p99 can be read directly, per spec.md §4.C.
	ProviderLatency = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  "autodev",
		Subsystem:  "router",
		Name:       "provider_latency_seconds",
		Help:       "Provider call latency in seconds.",
		Objectives: map[float64]float64{0.5: 0.05, 0.95: 0.01, 0.99: 0.001},
	}, []string{"provider"})

	// CacheHits / CacheMisses track the router's fingerprint cache.
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autodev", Subsystem: "router", Name: "cache_hits_total",
		Help: "Count of Router cache hits.",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autodev", Subsystem: "router", Name: "cache_misses_total",
		Help: "Count of Router cache misses.",
	})

	// IncrementOutcomes counts Incremental Executor attempt terminal
	// results by outcome (Success|Rejected|NeedsApproval|CompileFail|TestFail|
	// ValidationFail|ProviderFail).
	IncrementOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autodev",
		Subsystem: "executor",
		Name:      "increment_outcomes_total",
		Help:      "Count of increment attempt terminal outcomes.",
	}, []string{"outcome"})

	// ChangesWrittenToday gauges the orchestrator's daily change counter,
	// reset at local midnight.
	ChangesWrittenToday = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "autodev",
		Subsystem: "orchestrator",
		Name:      "changes_written_today",
		Help:      "Number of orchestrator-approved changes written so far today.",
	})
)

// Registry is the process-wide collector registry. Callers that expose a
// /metrics endpoint register this; CLI-only invocations may ignore it.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		GatekeeperDecisions,
		ProviderCalls,
		ProviderLatency,
		CacheHits,
		CacheMisses,
		IncrementOutcomes,
		ChangesWrittenToday,
	)
}
