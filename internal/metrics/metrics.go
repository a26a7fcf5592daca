// Package metrics holds the Prometheus collectors for the fee planner.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feeplanner"

var (
	rpcAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "attempts_total",
		Help:      "JSON-RPC attempts by method and outcome (ok, retry, failed).",
	}, []string{"method", "outcome"})

	rpcDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Duration of JSON-RPC calls including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	rpcFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "fallback_total",
		Help:      "Fallback API reads by outcome.",
	}, []string{"outcome"})

	oracleQuotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "quotes_total",
		Help:      "Oracle quotes by oracle, source and whether a fallback was used.",
	}, []string{"oracle", "source", "fallback"})

	oracleProviderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "provider_errors_total",
		Help:      "Failed provider fetches by oracle and provider.",
	}, []string{"oracle", "provider"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by backend and result (hit, miss, error).",
	}, []string{"backend", "result"})

	utxoDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "utxo",
		Name:      "dropped_total",
		Help:      "UTXOs dropped from list results after a resolution failure.",
	})
)

func init() {
	prometheus.MustRegister(
		rpcAttempts,
		rpcDuration,
		rpcFallbacks,
		oracleQuotes,
		oracleProviderErrors,
		cacheLookups,
		utxoDropped,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RPCAttempt counts one JSON-RPC attempt.
func RPCAttempt(method, outcome string) {
	rpcAttempts.WithLabelValues(method, outcome).Inc()
}

// ObserveRPC records the duration of a call started at start.
func ObserveRPC(method string, start time.Time) {
	rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// RPCFallback counts one fallback read.
func RPCFallback(ok bool) {
	rpcFallbacks.WithLabelValues(outcome(ok)).Inc()
}

// OracleQuote counts one quote served by an oracle.
func OracleQuote(oracle, source string, fallback bool) {
	f := "false"
	if fallback {
		f = "true"
	}
	oracleQuotes.WithLabelValues(oracle, source, f).Inc()
}

// OracleProviderError counts one failed provider fetch.
func OracleProviderError(oracle, provider string) {
	oracleProviderErrors.WithLabelValues(oracle, provider).Inc()
}

// CacheLookup counts one cache lookup.
func CacheLookup(backend, result string) {
	cacheLookups.WithLabelValues(backend, result).Inc()
}

// UTXODropped counts one UTXO dropped from a list result.
func UTXODropped() {
	utxoDropped.Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
