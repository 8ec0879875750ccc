package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency across all routes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "autoseo",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// GateDeniedTotal counts quota-gate denials by reason.
var GateDeniedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoseo",
		Subsystem: "billing",
		Name:      "gate_denied_total",
		Help:      "Total number of gate denials by reason.",
	},
	[]string{"reason"},
)

// CycleRolloverTotal counts billing-cycle rollovers.
var CycleRolloverTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autoseo",
		Subsystem: "billing",
		Name:      "cycle_rollover_total",
		Help:      "Total number of billing cycles rolled over.",
	},
)

// AuditsStartedTotal counts audit tasks that passed the orchestrator's
// re-gate and began crawling.
var AuditsStartedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autoseo",
		Subsystem: "audit",
		Name:      "started_total",
		Help:      "Total number of audits started by the orchestrator.",
	},
)

// AuditsCompletedTotal counts audits by terminal outcome (completed/failed).
var AuditsCompletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoseo",
		Subsystem: "audit",
		Name:      "completed_total",
		Help:      "Total number of audits finished by outcome.",
	},
	[]string{"outcome"},
)

// CrawlerPagesFetchedTotal counts pages fetched by the crawler.
var CrawlerPagesFetchedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autoseo",
		Subsystem: "crawler",
		Name:      "pages_fetched_total",
		Help:      "Total number of pages successfully fetched and parsed.",
	},
)

// All returns all AutoSEO-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		GateDeniedTotal,
		CycleRolloverTotal,
		AuditsStartedTotal,
		AuditsCompletedTotal,
		CrawlerPagesFetchedTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
