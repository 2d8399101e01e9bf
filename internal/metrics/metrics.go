package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightstat_upstream_requests_total",
		Help: "Upstream AeroAPI requests by endpoint and HTTP status (502 for transport failures).",
	}, []string{"endpoint", "status"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightstat_upstream_request_duration_seconds",
		Help:    "Latency of upstream AeroAPI requests.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"endpoint"})

	UpstreamDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightstat_upstream_degraded_total",
		Help: "Successful upstream responses whose body could not be read as a flight list.",
	}, []string{"endpoint"})

	Lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightstat_lookups_total",
		Help: "Flight lookups by outcome.",
	}, []string{"outcome"})

	FlightsServed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flightstat_lookup_flights",
		Help:    "Number of flights returned per successful lookup.",
		Buckets: []float64{0, 5, 10, 25, 50, 100, 200, 500},
	})

	AuditedLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightstat_audited_lookups_total",
		Help: "Lookup events consumed by the audit worker, by airport and outcome.",
	}, []string{"airport", "outcome"})
)
