package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchrelay_requests_total",
		Help: "Gateway requests by operation and outcome.",
	}, []string{"op", "outcome"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchrelay_request_seconds",
		Help:    "Gateway request latency by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	resultsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchrelay_results_returned",
		Help:    "Result count per search request.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"op"})
)
