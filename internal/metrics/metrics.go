// Package metrics registers the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debridstream_provider_searches_total",
		Help: "Provider searches by outcome (ok, error, timeout, panic).",
	}, []string{"provider", "outcome"})

	SearchCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debridstream_search_cache_total",
		Help: "Search cache lookups by result (hit, miss).",
	}, []string{"result"})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debridstream_resolutions_total",
		Help: "Resolution pipeline outcomes by status.",
	}, []string{"status"})

	TranscodeSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debridstream_transcode_sessions_total",
		Help: "Transcode session transitions by status.",
	}, []string{"status"})

	ProxyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debridstream_proxy_errors_total",
		Help: "Streaming proxy failures by error kind.",
	}, []string{"kind"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "debridstream_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
