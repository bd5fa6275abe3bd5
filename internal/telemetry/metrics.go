/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecognitionAttemptsTotal counts recognition attempts by outcome.
	RecognitionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muninn_recognition_attempts_total",
		Help: "Recognition attempts by outcome (identified, no_match, transient_failure, parse_failure, capture_error).",
	}, []string{"outcome"})

	// RecognitionBackoffSeconds exposes the scheduler's current backoff.
	RecognitionBackoffSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "muninn_recognition_backoff_seconds",
		Help: "Current recognition failure backoff in seconds.",
	})

	// RecognitionInFlight is 1 while a capture/normalize/upload chain is active.
	RecognitionInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "muninn_recognition_in_flight",
		Help: "Whether a recognition attempt is currently in flight.",
	})

	// SnippetCaptureBytesTotal counts raw bytes captured from the stream.
	SnippetCaptureBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muninn_snippet_capture_bytes_total",
		Help: "Raw audio bytes captured from the watched stream.",
	})

	// SnippetCaptureDuration observes wall time spent capturing a snippet.
	SnippetCaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "muninn_snippet_capture_duration_seconds",
		Help:    "Wall time spent capturing one snippet.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 7),
	})

	// NowPlayingChangesTotal counts applied authoritative changes by source.
	NowPlayingChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muninn_nowplaying_changes_total",
		Help: "Authoritative now-playing changes applied, by source.",
	}, []string{"source"})

	// ArbitrationDropsTotal counts candidates dropped by the arbitrator.
	ArbitrationDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muninn_arbitration_drops_total",
		Help: "Metadata candidates dropped during arbitration, by rule.",
	}, []string{"rule"})

	// APIRequestsTotal counts HTTP API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muninn_api_requests_total",
		Help: "HTTP API requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes API request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "muninn_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight API requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "muninn_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
