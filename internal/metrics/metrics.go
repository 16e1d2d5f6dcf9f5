// Package metrics exposes Prometheus collectors for the news pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	articlesTotal              *prometheus.CounterVec
	enrichmentCallsTotal       *prometheus.CounterVec
	rateLimitWaitSeconds       prometheus.Histogram
	hostDelaySeconds           *prometheus.HistogramVec
	imagesTotal                *prometheus.CounterVec
	fetchTotal                 *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspipe_articles_total",
				Help: "Total number of articles processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		enrichmentCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspipe_enrichment_calls_total",
				Help: "Total number of model calls, labeled by operation and result.",
			},
			[]string{"operation", "result"},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "newspipe_ratelimit_wait_seconds",
				Help:    "Histogram of time spent waiting for the enrichment rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
		)

		hostDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newspipe_host_delay_seconds",
				Help:    "Histogram of per-host politeness delays.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		imagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspipe_images_total",
				Help: "Total number of image resolutions, labeled by result.",
			},
			[]string{"result"},
		)

		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspipe_fetch_total",
				Help: "Total number of page fetches, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveArticle counts a finished article by outcome ("persisted" or a drop reason).
func ObserveArticle(outcome string) {
	Init()
	articlesTotal.WithLabelValues(outcome).Inc()
}

// ObserveEnrichmentCall counts a single model call attempt.
func ObserveEnrichmentCall(operation, result string) {
	Init()
	enrichmentCallsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveRateLimitWait records how long the enrichment limiter blocked.
func ObserveRateLimitWait(d time.Duration) {
	Init()
	rateLimitWaitSeconds.Observe(d.Seconds())
}

// ObserveHostDelay records a per-host politeness wait.
func ObserveHostDelay(rawURL string, d time.Duration) {
	Init()
	hostDelaySeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(d.Seconds())
}

// ObserveImage counts an image resolution result.
func ObserveImage(result string) {
	Init()
	imagesTotal.WithLabelValues(result).Inc()
}

// ObserveFetch counts a page fetch. status is the HTTP status code, or 0 for
// transport errors.
func ObserveFetch(kind string, status int) {
	Init()
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	fetchTotal.WithLabelValues(kind, label).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
