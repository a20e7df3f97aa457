package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec

	// Engagement metrics
	InteractionsTotal      *prometheus.CounterVec
	AnomaliesRejectedTotal prometheus.Counter
	ImpressionsFlushed     *prometheus.CounterVec
	ViewsRegisteredTotal   *prometheus.CounterVec

	// OTP metrics
	OTPVerificationsTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics once per process.
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Response cache hits by cache name",
				},
				[]string{"cache"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Response cache misses by cache name",
				},
				[]string{"cache"},
			),
			CacheInvalidationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_invalidations_total",
					Help: "Cache entries evicted by tag invalidation",
				},
				[]string{"tag_kind"},
			),
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by the rate limiter",
				},
				[]string{"path"},
			),
			InteractionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "blog_interactions_total",
					Help: "Interactions written to the interaction log",
				},
				[]string{"type"},
			),
			AnomaliesRejectedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "blog_interaction_anomalies_total",
					Help: "Interactions rejected by the anomaly guard",
				},
			),
			ImpressionsFlushed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "blog_impressions_flushed_total",
					Help: "Impressions moved from the counter store into analytics rows",
				},
				[]string{"target"},
			),
			ViewsRegisteredTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "blog_views_registered_total",
					Help: "Unique views registered",
				},
				[]string{"target"},
			),
			OTPVerificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "otp_verifications_total",
					Help: "OTP verification attempts by result",
				},
				[]string{"result"},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Errors answered by handlers, by code",
				},
				[]string{"code"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it on first use.
func Get() *Metrics {
	return Initialize()
}

func RecordCacheHit(cacheName string) {
	Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

func RecordCacheMiss(cacheName string) {
	Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

func RecordCacheInvalidation(tagKind string, count int64) {
	Get().CacheInvalidationsTotal.WithLabelValues(tagKind).Add(float64(count))
}

func RecordRateLimitExceeded(path string) {
	Get().RateLimitExceededTotal.WithLabelValues(path).Inc()
}

func RecordInteraction(interactionType string) {
	Get().InteractionsTotal.WithLabelValues(interactionType).Inc()
}

func RecordAnomalyRejected() {
	Get().AnomaliesRejectedTotal.Inc()
}

func RecordImpressionsFlushed(target string, count int64) {
	Get().ImpressionsFlushed.WithLabelValues(target).Add(float64(count))
}

func RecordViewRegistered(target string) {
	Get().ViewsRegisteredTotal.WithLabelValues(target).Inc()
}

func RecordOTPVerification(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	Get().OTPVerificationsTotal.WithLabelValues(result).Inc()
}

func RecordError(code string) {
	Get().ErrorsTotal.WithLabelValues(code).Inc()
}
