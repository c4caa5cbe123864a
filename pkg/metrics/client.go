package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics tracks outbound request attempts made by the dashboard request client.
type ClientMetrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		return &ClientMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "client_request_attempts_total",
		Help: "Outbound request attempts, including retries.",
	}, []string{"method", "operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "client_request_retries_total",
		Help: "Outbound request retries scheduled after a retryable failure.",
	}, []string{"method", "operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "client_request_failures_total",
		Help: "Outbound requests that failed after exhausting the retry policy.",
	}, []string{"operation", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "client_request_duration_seconds",
		Help:    "End-to-end outbound request duration, including backoff.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(attempts, retries, failures, duration)
	return &ClientMetrics{
		attempts: attempts,
		retries:  retries,
		failures: failures,
		duration: duration,
	}
}

func (c *ClientMetrics) IncAttempt(method, operation string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(method, normalizeLabel(operation)).Inc()
}

func (c *ClientMetrics) IncRetry(method, operation string) {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.WithLabelValues(method, normalizeLabel(operation)).Inc()
}

func (c *ClientMetrics) IncFailure(operation, code string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

func (c *ClientMetrics) ObserveDuration(operation string, elapsed time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(operation)).Observe(elapsed.Seconds())
}
