package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/sidu-provider/portal-api/internal/domain"
)

// Metrics holds all Prometheus metrics for the portal API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	requestsTotal      *prometheus.CounterVec
	dashboardFallbacks prometheus.Counter
	documentsUploaded  prometheus.Counter
	eventsConsumed     *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		dashboardFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_dashboard_fallbacks_total",
				Help: "Dashboard responses served from placeholder data.",
			},
		),
		documentsUploaded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_documents_uploaded_total",
				Help: "Documents accepted for upload.",
			},
		),
		eventsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_events_consumed_total",
				Help: "External events consumed by queue.",
			},
			[]string{"queue"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_active_sessions",
				Help: "Sessions currently tracked as authenticated.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrDashboardFallback counts a dashboard served from placeholder data.
func (m *Metrics) IncrDashboardFallback() {
	m.dashboardFallbacks.Inc()
}

// IncrDocumentUploaded counts an accepted document upload.
func (m *Metrics) IncrDocumentUploaded() {
	m.documentsUploaded.Inc()
}

// IncrEventConsumed counts one consumed message from the named queue.
func (m *Metrics) IncrEventConsumed(queue string) {
	m.eventsConsumed.WithLabelValues(queue).Inc()
}

// SetActiveSessions updates the authenticated-session gauge. Fed by the
// session tracker on every state change.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Snapshot returns current counter values for the ops summary endpoint.
// Prometheus counters are cumulative, so all rates are all-time. Requests
// are labelled by status class ("2xx".."5xx"); 5xx counts as an error.
func (m *Metrics) Snapshot() *domain.PortalMetrics {
	totalRequests := float64(0)
	for _, class := range []string{"1xx", "2xx", "3xx", "4xx", "5xx"} {
		totalRequests += getCounterValue(m.requestsTotal, class)
	}
	errorCount := getCounterValue(m.requestsTotal, "5xx")
	cacheHits := getCounterValue(m.cacheHits, "token")
	cacheMisses := getCounterValue(m.cacheMisses, "token")

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.PortalMetrics{
		TotalRequests:      int64(totalRequests),
		ErrorRate:          errorRate,
		TokenCacheHitRate:  cacheHitRate,
		DashboardFallbacks: int64(getPlainCounterValue(m.dashboardFallbacks)),
		DocumentsUploaded:  int64(getPlainCounterValue(m.documentsUploaded)),
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
