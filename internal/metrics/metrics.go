// Package metrics holds the Prometheus collectors of the service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socialagent"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	ideasGenerated  prometheus.Counter
	complianceTotal *prometheus.CounterVec
	trendsStored    prometheus.Counter
	publishTotal    *prometheus.CounterVec
	snapshotsTotal  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	serviceInfo     *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New(version string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Workflow invocations by result",
	}, []string{"result"})

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_run_duration_seconds",
		Help:      "Workflow invocation duration in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	m.ideasGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ideas_generated_total",
		Help:      "Content ideas generated",
	})

	m.complianceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compliance_checks_total",
		Help:      "Platform content checked for banned terms",
	}, []string{"platform", "status"})

	m.trendsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trends_stored_total",
		Help:      "Trend records written by refreshes",
	})

	m.publishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_attempts_total",
		Help:      "Publish attempts by platform and result",
	}, []string{"platform", "result"})

	m.snapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "metrics_snapshots_total",
		Help:      "Post metrics snapshots by platform and result",
	}, []string{"platform", "result"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.serviceInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "service_info",
		Help:      "Service information",
	}, []string{"version"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal, m.runDuration, m.ideasGenerated, m.complianceTotal,
		m.trendsStored, m.publishTotal, m.snapshotsTotal, m.httpRequests, m.httpDuration, m.serviceInfo,
	)
	m.serviceInfo.WithLabelValues(version).Set(1)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one workflow invocation.
func (m *Metrics) ObserveRun(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
}

// AddIdeas counts generated ideas.
func (m *Metrics) AddIdeas(n int) {
	if m == nil {
		return
	}
	m.ideasGenerated.Add(float64(n))
}

// AddCompliance counts compliance outcomes for a platform.
func (m *Metrics) AddCompliance(platform string, passed, failed int) {
	if m == nil {
		return
	}
	m.complianceTotal.WithLabelValues(platform, "passed").Add(float64(passed))
	m.complianceTotal.WithLabelValues(platform, "failed").Add(float64(failed))
}

// AddTrends counts stored trend records.
func (m *Metrics) AddTrends(n int) {
	if m == nil {
		return
	}
	m.trendsStored.Add(float64(n))
}

// ObservePublish records one publish attempt.
func (m *Metrics) ObservePublish(platform string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.publishTotal.WithLabelValues(platform, result).Inc()
}

// ObserveSnapshot records one metrics pull for a published post.
func (m *Metrics) ObserveSnapshot(platform string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.snapshotsTotal.WithLabelValues(platform, result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
