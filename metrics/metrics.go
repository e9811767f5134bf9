// Package metrics exposes Prometheus collectors for deployments, supervised
// processes, log analysis and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "launchpad"

// Analysis paths
const (
	AnalysisPathPattern   = "pattern"
	AnalysisPathInference = "inference"
	AnalysisPathFallback  = "fallback"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics owns a private registry. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	submitted       *prometheus.CounterVec
	finished        *prometheus.CounterVec
	processExits    *prometheus.CounterVec
	analysis        *prometheus.CounterVec
	buildsRemoved   *prometheus.CounterVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_submitted_total",
			Help:      "Number of deployments submitted",
		}, []string{"platform"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_finished_total",
			Help:      "Number of deployments that reached a terminal status",
		}, []string{"platform", "status"}),
		processExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Supervised process exits by command and result",
		}, []string{"command", "result"}),
		analysis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Log analyses by the path that produced the diagnosis",
		}, []string{"path"}),
		buildsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_dirs_removed_total",
			Help:      "Build directories reclaimed by the sweeper",
		}, []string{"reason"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submitted,
		m.finished,
		m.processExits,
		m.analysis,
		m.buildsRemoved,
		m.requestTotal,
		m.requestDuration,
	)

	return m
}

// Registry returns the registry all collectors are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) DeploymentSubmitted(platform string) {
	if m == nil {
		return
	}
	m.submitted.With(prometheus.Labels{"platform": platform}).Inc()
}

func (m *Metrics) DeploymentFinished(platform, status string) {
	if m == nil {
		return
	}
	m.finished.With(prometheus.Labels{"platform": platform, "status": status}).Inc()
}

// ObserveExit records a supervised process exit as success, failure or error
func (m *Metrics) ObserveExit(command string, code int, err error) {
	if m == nil {
		return
	}
	result := "success"
	switch {
	case err != nil:
		result = "error"
	case code != 0:
		result = "failure"
	}
	m.processExits.With(prometheus.Labels{"command": command, "result": result}).Inc()
}

func (m *Metrics) AnalysisCompleted(path string) {
	if m == nil {
		return
	}
	m.analysis.With(prometheus.Labels{"path": path}).Inc()
}

// BuildDirRemoved counts a reclaimed build directory; reason is orphaned or expired
func (m *Metrics) BuildDirRemoved(reason string) {
	if m == nil {
		return
	}
	m.buildsRemoved.With(prometheus.Labels{"reason": reason}).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(duration.Seconds())
}
