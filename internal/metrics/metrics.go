// Package metrics exposes Prometheus counters for mirrored writes, history
// retention and scheduled jobs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plugmirror"

// Collector implements engine.Recorder on a private registry.
//
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	writes         *prometheus.CounterVec
	historyDeleted *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobRuns        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

// New creates a Collector with its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Durable-store writes by operation and result (ok, error, skipped).",
		}, []string{"op", "result"}),
		historyDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_deleted_total",
			Help:      "History records deleted by retention, by device.",
		}, []string{"device"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Histogram of scheduled job durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Completed scheduled job runs.",
		}, []string{"job"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
	}

	c.registry.MustRegister(
		c.writes,
		c.historyDeleted,
		c.jobDuration,
		c.jobRuns,
		c.httpRequests,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveWrite counts one durable write attempt.
func (c *Collector) ObserveWrite(op, result string) {
	if c == nil {
		return
	}
	c.writes.WithLabelValues(op, result).Inc()
}

// ObserveHistoryDeleted counts history records removed for a device.
func (c *Collector) ObserveHistoryDeleted(deviceID string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.historyDeleted.WithLabelValues(deviceID).Add(float64(n))
}

// ObserveJob records one finished scheduled job run.
func (c *Collector) ObserveJob(job string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobRuns.WithLabelValues(job).Inc()
	c.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests served by next under the given route label.
func (c *Collector) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if c != nil {
			c.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}
