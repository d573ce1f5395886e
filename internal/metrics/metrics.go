// Package metrics owns the Prometheus collectors shared by the binaries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a private registry plus the collectors the app records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	remindersDispatched *prometheus.CounterVec
	calendarFailures    *prometheus.CounterVec
	scanDuration        prometheus.Histogram
	cacheLookups        *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usaha_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usaha_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		remindersDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usaha_reminders_dispatched_total",
				Help: "Reminder events handed to a sink, by outcome",
			},
			[]string{"outcome"},
		),
		calendarFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usaha_calendar_sync_failures_total",
				Help: "Failed calls to the external calendar",
			},
			[]string{"operation"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "usaha_reminder_scan_duration_seconds",
				Help:    "Duration of one reminder scan over every owner",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usaha_cache_lookups_total",
				Help: "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.remindersDispatched, m.calendarFailures, m.scanDuration, m.cacheLookups)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// NewServer exposes the registry at GET /metrics on addr, for processes
// without an HTTP API of their own.
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ReminderDispatched(outcome string) {
	if m == nil {
		return
	}
	m.remindersDispatched.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CalendarFailure(op string) {
	if m == nil {
		return
	}
	m.calendarFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCache(name string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(name, result).Inc()
}
