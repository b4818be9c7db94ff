// Package metrics exposes ledger and API metrics in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"debtr/internal/services"
)

const namespace = "debtr"

// SnapshotSource is read at scrape time.
type SnapshotSource interface {
	Snapshot() *services.Snapshot
}

// Metrics owns a private registry so tests and multiple servers never clash
// on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	intents  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "intents_total",
			Help:      "Reminder intents emitted by kind and outcome.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(
		m.requests,
		m.duration,
		m.intents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WatchLedger publishes gauges read from source on every scrape. Call once.
func (m *Metrics) WatchLedger(source SnapshotSource) {
	m.Registry.MustRegister(newLedgerCollector(source))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware counts requests. route names the pattern, not the raw path, so
// item ids don't blow up label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Scheduler wraps a reminder scheduler and counts what passes through it.
func (m *Metrics) Scheduler(next services.Scheduler) services.Scheduler {
	return services.SchedulerFunc(func(ctx context.Context, intent services.Intent) error {
		err := next.ScheduleOrCancel(ctx, intent)
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.intents.WithLabelValues(string(intent.Kind), result).Inc()
		return err
	})
}

// ledgerCollector turns the current snapshot into gauges on every scrape.
type ledgerCollector struct {
	source     SnapshotSource
	amountLeft *prometheus.Desc
	items      *prometheus.Desc
	month      *prometheus.Desc
	degraded   *prometheus.Desc
	version    *prometheus.Desc
}

func newLedgerCollector(source SnapshotSource) *ledgerCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "ledger", name), help, labels, nil)
	}
	return &ledgerCollector{
		source:     source,
		amountLeft: desc("amount_left", "Amount still to pay this month.", "currency"),
		items:      desc("items", "Items by visibility in the current month.", "visible"),
		month:      desc("current_month", "Zero-based month the ledger is in."),
		degraded:   desc("degraded", "1 when the store could not be read on load."),
		version:    desc("version", "Number of published state changes."),
	}
}

func (c *ledgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.amountLeft
	ch <- c.items
	ch <- c.month
	ch <- c.degraded
	ch <- c.version
}

func (c *ledgerCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()
	if !snap.Loaded {
		return
	}
	visible := len(snap.Visible())
	degraded := 0.0
	if snap.Degraded {
		degraded = 1
	}
	ch <- prometheus.MustNewConstMetric(c.amountLeft, prometheus.GaugeValue, snap.AmountLeft.Float64(), string(snap.Currency))
	ch <- prometheus.MustNewConstMetric(c.items, prometheus.GaugeValue, float64(visible), "true")
	ch <- prometheus.MustNewConstMetric(c.items, prometheus.GaugeValue, float64(len(snap.Items)-visible), "false")
	ch <- prometheus.MustNewConstMetric(c.month, prometheus.GaugeValue, float64(snap.CurrMonth))
	ch <- prometheus.MustNewConstMetric(c.degraded, prometheus.GaugeValue, degraded)
	ch <- prometheus.MustNewConstMetric(c.version, prometheus.CounterValue, float64(snap.Version))
}
