// Package metrics exposes dispatcher activity as Prometheus metrics. Values
// are fed from the diagnostic EventBus so the core never imports this package.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aoe2bot/internal/bus"
)

const namespace = "aoe2bot"

// Collector owns a private registry and the bot's metric vectors.
type Collector struct {
	registry *prometheus.Registry
	start    time.Time

	triggers         *prometheus.CounterVec
	suppressed       *prometheus.CounterVec
	replies          *prometheus.CounterVec
	extractionMisses prometheus.Counter
	fetchErrors      *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
}

// NewCollector creates and registers all metrics, including the Go runtime
// and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		start:    time.Now(),
		triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_total",
				Help:      "Trigger events received, by kind (count)",
			},
			[]string{"kind"},
		),
		suppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_suppressed_total",
				Help:      "Trigger events dropped before handling, by reason (count)",
			},
			[]string{"reason"},
		),
		replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replies_total",
				Help:      "Replies composed, by trigger kind (count)",
			},
			[]string{"kind"},
		),
		extractionMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_misses_total",
				Help:      "Passive messages with the trigger keyword but no match id (count)",
			},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Failed upstream fetches, by error kind (count)",
			},
			[]string{"kind"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Upstream fetch duration in seconds, successful or not",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"endpoint"},
		),
	}

	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the collector was created",
		},
		func() float64 { return time.Since(c.start).Seconds() },
	)

	c.registry.MustRegister(
		c.triggers,
		c.suppressed,
		c.replies,
		c.extractionMisses,
		c.fetchErrors,
		c.fetchDuration,
		uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Attach subscribes the collector to every event on eb.
func (c *Collector) Attach(eb *bus.EventBus) string {
	return eb.On("*", c.Observe)
}

// Observe updates metrics from a single diagnostic event.
func (c *Collector) Observe(e bus.Event) {
	switch e.Type {
	case bus.EventTriggerReceived:
		c.triggers.WithLabelValues(e.Attr("kind")).Inc()
	case bus.EventTriggerSuppressed:
		c.suppressed.WithLabelValues(e.Attr("reason")).Inc()
	case bus.EventReplyComposed:
		c.replies.WithLabelValues(e.Attr("kind")).Inc()
	case bus.EventExtractionMissed:
		c.extractionMisses.Inc()
	case bus.EventFetchCompleted:
		c.fetchDuration.WithLabelValues(e.Attr("endpoint")).Observe(e.Duration.Seconds())
	case bus.EventFetchFailed:
		c.fetchErrors.WithLabelValues(e.Attr("kind")).Inc()
		c.fetchDuration.WithLabelValues(e.Attr("endpoint")).Observe(e.Duration.Seconds())
	}
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
