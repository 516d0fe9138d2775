// Package metrics exposes engine lifecycle events as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for glacier_invocations_total.
const (
	OutcomeCommitted   = "committed"
	OutcomeTruncated   = "truncated"
	OutcomeFailed      = "failed"
	OutcomeUncommitted = "uncommitted"
)

// Collector records lifecycle events.
type Collector struct {
	registry *prometheus.Registry

	invocations  *prometheus.CounterVec
	statuses     *prometheus.CounterVec
	iterations   prometheus.Histogram
	duration     prometheus.Histogram
	abandoned    prometheus.Counter
	rejections   prometheus.Counter
	diagnostics  *prometheus.CounterVec
	initDuration prometheus.Gauge
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glacier_invocations_total",
			Help: "Invocations handled, by outcome.",
		}, []string{"outcome"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glacier_responses_total",
			Help: "Committed responses, by status code.",
		}, []string{"status"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glacier_loop_iterations",
			Help:    "Scheduler iterations per invocation.",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 35, 50},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glacier_invocation_duration_seconds",
			Help:    "Wall-clock duration of an invocation.",
			Buckets: prometheus.DefBuckets,
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glacier_abandoned_tasks_total",
			Help: "Deferred tasks discarded when an invocation ended.",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glacier_unhandled_rejections_total",
			Help: "Promise rejections left unhandled.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glacier_diagnostics_total",
			Help: "Diagnostics written to the error channel, by kind.",
		}, []string{"kind"}),
		initDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glacier_init_duration_seconds",
			Help: "Time spent in the initialization phase.",
		}),
	}
	c.registry.MustRegister(
		c.invocations, c.statuses, c.iterations, c.duration,
		c.abandoned, c.rejections, c.diagnostics, c.initDuration,
	)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks feeding the collector.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnInitialized:   c.initialized,
		OnInvocationEnd: c.invocationEnd,
		OnDiagnostic:    c.diagnostic,
	}
}

func (c *Collector) initialized(_ context.Context, e *domain.InitEvent) {
	c.initDuration.Set(e.Duration.Seconds())
	c.rejections.Add(float64(e.Rejections))
}

func (c *Collector) invocationEnd(_ context.Context, e *domain.InvocationEvent) {
	c.invocations.WithLabelValues(outcome(e)).Inc()
	if e.Status != domain.StatusUnset {
		c.statuses.WithLabelValues(strconv.Itoa(e.Status)).Inc()
	}
	c.iterations.Observe(float64(e.Iterations))
	c.duration.Observe(e.Duration.Seconds())
	c.abandoned.Add(float64(e.AbandonedTasks))
	c.rejections.Add(float64(e.Rejections))
}

func (c *Collector) diagnostic(_ context.Context, e *domain.DiagnosticEvent) {
	c.diagnostics.WithLabelValues(string(e.Diagnostic.Kind)).Inc()
}

func outcome(e *domain.InvocationEvent) string {
	switch {
	case e.Err != nil:
		return OutcomeFailed
	case e.Truncated:
		return OutcomeTruncated
	case e.Status == domain.StatusUnset:
		return OutcomeUncommitted
	default:
		return OutcomeCommitted
	}
}
