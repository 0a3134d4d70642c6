// Package metrics exposes Prometheus collectors for tree builds and
// definition reloads.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/kitbash/internal/compiler"
	"github.com/roach88/kitbash/internal/tree"
)

const namespace = "kitbash"

// Collector records build and registry activity on its own registry.
// It implements tree.BuildObserver.
type Collector struct {
	registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	contributions *prometheus.CounterVec
	incomplete    prometheus.Counter
	treeNodes     prometheus.Histogram

	reloads     prometheus.Counter
	definitions *prometheus.GaugeVec
	skipped     prometheus.Gauge
}

// New creates a collector with every metric registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tree",
				Name:      "builds_total",
				Help:      "Tree builds by result; failed builds carry their error code.",
			},
			[]string{"result"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tree",
				Name:      "build_duration_seconds",
				Help:      "Duration of tree builds.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
			},
		),
		contributions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tree",
				Name:      "contributions_total",
				Help:      "Stat contributions considered during builds, by whether their rule passed.",
			},
			[]string{"applied"},
		),
		incomplete: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tree",
				Name:      "incomplete_builds_total",
				Help:      "Successful builds that left a required slot empty.",
			},
		),
		treeNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tree",
				Name:      "nodes",
				Help:      "Number of nodes per built tree.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
		),

		reloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "reloads_total",
				Help:      "Successful definition loads.",
			},
		),
		definitions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "definitions",
				Help:      "Definitions in the current library, by kind.",
			},
			[]string{"kind"},
		),
		skipped: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "skipped_definitions",
				Help:      "Definitions left out of the current library.",
			},
		),
	}

	c.registry.MustRegister(
		c.builds,
		c.buildDuration,
		c.contributions,
		c.incomplete,
		c.treeNodes,
		c.reloads,
		c.definitions,
		c.skipped,
	)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// BuildFinished implements tree.BuildObserver.
func (c *Collector) BuildFinished(r tree.BuildReport) {
	if r.Err != nil {
		result := "error"
		if code, ok := tree.CodeOf(r.Err); ok {
			result = string(code)
		}
		c.builds.WithLabelValues(result).Inc()
		return
	}

	c.builds.WithLabelValues("ok").Inc()
	c.buildDuration.Observe(r.Duration.Seconds())
	c.treeNodes.Observe(float64(r.Nodes))

	applied := r.Applied()
	c.contributions.WithLabelValues("true").Add(float64(applied))
	c.contributions.WithLabelValues("false").Add(float64(len(r.Steps) - applied))
	if !r.Complete {
		c.incomplete.Inc()
	}
}

// Reloaded has the signature of registry.ReloadFunc.
func (c *Collector) Reloaded(lib *compiler.Library, skipped []error) {
	c.reloads.Inc()
	c.definitions.WithLabelValues("stat").Set(float64(lib.Stats.Len()))
	c.definitions.WithLabelValues("component").Set(float64(lib.Components.Len()))
	c.skipped.Set(float64(len(skipped)))
}

// WriteText writes every metric in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
