// Package metrics exports the shape of one compilation as Prometheus
// gauges, for CI jobs that track story growth through the node_exporter
// textfile collector.
//
// Every Compile owns a private registry, so several compilations in one
// process never collide.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/graph"
)

const namespace = "goalc"

// Compile holds the gauges of a single compilation.
type Compile struct {
	reg *prometheus.Registry

	// Nodes counts graph nodes. Labels: kind
	Nodes *prometheus.GaugeVec

	// Diagnostics counts reported diagnostics. Labels: level, code
	Diagnostics *prometheus.GaugeVec

	Databases prometheus.Gauge
	Adapters  prometheus.Gauge
	Goals     prometheus.Gauge
	Functions prometheus.Gauge
	Duration  prometheus.Gauge
}

// New creates the gauges and registers them on a fresh registry.
func New() *Compile {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      name,
			Help:      help,
		})
	}
	c := &Compile{
		reg: prometheus.NewRegistry(),
		Nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "nodes",
			Help:      "Graph nodes by kind",
		}, []string{"kind"}),
		Diagnostics: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "diagnostics",
			Help:      "Diagnostics reported by level and code",
		}, []string{"level", "code"}),
		Databases: gauge("databases", "Databases, including join databases"),
		Adapters:  gauge("adapters", "Variable adapters"),
		Goals:     gauge("goals", "Goals"),
		Functions: gauge("functions", "Function records"),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "duration_seconds",
			Help:      "Wall time of the compilation",
		}),
	}
	c.reg.MustRegister(c.Nodes, c.Diagnostics, c.Databases, c.Adapters, c.Goals, c.Functions, c.Duration)
	return c
}

// Observe records a compiled story and its diagnostics. Calling it again
// replaces the previous values.
func (c *Compile) Observe(story *graph.Story, log *diag.Log, elapsed time.Duration) {
	c.Nodes.Reset()
	for kind, n := range story.CountByKind() {
		c.Nodes.WithLabelValues(kind.String()).Set(float64(n))
	}
	c.Databases.Set(float64(len(story.Databases)))
	c.Adapters.Set(float64(len(story.Adapters)))
	c.Goals.Set(float64(len(story.Goals)))
	c.Functions.Set(float64(len(story.Functions)))
	c.Duration.Set(elapsed.Seconds())

	c.Diagnostics.Reset()
	if log == nil {
		return
	}
	for _, d := range log.Entries() {
		c.Diagnostics.WithLabelValues(d.Level.String(), string(d.Code)).Inc()
	}
}

// Registry returns the registry holding the gauges.
func (c *Compile) Registry() *prometheus.Registry {
	return c.reg
}

// WriteTextfile writes the gauges in the text exposition format, replacing
// path atomically.
func (c *Compile) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
