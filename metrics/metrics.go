// Package metrics exports the debug counters of a metal runtime to
// Prometheus.
package metrics

import (
	"github.com/delaneyj/metal/metal"
	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the counters collector.
type Config struct {
	// Namespace is the metrics namespace (default: "metal").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "metal",
	}
}

// Collector reads the runtime counters on every scrape. The runtime is not
// safe for concurrent use, so scrape only while it is idle or from the
// goroutine driving it.
type Collector struct {
	rt    *metal.Runtime
	descs []*prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(rt *metal.Runtime, opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	fields := metal.Counters{}.Fields()
	c := &Collector{
		rt:    rt,
		descs: make([]*prometheus.Desc, len(fields)),
	}
	for i, f := range fields {
		c.descs[i] = prometheus.NewDesc(
			prometheus.BuildFQName(cfg.Namespace, cfg.Subsystem, f.Name+"_total"),
			f.Help,
			nil,
			cfg.ConstLabels,
		)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for i, f := range c.rt.Counters().Fields() {
		ch <- prometheus.MustNewConstMetric(c.descs[i], prometheus.CounterValue, float64(f.Value))
	}
}

// Register adds a collector for rt to reg.
func Register(reg prometheus.Registerer, rt *metal.Runtime, opts ...Option) (*Collector, error) {
	c := NewCollector(rt, opts...)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
