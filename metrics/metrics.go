// Package metrics exposes pool, registry and migration activity as
// Prometheus metrics. A Collector plugs into registries and the migration
// manager as their observer and owns a private Prometheus registry, so
// several collectors can coexist in one process.
package metrics

import (
	"net/http"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/migration"
	"github.com/AlexsanderHamir/entitypool/pool"
	"github.com/AlexsanderHamir/entitypool/registry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultNamespace = "entitypool"

	subsystemPool      = "pool"
	subsystemRegistry  = "registry"
	subsystemMigration = "migration"
)

// Collector records entity pool metrics.
type Collector struct {
	registry *prometheus.Registry

	acquisitions *prometheus.CounterVec
	releases     *prometheus.CounterVec

	poolSize      *prometheus.GaugeVec
	poolActive    *prometheus.GaugeVec
	poolAvailable *prometheus.GaugeVec
	poolCreated   *prometheus.GaugeVec
	poolHitRate   *prometheus.GaugeVec

	routed        *prometheus.CounterVec
	compatibility *prometheus.CounterVec
	comparisons   *prometheus.HistogramVec
	improvement   prometheus.Gauge
}

var (
	_ registry.Observer  = (*Collector)(nil)
	_ migration.Observer = (*Collector)(nil)
)

// NewCollector registers every metric under namespace on a fresh registry.
// An empty namespace uses DefaultNamespace. Go runtime and process
// collectors are registered too when withRuntime is set.
func NewCollector(namespace string, withRuntime bool) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		acquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemRegistry,
				Name:      "acquisitions_total",
				Help:      "Acquisitions by registry, entity type and fallback level",
			},
			[]string{"registry", "type", "kind"},
		),
		releases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemRegistry,
				Name:      "releases_total",
				Help:      "Releases by registry, entity type and outcome",
			},
			[]string{"registry", "type", "result"},
		),

		poolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemPool,
				Name:      "size",
				Help:      "Instances tracked by the pool",
			},
			[]string{"registry", "type"},
		),
		poolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemPool,
				Name:      "active",
				Help:      "Instances currently handed out",
			},
			[]string{"registry", "type"},
		),
		poolAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemPool,
				Name:      "available",
				Help:      "Instances ready for reuse",
			},
			[]string{"registry", "type"},
		),
		poolCreated: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemPool,
				Name:      "created",
				Help:      "Instances created since the pool was last cleared",
			},
			[]string{"registry", "type"},
		),
		poolHitRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemPool,
				Name:      "hit_rate",
				Help:      "Fraction of acquisitions served by reuse",
			},
			[]string{"registry", "type"},
		),

		routed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemMigration,
				Name:      "routed_calls_total",
				Help:      "Calls routed to each implementation",
			},
			[]string{"implementation"},
		),
		compatibility: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemMigration,
				Name:      "compatibility_checks_total",
				Help:      "Paired compatibility probes by outcome",
			},
			[]string{"result"},
		),
		comparisons: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemMigration,
				Name:      "comparison_duration_seconds",
				Help:      "Timed performance comparison runs per implementation",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"operation", "implementation"},
		),
		improvement: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemMigration,
				Name:      "last_improvement_percent",
				Help:      "Improvement of simplified over original in the latest comparison",
			},
		),
	}
}

// Registry returns the Prometheus registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) OnAcquire(reg string, t entity.TypeKey, kind registry.Kind) {
	c.acquisitions.WithLabelValues(reg, t.String(), kind.String()).Inc()
}

func (c *Collector) OnRelease(reg string, t entity.TypeKey, ok bool) {
	c.releases.WithLabelValues(reg, t.String(), result(ok)).Inc()
}

func (c *Collector) OnRouted(impl string) {
	c.routed.WithLabelValues(impl).Inc()
}

func (c *Collector) OnCompatibilityCheck(passed bool) {
	c.compatibility.WithLabelValues(result(passed)).Inc()
}

func (c *Collector) OnPerformanceComparison(r migration.PerformanceResult) {
	c.comparisons.WithLabelValues(r.OperationType, registry.OriginalName).Observe(r.OriginalTime.Seconds())
	c.comparisons.WithLabelValues(r.OperationType, registry.SimplifiedName).Observe(r.SimplifiedTime.Seconds())
	c.improvement.Set(r.ImprovementPercentage)
}

// ObservePools publishes a statistics snapshot of one registry's pools.
func (c *Collector) ObservePools(reg string, stats []pool.Statistics) {
	for _, s := range stats {
		t := s.Type.String()
		c.poolSize.WithLabelValues(reg, t).Set(float64(s.PoolSize))
		c.poolActive.WithLabelValues(reg, t).Set(float64(s.CurrentActive))
		c.poolAvailable.WithLabelValues(reg, t).Set(float64(s.CurrentAvailable))
		c.poolCreated.WithLabelValues(reg, t).Set(float64(s.TotalCreated))
		c.poolHitRate.WithLabelValues(reg, t).Set(s.HitRate)
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
