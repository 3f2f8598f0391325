// Package prom adapts memcache.Metrics and store.Metrics to Prometheus
// collectors, so both tiers of the cache can be scraped from the same
// registry.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/twotier/kvcache/memcache"
	"github.com/twotier/kvcache/store"
)

// Adapter implements both memcache.Metrics and store.Metrics and exports
// Prometheus counters/gauges for them. Safe for concurrent use; all
// Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge

	dbOps      *prometheus.CounterVec
	dbErrors   *prometheus.CounterVec
	itemCount  prometheus.Gauge
	itemBytes  prometheus.Gauge
	trashDrain prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		sizeCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_cost",
			Help:        "Total resident cost",
			ConstLabels: constLabels,
		}),
		dbOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "store_ops_total",
				Help:        "KVStorage operations by kind",
				ConstLabels: constLabels,
			},
			[]string{"op"},
		),
		dbErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "store_errors_total",
				Help:        "KVStorage operation failures by kind",
				ConstLabels: constLabels,
			},
			[]string{"op"},
		),
		itemCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "store_items",
			Help:        "Number of persistent items known to the manifest",
			ConstLabels: constLabels,
		}),
		itemBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "store_bytes",
			Help:        "Total byte size of persistent items",
			ConstLabels: constLabels,
		}),
		trashDrain: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "store_trash_drained_total",
			Help:        "Files removed by the trash drain worker",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost,
		a.dbOps, a.dbErrors, a.itemCount, a.itemBytes, a.trashDrain)
	return a
}

// ---- memcache.Metrics ----

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r memcache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges for the number of entries and total cost.
func (a *Adapter) Size(entries int, cost int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeCost.Set(float64(cost))
}

// ---- store.Metrics ----

// Op increments the operation counter for op, and the error counter too
// when ok is false.
func (a *Adapter) Op(op string, ok bool) {
	a.dbOps.WithLabelValues(op).Inc()
	if !ok {
		a.dbErrors.WithLabelValues(op).Inc()
	}
}

// Items updates gauges for the manifest's resident item count and total
// byte size.
func (a *Adapter) Items(count int64, totalBytes int64) {
	a.itemCount.Set(float64(count))
	a.itemBytes.Set(float64(totalBytes))
}

// TrashDrained increments the trash-drain counter by n.
func (a *Adapter) TrashDrained(n int) {
	a.trashDrain.Add(float64(n))
}

// Compile-time checks: ensure Adapter implements both Metrics interfaces.
var (
	_ memcache.Metrics = (*Adapter)(nil)
	_ store.Metrics    = (*Adapter)(nil)
)
