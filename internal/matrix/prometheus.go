package matrix

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromGauges mirrors a NetworkSnapshot/RequestSnapshot/PoolSnapshot as
// Prometheus gauges so a /metrics scrape and the JSON /stats endpoint always
// report the same numbers from the same underlying atomics.
type PromGauges struct {
	gauges map[string]prometheus.Gauge
}

// NewPromGauges registers one gauge per counter name under
// "redisd_<group>_<name>", e.g. "redisd_network_conn_created", against the
// default registerer. A second Server started in the same process (as
// happens across table-driven tests) would otherwise panic on duplicate
// registration via promauto, so an AlreadyRegisteredError is treated as
// "reuse the existing collector" rather than an error.
func NewPromGauges(group string, names ...string) *PromGauges {
	g := &PromGauges{gauges: make(map[string]prometheus.Gauge, len(names))}
	for _, name := range names {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redisd_" + group + "_" + name,
			Help: "redisd " + group + " counter: " + name,
		})
		if err := prometheus.Register(gauge); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				gauge = are.ExistingCollector.(prometheus.Gauge)
			}
		}
		g.gauges[name] = gauge
	}
	return g
}

// Publish pushes a cumulative counter map (as produced by AsMap on a plain,
// non-subtracted Snapshot) into the registered gauges, so a /metrics scrape
// always reads the same running totals as the JSON /stats endpoint. Unknown
// keys are ignored.
func (g *PromGauges) Publish(counts map[string]uint64) {
	for name, v := range counts {
		if gauge, ok := g.gauges[name]; ok {
			gauge.Set(float64(v))
		}
	}
}
