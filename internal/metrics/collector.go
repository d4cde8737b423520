package metrics

import (
	"bedrock/internal/registry"
	"bedrock/internal/types"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bedrock"

var labels = []string{"kind", "id"}

// PoolCollector exports the connection pool statistics of every registered
// client. It reads the registries on each scrape, so clients registered later
// are picked up without re-registration.
type PoolCollector struct {
	sql *registry.SQLRegistry
	kv  *registry.KVRegistry

	maxOpen  *prometheus.Desc
	open     *prometheus.Desc
	inUse    *prometheus.Desc
	idle     *prometheus.Desc
	waits    *prometheus.Desc
	waitSecs *prometheus.Desc
	timeouts *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
}

// NewPoolCollector accepts nil for either registry.
func NewPoolCollector(sql *registry.SQLRegistry, kv *registry.KVRegistry) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, labels, nil)
	}
	return &PoolCollector{
		sql:      sql,
		kv:       kv,
		maxOpen:  desc("max_connections", "Maximum number of pooled connections."),
		open:     desc("open_connections", "Established connections, in use or idle."),
		inUse:    desc("in_use_connections", "Connections currently borrowed."),
		idle:     desc("idle_connections", "Idle connections."),
		waits:    desc("waits_total", "Borrows that had to wait for a connection."),
		waitSecs: desc("wait_seconds_total", "Total time spent waiting for a connection."),
		timeouts: desc("timeouts_total", "Borrows that gave up waiting for a connection."),
		hits:     desc("hits_total", "Borrows served by an idle connection."),
		misses:   desc("misses_total", "Borrows that had to dial a new connection."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.maxOpen, c.open, c.inUse, c.idle, c.waits, c.waitSecs, c.timeouts, c.hits, c.misses} {
		ch <- d
	}
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.sql != nil {
		for _, client := range c.sql.Clients() {
			st := client.Stats()
			id := client.ID()
			gauge(ch, c.maxOpen, float64(st.MaxOpenConnections), types.ClientKindSQL, id)
			gauge(ch, c.open, float64(st.OpenConnections), types.ClientKindSQL, id)
			gauge(ch, c.inUse, float64(st.InUse), types.ClientKindSQL, id)
			gauge(ch, c.idle, float64(st.Idle), types.ClientKindSQL, id)
			counter(ch, c.waits, float64(st.WaitCount), types.ClientKindSQL, id)
			counter(ch, c.waitSecs, st.WaitDuration.Seconds(), types.ClientKindSQL, id)
		}
	}
	if c.kv != nil {
		for _, client := range c.kv.Clients() {
			st := client.Stats()
			id := client.ID()
			gauge(ch, c.maxOpen, float64(client.Config().MaxTotal()), types.ClientKindKV, id)
			gauge(ch, c.open, float64(st.TotalConns), types.ClientKindKV, id)
			gauge(ch, c.inUse, float64(st.TotalConns-min(st.IdleConns, st.TotalConns)), types.ClientKindKV, id)
			gauge(ch, c.idle, float64(st.IdleConns), types.ClientKindKV, id)
			counter(ch, c.waits, float64(st.WaitCount), types.ClientKindKV, id)
			counter(ch, c.waitSecs, float64(st.WaitDurationNs)/1e9, types.ClientKindKV, id)
			counter(ch, c.timeouts, float64(st.Timeouts), types.ClientKindKV, id)
			counter(ch, c.hits, float64(st.Hits), types.ClientKindKV, id)
			counter(ch, c.misses, float64(st.Misses), types.ClientKindKV, id)
		}
	}
}

func gauge(ch chan<- prometheus.Metric, d *prometheus.Desc, v float64, lv ...string) {
	ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
}

func counter(ch chan<- prometheus.Metric, d *prometheus.Desc, v float64, lv ...string) {
	ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, lv...)
}

// Register adds the collector to reg, reusing one already registered.
func Register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
