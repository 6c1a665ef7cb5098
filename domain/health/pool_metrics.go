package health

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolSnapshot is the subset of pool statistics exported as metrics.
type poolSnapshot struct {
	Total        int32
	Acquired     int32
	Idle         int32
	Max          int32
	EmptyAcquire int64
}

func snapshotPool(pool *pgxpool.Pool) func() poolSnapshot {
	return func() poolSnapshot {
		s := pool.Stat()
		return poolSnapshot{
			Total:        s.TotalConns(),
			Acquired:     s.AcquiredConns(),
			Idle:         s.IdleConns(),
			Max:          s.MaxConns(),
			EmptyAcquire: s.EmptyAcquireCount(),
		}
	}
}

// poolCollector reports connection pool statistics on every scrape.
type poolCollector struct {
	snapshot func() poolSnapshot

	total    *prometheus.Desc
	acquired *prometheus.Desc
	idle     *prometheus.Desc
	max      *prometheus.Desc
	waits    *prometheus.Desc
}

func newPoolCollector(snapshot func() poolSnapshot) *poolCollector {
	return &poolCollector{
		snapshot: snapshot,
		total:    prometheus.NewDesc("benchcom_db_pool_total_conns", "Open connections in the pool", nil, nil),
		acquired: prometheus.NewDesc("benchcom_db_pool_acquired_conns", "Connections currently in use", nil, nil),
		idle:     prometheus.NewDesc("benchcom_db_pool_idle_conns", "Idle connections", nil, nil),
		max:      prometheus.NewDesc("benchcom_db_pool_max_conns", "Configured maximum pool size", nil, nil),
		waits:    prometheus.NewDesc("benchcom_db_pool_empty_acquire_total", "Acquires that had to wait for a connection", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.acquired
	ch <- c.idle
	ch <- c.max
	ch <- c.waits
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.Total))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.Acquired))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.EmptyAcquire))
}

// RegisterPoolMetrics exposes pool statistics on /metrics.
func RegisterPoolMetrics(pool *pgxpool.Pool) error {
	return registerPoolCollector(prometheus.DefaultRegisterer, snapshotPool(pool))
}

func registerPoolCollector(reg prometheus.Registerer, snapshot func() poolSnapshot) error {
	err := reg.Register(newPoolCollector(snapshot))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
