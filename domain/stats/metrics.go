package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "benchcom_stats_refresh_total",
		Help: "Stats cache refreshes by scope and result",
	}, []string{"scope", "result"})

	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "benchcom_stats_refresh_duration_seconds",
		Help:    "Duration of stats cache refreshes",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	RefreshRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "benchcom_stats_rows_total",
		Help: "Stat rows written or removed by refreshes",
	}, []string{"op"})
)
