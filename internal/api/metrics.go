package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/metroroute/internal/topology/snapshot"
)

// Metrics are registered on their own registry so several servers can live
// in one process (tests).
type Metrics struct {
	Registry      *prometheus.Registry
	RouteDuration *prometheus.HistogramVec
}

func NewMetrics(holder *snapshot.Holder) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RouteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "metroroute",
			Name:      "route_query_duration_seconds",
			Help:      "Time spent answering route queries",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"mode", "outcome"}),
	}

	stations := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "metroroute",
		Name:      "network_stations",
		Help:      "Stations in the published network",
	}, func() float64 {
		if s := holder.Load(); s != nil {
			return float64(s.Network.Len())
		}
		return 0
	})

	connections := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "metroroute",
		Name:      "network_connections",
		Help:      "Undirected connections in the published network",
	}, func() float64 {
		if s := holder.Load(); s != nil {
			return float64(s.Network.ConnectionCount())
		}
		return 0
	})

	reloads := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "metroroute",
		Name:      "network_reloads_total",
		Help:      "Networks published since start",
	}, func() float64 {
		return float64(holder.Reloads())
	})

	m.Registry.MustRegister(
		m.RouteDuration,
		stations,
		connections,
		reloads,
		collectors.NewGoCollector(),
	)
	return m
}
