// Package metrics registers the connector's ambient Prometheus metrics:
// request outcomes, route health, outbound latency, and telemetry queue
// depth (§6 "Metrics").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups the metrics the router, client, and telemetry sink write
// to, registered against a private prometheus.Registry so tests can
// construct independent instances without colliding on the default
// registerer.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal          *prometheus.CounterVec
	RouteHealth            *prometheus.GaugeVec
	OutboundRequestSeconds prometheus.Histogram
	TelemetryQueueDepth    *prometheus.GaugeVec
}

// New builds a Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ilp_requests_total",
			Help: "Total number of inbound ILP requests, by result.",
		}, []string{"result"}),
		RouteHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ilp_route_health",
			Help: "Route health: 0=unhealthy, 1=healthy or infallible.",
		}, []string{"route"}),
		OutboundRequestSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ilp_outbound_request_duration_seconds",
			Help:    "Outbound HTTP request duration, in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		TelemetryQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ilp_telemetry_queue_depth",
			Help: "Current depth of each telemetry sink queue.",
		}, []string{"queue"}),
	}
}

// Registerer exposes the underlying registry for promhttp.HandlerFor.
func (r *Registry) Registerer() *prometheus.Registry { return r.reg }

// ObserveRoute records a route's current health as 1 (healthy/infallible)
// or 0 (unhealthy).
func (r *Registry) ObserveRoute(route string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	r.RouteHealth.WithLabelValues(route).Set(v)
}
