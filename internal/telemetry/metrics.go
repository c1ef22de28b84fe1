// Package telemetry exposes the Prometheus instrumentation shared by the
// daemons. Collectors register on the default registry; the HTTP layer
// serves them through promhttp.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"wansteer/internal/model"
)

var (
	// PacketsScheduled counts packets that received a link and a sequence
	// number, labelled by egress link.
	PacketsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wansteer_packets_scheduled_total",
		Help: "Packets scheduled onto an egress link.",
	}, []string{"link"})

	// PacketsRejected counts packets returned to the submitter, labelled by
	// reason ("queue_full", "no_link", "dropped_on_shutdown").
	PacketsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wansteer_packets_rejected_total",
		Help: "Packets rejected or dropped by the scheduling pipeline.",
	}, []string{"reason"})

	// ProbeFailures counts individual failed measurements, labelled by
	// interface and probe kind.
	ProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wansteer_probe_failures_total",
		Help: "Failed probe measurements.",
	}, []string{"interface", "kind"})

	// LinkHealthScore is the current health score per link.
	LinkHealthScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wansteer_link_health_score",
		Help: "Current health score per link, in [0,1].",
	}, []string{"link"})

	// LinkStatus is the current failover status per link (0=up, 1=degraded,
	// 2=down).
	LinkStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wansteer_link_status",
		Help: "Current failover status per link (0=up, 1=degraded, 2=down).",
	}, []string{"link"})
)

// ObserveSnapshot refreshes the per-link gauges from a health snapshot.
func ObserveSnapshot(snap model.Snapshot) {
	for name, link := range snap.Links {
		LinkHealthScore.WithLabelValues(name).Set(link.LastMetrics.HealthScore())
		LinkStatus.WithLabelValues(name).Set(float64(link.Status))
	}
}
