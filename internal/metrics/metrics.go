// Package metrics exposes Prometheus collectors for pass activity. The
// daemon serves them on /metrics; one-shot CLI runs register them but never
// scrape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shutter_passes_total",
		Help: "Total number of orchestration passes executed",
	})

	SnapshotsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutter_snapshots_created_total",
		Help: "Total number of snapshots created, by region",
	}, []string{"region"})

	SnapshotsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutter_snapshots_deleted_total",
		Help: "Total number of snapshots deleted by retention, by region",
	}, []string{"region"})

	SnapshotsCopied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutter_snapshots_copied_total",
		Help: "Total number of offsite snapshot copies, by destination region",
	}, []string{"region"})

	InstanceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutter_instance_errors_total",
		Help: "Total number of instances whose pass pipeline reported errors, by region",
	}, []string{"region"})
)
