// Package metrics provides Prometheus instrumentation for PackVault.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the archive store.
type Metrics struct {
	// UploadsTotal counts upload operations by category and outcome.
	UploadsTotal *prometheus.CounterVec

	// UploadBytes counts archive bytes accepted for storage.
	UploadBytes prometheus.Counter

	// DiffFiles counts files reported by the version diff engine,
	// labeled by change kind (added, removed, modified).
	DiffFiles *prometheus.CounterVec

	// ReusesTotal counts reuse-shortcut operations by outcome.
	ReusesTotal *prometheus.CounterVec

	// ReconstructsTotal counts reconstruction operations by outcome.
	ReconstructsTotal *prometheus.CounterVec

	// ReconstructDuration observes end-to-end reconstruction latency.
	ReconstructDuration prometheus.Histogram

	// ReconstructFallbacks counts per-entry blob misses recovered by
	// extracting from a whole-archive blob.
	ReconstructFallbacks prometheus.Counter

	// BlobOpDuration observes object-store round-trip latency by operation.
	BlobOpDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packvault",
			Name:      "uploads_total",
			Help:      "Category archive uploads by category and outcome.",
		}, []string{"category", "outcome"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packvault",
			Name:      "upload_bytes_total",
			Help:      "Archive bytes accepted for storage.",
		}),
		DiffFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packvault",
			Name:      "diff_files_total",
			Help:      "Files reported by the version diff engine by change kind.",
		}, []string{"change"}),
		ReusesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packvault",
			Name:      "reuses_total",
			Help:      "Reuse-shortcut operations by outcome.",
		}, []string{"outcome"}),
		ReconstructsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packvault",
			Name:      "reconstructs_total",
			Help:      "Archive reconstructions by outcome.",
		}, []string{"outcome"}),
		ReconstructDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "packvault",
			Name:      "reconstruct_duration_seconds",
			Help:      "End-to-end reconstruction latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ReconstructFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packvault",
			Name:      "reconstruct_fallbacks_total",
			Help:      "Per-entry blob misses recovered from a whole-archive blob.",
		}),
		BlobOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "packvault",
			Name:      "blob_op_duration_seconds",
			Help:      "Object-store round-trip latency by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.UploadsTotal,
		m.UploadBytes,
		m.DiffFiles,
		m.ReusesTotal,
		m.ReconstructsTotal,
		m.ReconstructDuration,
		m.ReconstructFallbacks,
		m.BlobOpDuration,
	)
	return m
}

// NewNop creates unregistered collectors, for tests and the admin CLI.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
