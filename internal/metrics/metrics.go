// Package metrics exposes Prometheus metrics for sync runs.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "facesync"

// Metrics holds the registry and all collectors of the service.
type Metrics struct {
	registry *prometheus.Registry
	Sync     *SyncMetrics
}

// New creates a registry with process and Go runtime collectors plus the
// sync metrics.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	syncMetrics, err := NewSyncMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	return &Metrics{registry: registry, Sync: syncMetrics}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// WatchSyncedFaces exposes the size of the sync state as a gauge.
func (m *Metrics) WatchSyncedFaces(count func() int) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "synced_faces",
		Help:      "Number of face IDs recorded in the sync state file",
	}, func() float64 { return float64(count()) })
	if err := m.registry.Register(g); err != nil {
		return fmt.Errorf("failed to register synced faces gauge: %w", err)
	}
	return nil
}
