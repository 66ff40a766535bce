package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/facesync/internal/syncer"
)

// SyncMetrics records run and per-face outcomes. It is a syncer.Sink.
type SyncMetrics struct {
	RunsTotal       *prometheus.CounterVec
	FacesTotal      *prometheus.CounterVec
	FailedPeople    prometheus.Counter
	RunDuration     prometheus.Histogram
	FaceDuration    *prometheus.HistogramVec
	InProgress      prometheus.Gauge
	LastRunFinished prometheus.Gauge
}

var _ syncer.Sink = (*SyncMetrics)(nil)

// NewSyncMetrics creates the sync collectors and registers them.
func NewSyncMetrics(registry prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of finished sync runs by outcome",
		}, []string{"status"}),
		FacesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_faces_total",
			Help:      "Total number of faces considered by result",
		}, []string{"result"}),
		FailedPeople: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failed_people_total",
			Help:      "Total number of people whose faces could not be listed",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		FaceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_face_duration_seconds",
			Help:      "Time spent per face in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"result"}),
		InProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_in_progress",
			Help:      "1 while a sync run is active",
		}),
		LastRunFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_run_finished_timestamp_seconds",
			Help:      "Unix time the last sync run finished",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.RunsTotal, m.FacesTotal, m.FailedPeople, m.RunDuration,
		m.FaceDuration, m.InProgress, m.LastRunFinished,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register sync metrics: %w", err)
		}
	}
	return m, nil
}

// HandleEvent updates the collectors from a run event.
func (m *SyncMetrics) HandleEvent(ev syncer.Event) {
	switch ev.Type {
	case syncer.EventRunStarted:
		m.InProgress.Set(1)
	case syncer.EventFace:
		if ev.Face == nil {
			return
		}
		result := string(ev.Face.Result)
		m.FacesTotal.WithLabelValues(result).Inc()
		m.FaceDuration.WithLabelValues(result).Observe(ev.Face.Duration.Seconds())
	case syncer.EventRunFinished:
		m.InProgress.Set(0)
		if s := ev.Summary; s != nil {
			m.RunsTotal.WithLabelValues(string(s.Status)).Inc()
			m.FailedPeople.Add(float64(s.FailedPeople))
			if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
				m.RunDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
				m.LastRunFinished.Set(float64(s.FinishedAt.Unix()))
			}
		}
	}
}
