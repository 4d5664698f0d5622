package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotscribe"

var (
	Toggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "toggles_total",
		Help:      "Hotkey toggles by controller outcome.",
	}, []string{"outcome"})

	Sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Finished recording sessions by outcome (ok or error kind).",
	}, []string{"outcome"})

	DroppedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_dropped_frames_total",
		Help:      "PCM frames discarded by the capture ring buffer.",
	})

	TranscriptionSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_seconds",
		Help:      "Time spent in the transcription engine.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"engine"})

	UploadPhaseSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_upload_phase_seconds",
		Help:      "Per-phase timing of requests to the HTTP transcription engine.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"phase"})

	SinkDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_deliveries_total",
		Help:      "Result deliveries per sink by outcome.",
	}, []string{"sink", "outcome"})

	DispatchDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_dropped_total",
		Help:      "Results dropped because a sink queue was full.",
	}, []string{"sink"})

	Sinks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sinks",
		Help:      "Currently registered output sinks.",
	})
)

func init() {
	prometheus.MustRegister(
		Toggles,
		Sessions,
		DroppedFrames,
		TranscriptionSeconds,
		UploadPhaseSeconds,
		SinkDeliveries,
		DispatchDropped,
		Sinks,
	)
}
