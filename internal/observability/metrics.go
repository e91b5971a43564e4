package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mar",
		Name:      "frames_captured_total",
		Help:      "Total number of camera frames decoded",
	})

	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mar",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the tracking engine",
	})

	FramesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mar",
		Name:      "frames_skipped_total",
		Help:      "Frames skipped due to camera acquisition failures",
	}, []string{"reason"})

	KeypointsDetected = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mar",
		Name:      "keypoints_detected",
		Help:      "Keypoints detected per frame",
		Buckets:   prometheus.ExponentialBuckets(8, 2, 10),
	})

	SurfacesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mar",
		Name:      "surfaces_active",
		Help:      "Number of currently tracked surfaces",
	})

	SurfaceUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mar",
		Name:      "surface_updates_total",
		Help:      "Per-frame surface update outcomes",
	}, []string{"status"})

	CorrespondenceCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mar",
		Name:      "correspondences_per_update",
		Help:      "Correspondences used per surface transform estimate",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
	})

	UpdateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mar",
		Name:      "update_duration_seconds",
		Help:      "Duration of per-frame pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mar",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mar",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket overlay clients",
	})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mar",
		Name:      "events_published_total",
		Help:      "Tracking events published to NATS",
	})

	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mar",
		Name:      "event_queue_depth",
		Help:      "Pending messages in the EVENTS stream",
	})

	EventsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mar",
		Name:      "events_archived_total",
		Help:      "Tracking events persisted by the archiver",
	})

	FramesTrimmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mar",
		Name:      "frames_trimmed_total",
		Help:      "Archived frames removed by retention cleanup",
	})
)
