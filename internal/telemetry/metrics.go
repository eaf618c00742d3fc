package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The mirrored instruments are Gauges rather than Counters: Stats'
// atomics are the hot-path source of truth, and Mirror is called
// periodically (e.g. on the PUBLISH tick) to republish their latest
// value, rather than being incremented inline with each event.
var (
	detectionsProcessed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_detections_processed_total",
			Help: "Total number of radar detections decoded and offered to CLUSTER.",
		},
	)

	clustersFormed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_clusters_formed_total",
			Help: "Total number of measurement clusters formed by CLUSTER.",
		},
	)

	tracksCreated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_tracks_created_total",
			Help: "Total number of tracks born from unassociated clusters.",
		},
	)

	tracksTerminated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_tracks_terminated_total",
			Help: "Total number of tracks that reached TERMINATED.",
		},
	)

	gatingRejections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_gating_rejections_total",
			Help: "Total number of cluster-track pairings rejected by the gating threshold.",
		},
	)

	covarianceRepairs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_covariance_repairs_total",
			Help: "Total number of IMM covariance eigenvalue-floor repairs applied.",
		},
	)

	beamRequestsDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_beam_requests_dropped_total",
			Help: "Total number of Beam Request cues dropped under downstream backpressure.",
		},
	)

	queueDrops = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_queue_drops_total",
			Help: "Total number of items dropped at a pipeline stage queue boundary.",
		},
		[]string{"stage"},
	)

	activeTracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_active_tracks",
			Help: "Current number of non-terminated tracks in the registry.",
		},
	)

	health = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_health_nominal",
			Help: "1 if the tracker's overall health status is NOMINAL, 0 if DEGRADED.",
		},
	)
)

// Mirror republishes a Stats snapshot (plus the current active track
// count and health status) into the package's Prometheus instruments.
func Mirror(snap Snapshot, activeTrackCount int, nominal bool) {
	detectionsProcessed.Set(float64(snap.DetectionsProcessed))
	clustersFormed.Set(float64(snap.ClustersFormed))
	tracksCreated.Set(float64(snap.TracksCreated))
	tracksTerminated.Set(float64(snap.TracksTerminated))
	gatingRejections.Set(float64(snap.GatingRejections))
	covarianceRepairs.Set(float64(snap.CovarianceRepairs))
	beamRequestsDropped.Set(float64(snap.BeamRequestsDropped))

	for stage, count := range snap.QueueDrops {
		queueDrops.WithLabelValues(stage).Set(float64(count))
	}

	activeTracks.Set(float64(activeTrackCount))
	if nominal {
		health.Set(1)
	} else {
		health.Set(0)
	}
}
