// Package telemetry holds the pipeline's hot-path atomic counters and
// mirrors them into Prometheus instruments for external scraping.
package telemetry

import "sync/atomic"

// Stats is the source of truth for the pipeline's statistics &
// health budget: detections processed, clusters formed, tracks
// created/terminated, gating rejections, covariance repairs, and
// per-stage queue drops. Every field is a monotonic atomic counter
// safe for concurrent increment from any pipeline stage.
type Stats struct {
	DetectionsProcessed atomic.Int64
	ClustersFormed       atomic.Int64
	TracksCreated        atomic.Int64
	TracksTerminated     atomic.Int64
	GatingRejections     atomic.Int64
	CovarianceRepairs    atomic.Int64
	BeamRequestsDropped  atomic.Int64

	QueueDrops [numStages]atomic.Int64
}

// Stage identifies a pipeline queue boundary for QueueDrops indexing.
type Stage int

const (
	StageDecode Stage = iota
	StageCluster
	StageAssociate
	StageManage
	StagePublish
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageDecode:
		return "decode"
	case StageCluster:
		return "cluster"
	case StageAssociate:
		return "associate"
	case StageManage:
		return "manage"
	case StagePublish:
		return "publish"
	default:
		return "unknown"
	}
}

// RecordQueueDrop increments the drop counter for the given stage.
func (s *Stats) RecordQueueDrop(stage Stage) {
	if int(stage) < 0 || int(stage) >= int(numStages) {
		return
	}
	s.QueueDrops[stage].Add(1)
}

// Snapshot is a point-in-time copy of Stats, safe to pass around and
// serialize without racing the live atomics.
type Snapshot struct {
	DetectionsProcessed int64
	ClustersFormed      int64
	TracksCreated       int64
	TracksTerminated    int64
	GatingRejections    int64
	CovarianceRepairs   int64
	BeamRequestsDropped int64
	QueueDrops          map[string]int64
}

// Snapshot reads every counter into a plain struct.
func (s *Stats) Snapshot() Snapshot {
	drops := make(map[string]int64, numStages)
	for i := Stage(0); i < numStages; i++ {
		drops[i.String()] = s.QueueDrops[i].Load()
	}
	return Snapshot{
		DetectionsProcessed: s.DetectionsProcessed.Load(),
		ClustersFormed:      s.ClustersFormed.Load(),
		TracksCreated:       s.TracksCreated.Load(),
		TracksTerminated:    s.TracksTerminated.Load(),
		GatingRejections:    s.GatingRejections.Load(),
		CovarianceRepairs:   s.CovarianceRepairs.Load(),
		BeamRequestsDropped: s.BeamRequestsDropped.Load(),
		QueueDrops:          drops,
	}
}
