// Package cluster implements the CLUSTER stage: grouping a detection
// batch into clusters judged to originate from one target, using a
// weighted-distance DBSCAN variant.
package cluster

import (
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/detect"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/ringbuf"
)

// Cluster is a non-empty set of detections judged to originate from
// one target.
type Cluster struct {
	ID int // dense, unique within batch, starting from 0

	CentroidX, CentroidY, CentroidZ float64

	HasVelocity                      bool
	CentroidVX, CentroidVY, CentroidVZ float64

	// PositionCovariance is the 3x3 sample covariance of constituent
	// detection positions, row-major.
	PositionCovariance [9]float64

	// Confidence in [0,1], derived from mean SNR and member count.
	Confidence float64

	// MeanSNR is the unscaled average SNR (dB) across member detections.
	MeanSNR float64

	// DetectionRefs holds the member detection ids, bounded to avoid
	// unbounded growth for pathologically large clusters.
	DetectionRefs *ringbuf.Ring[uint64]

	Count int
}

// Params configures the weighted-distance DBSCAN variant.
type Params struct {
	Epsilon  float64
	MinPoints int
	MaxClusterSize int

	WeightPos, WeightVel, WeightRange, WeightAzimuth float64

	UseAdaptiveEpsilon bool
	AdaptiveK          float64

	SNRThreshold float64

	MaxClusters     int
	MinClusterDensity float64
}

// DefaultParams mirrors the defaults named in the configuration surface.
func DefaultParams() Params {
	return Params{
		Epsilon:            0.6,
		MinPoints:          1,
		MaxClusterSize:     500,
		WeightPos:          1.0,
		WeightVel:          0.1,
		WeightRange:        0.5,
		WeightAzimuth:      0.3,
		UseAdaptiveEpsilon: false,
		AdaptiveK:          0.01,
		SNRThreshold:       10.0,
		MaxClusters:        100,
		MinClusterDensity:  0.0,
	}
}

func detectionRef(d detect.Detection) uint64 { return d.ID }
