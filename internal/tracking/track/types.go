// Package track implements the MANAGE stage: the Track type, its
// lifecycle state machine, quality scoring, and the shared Track
// Registry that ASSOCIATE+UPDATE and PUBLISH read from.
package track

import (
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/imm"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/ringbuf"
)

// State is a Track's lifecycle state.
type State string

const (
	Tentative  State = "TENTATIVE"
	Confirmed  State = "CONFIRMED"
	Coasting   State = "COASTING"
	Terminated State = "TERMINATED"
)

// Point is one sample in a track's bounded trajectory history.
type Point struct {
	X, Y, VX, VY float64
	Timestamp    time.Time
}

// Track is a hypothesis about a persistent target: identity, lifecycle
// counters, an IMM state bundle, and a bounded trajectory history.
type Track struct {
	ID    string
	State State

	CreationTimestamp   time.Time
	LastUpdateTimestamp time.Time
	LastHitTimestamp    time.Time

	Hits             int // consecutive hits
	Misses           int // consecutive misses
	TotalHits        int // lifetime hit count, used for hit_ratio
	TotalMisses      int // lifetime miss count, used for hit_ratio
	QualityScore     float64
	AvgSNR           float64

	Bundle *imm.Bundle

	History *ringbuf.Ring[Point]

	// SensorID identifies the detection source the track was seeded
	// from, carried through for multi-sensor deployments.
	SensorID string
}

// hitRatio returns hits / (hits + misses) over the track's lifetime,
// or 0 for a track with no observations yet.
func (t *Track) hitRatio() float64 {
	total := t.TotalHits + t.TotalMisses
	if total == 0 {
		return 0
	}
	return float64(t.TotalHits) / float64(total)
}

// FusedPosition returns the track's latest fused (x, y) estimate.
func (t *Track) FusedPosition() (x, y float64) {
	return t.Bundle.FusedX.AtVec(0), t.Bundle.FusedX.AtVec(1)
}

// FusedVelocity returns the track's latest fused (vx, vy) estimate.
func (t *Track) FusedVelocity() (vx, vy float64) {
	return t.Bundle.FusedX.AtVec(2), t.Bundle.FusedX.AtVec(3)
}
