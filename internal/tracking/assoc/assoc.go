// Package assoc implements the ASSOCIATE+UPDATE stage: gating, optimal
// bipartite assignment of clusters to tracks, and the per-pair IMM
// filter update (or coast prediction for tracks that went unmatched).
package assoc

import (
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/shridharbhandiwad/ModularTracker/internal/config"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/cluster"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/mathutil"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/track"
)

// Result summarises one ASSOCIATE+UPDATE cycle.
type Result struct {
	// Matched maps cluster index -> the track id it was assigned to.
	Matched map[int]string

	// UnassociatedClusters holds indices of clusters that matched no
	// track; MANAGE spawns new tracks from these.
	UnassociatedClusters []int

	// MissedTrackIDs holds ids of tracks present before this cycle that
	// received no assignment; MANAGE applies the miss transition.
	MissedTrackIDs []string

	// GatingRejections counts cluster-track pairs excluded from
	// assignment by the chi-squared gate this cycle.
	GatingRejections int

	// CovarianceRepairs counts IMM eigenvalue-floor repairs applied
	// across every track stepped this cycle (coast or measurement
	// update alike).
	CovarianceRepairs int
}

// positionOnlyH builds a measurement matrix selecting only (x, y).
func positionOnlyH() *mat.Dense {
	h := mat.NewDense(2, imm7, nil)
	h.Set(0, 0, 1)
	h.Set(1, 1, 1)
	return h
}

// positionVelocityH builds a measurement matrix selecting (x, y, vx, vy).
func positionVelocityH() *mat.Dense {
	h := mat.NewDense(4, imm7, nil)
	h.Set(0, 0, 1)
	h.Set(1, 1, 1)
	h.Set(2, 2, 1)
	h.Set(3, 3, 1)
	return h
}

const imm7 = 7 // matches imm.StateDim; kept local to avoid an import cycle on imm internals

// Run gates and assigns clusters to tracks, then drives the IMM bundle
// for every track: Step() with the matched measurement, or
// PredictOnly() for a track with no match this cycle. Track lifecycle
// counters (hits/misses/state) are updated in place via RecordHit and
// RecordMiss; MANAGE is responsible for birthing new tracks from
// UnassociatedClusters and for capacity/GC housekeeping.
func Run(cfg *config.TrackerConfig, tracks []*track.Track, clusters []cluster.Cluster, dt float64, now time.Time) Result {
	result := Result{Matched: make(map[int]string)}

	nClusters := len(clusters)
	nTracks := len(tracks)

	if nTracks == 0 {
		for i := range clusters {
			result.UnassociatedClusters = append(result.UnassociatedClusters, i)
		}
		return result
	}
	if nClusters == 0 {
		for _, t := range tracks {
			result.CovarianceRepairs += coast(t, dt)
			t.RecordMiss(cfg, now)
			result.MissedTrackIDs = append(result.MissedTrackIDs, t.ID)
		}
		return result
	}

	costMatrix, gatingRejections := buildCostMatrix(cfg, tracks, clusters)
	result.GatingRejections = gatingRejections
	assign := assignPairs(cfg, costMatrix, nClusters, nTracks)

	matchedTrack := make(map[int]bool, nTracks)
	for ci := range clusters {
		trackIdx := -1
		if ci < len(assign) {
			trackIdx = assign[ci]
		}
		if trackIdx < 0 || trackIdx >= nTracks || costMatrix[ci][trackIdx] >= mathutil.Forbidden {
			result.UnassociatedClusters = append(result.UnassociatedClusters, ci)
			continue
		}

		t := tracks[trackIdx]
		result.CovarianceRepairs += applyMeasurement(t, clusters[ci], dt)
		avgSNR := clusters[ci].MeanSNR
		t.RecordHit(cfg, clusters[ci].CentroidX, clusters[ci].CentroidY, clusters[ci].CentroidVX, clusters[ci].CentroidVY, avgSNR, now)

		result.Matched[ci] = t.ID
		matchedTrack[trackIdx] = true
	}

	for ti, t := range tracks {
		if matchedTrack[ti] {
			continue
		}
		result.CovarianceRepairs += coast(t, dt)
		t.RecordMiss(cfg, now)
		result.MissedTrackIDs = append(result.MissedTrackIDs, t.ID)
	}

	return result
}

// assignPairs picks the solver for the cost matrix. An explicitly
// configured association.assignment.algorithm is forced regardless of
// batch size; only when left unset does the batch-size threshold pick
// the default (Hungarian, falling back to greedy past
// max_tracks_for_parallel) — the same threshold buildCostMatrix
// already uses to decide serial vs. parallel row computation, a
// separate concern from which solver runs.
func assignPairs(cfg *config.TrackerConfig, costMatrix [][]float64, nClusters, nTracks int) []int {
	if cfg.AssignmentAlgorithm != nil {
		if cfg.GetAssignmentAlgorithm() == "greedy" {
			return mathutil.GreedyAssign(costMatrix)
		}
		return mathutil.HungarianAssign(costMatrix)
	}
	if max(nClusters, nTracks) > cfg.GetMaxTracksForParallel() {
		return mathutil.GreedyAssign(costMatrix)
	}
	return mathutil.HungarianAssign(costMatrix)
}

// coast predicts a track with no match this cycle and returns the
// number of covariance repairs the IMM bundle applied.
func coast(t *track.Track, dt float64) int {
	before := t.Bundle.NumericalRepairs
	t.Bundle.PredictOnly(dt)
	return t.Bundle.NumericalRepairs - before
}

// applyMeasurement steps the IMM bundle with the matched cluster's
// centroid (and velocity, if present) and returns the number of
// covariance repairs it applied.
func applyMeasurement(t *track.Track, c cluster.Cluster, dt float64) int {
	before := t.Bundle.NumericalRepairs
	if c.HasVelocity {
		h := positionVelocityH()
		meas := mat.NewVecDense(4, []float64{c.CentroidX, c.CentroidY, c.CentroidVX, c.CentroidVY})
		t.Bundle.Step(dt, meas, h)
	} else {
		h := positionOnlyH()
		meas := mat.NewVecDense(2, []float64{c.CentroidX, c.CentroidY})
		t.Bundle.Step(dt, meas, h)
	}
	return t.Bundle.NumericalRepairs - before
}

// buildCostMatrix builds the [nClusters x nTracks] squared-Mahalanobis
// cost matrix, gated at the chi-squared threshold for the measurement
// dimension actually used for each pair (2 dof for position-only, 4
// dof when the cluster also carries a velocity gate).
//
// Each row is independent (one cluster against every track), so once
// the batch is large enough to be worth the dispatch overhead, rows
// are computed by a bounded worker pool instead of serially — the
// per-cluster subcomputation offload the association stage is allowed
// to perform under load.
func buildCostMatrix(cfg *config.TrackerConfig, tracks []*track.Track, clusters []cluster.Cluster) ([][]float64, int) {
	confidence := cfg.GetGatingConfidence()
	posThreshold := mathutil.GatingThreshold(confidence, 2)
	velThreshold := mathutil.GatingThreshold(confidence, 4)
	measurementNoise := cfg.GetIMMMeasurementNoise()

	cost := make([][]float64, len(clusters))
	for ci := range clusters {
		cost[ci] = make([]float64, len(tracks))
	}

	var rejections atomic.Int64
	fillRow := func(ci int) {
		c := clusters[ci]
		for ti, t := range tracks {
			d2, threshold := gatedDistanceSquared(t, c, measurementNoise, posThreshold, velThreshold)
			if d2 > threshold {
				cost[ci][ti] = mathutil.Forbidden
				rejections.Add(1)
			} else {
				cost[ci][ti] = d2
			}
		}
	}

	if max(len(clusters), len(tracks)) <= cfg.GetMaxTracksForParallel() {
		for ci := range clusters {
			fillRow(ci)
		}
		return cost, int(rejections.Load())
	}

	limit := cfg.GetThreadPoolSize()
	if limit < 1 {
		limit = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for ci := range clusters {
		ci := ci
		g.Go(func() error {
			fillRow(ci)
			return nil
		})
	}
	_ = g.Wait() // fillRow never errors; rows are independent slices

	return cost, int(rejections.Load())
}

// gatedDistanceSquared computes the squared Mahalanobis distance
// between a track's fused estimate and a cluster centroid, including
// the velocity components when the cluster carries a velocity
// estimate, and returns the threshold that applies to the dimension
// actually used.
func gatedDistanceSquared(t *track.Track, c cluster.Cluster, measurementNoise, posThreshold, velThreshold float64) (float64, float64) {
	if c.HasVelocity {
		h := positionVelocityH()
		meas := mat.NewVecDense(4, []float64{c.CentroidX, c.CentroidY, c.CentroidVX, c.CentroidVY})
		d2, ok := mahalanobisSquared(t, h, meas, measurementNoise)
		if ok {
			return d2, velThreshold
		}
		return mathutil.Forbidden, velThreshold
	}

	h := positionOnlyH()
	meas := mat.NewVecDense(2, []float64{c.CentroidX, c.CentroidY})
	d2, ok := mahalanobisSquared(t, h, meas, measurementNoise)
	if !ok {
		return mathutil.Forbidden, posThreshold
	}
	return d2, posThreshold
}

func mahalanobisSquared(t *track.Track, h *mat.Dense, measurement *mat.VecDense, measurementNoise float64) (float64, bool) {
	rows, _ := h.Dims()

	var hx mat.VecDense
	hx.MulVec(h, t.Bundle.FusedX)
	var nu mat.VecDense
	nu.SubVec(measurement, &hx)

	var hp mat.Dense
	hp.Mul(h, t.Bundle.FusedP)
	var s mat.Dense
	s.Mul(&hp, h.T())
	for i := 0; i < rows; i++ {
		s.Set(i, i, s.At(i, i)+measurementNoise)
	}

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return 0, false
	}

	var tmp mat.VecDense
	tmp.MulVec(&sInv, &nu)
	return mat.Dot(&nu, &tmp), true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
