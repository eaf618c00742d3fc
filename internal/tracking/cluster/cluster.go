package cluster

import (
	"math"
	"sort"

	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/detect"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/ringbuf"
)

// Stats reports counters produced by one Run call, for the
// statistics & health budget.
type Stats struct {
	DroppedBelowSNR int
	NoisePoints     int
	CappedClusters  int // clusters that would have formed past MaxClusters
}

// Run partitions a detection batch into clusters plus an implicit
// noise set (points belonging to no returned cluster). Empty input
// returns empty output, not an error.
func Run(detections []detect.Detection, params Params) ([]Cluster, Stats) {
	var stats Stats
	if len(detections) == 0 {
		return nil, stats
	}

	filtered := make([]detect.Detection, 0, len(detections))
	for _, d := range detections {
		if float64(d.SNR) < params.SNRThreshold {
			stats.DroppedBelowSNR++
			continue
		}
		filtered = append(filtered, d)
	}
	if len(filtered) == 0 {
		return nil, stats
	}

	n := len(filtered)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, d := range filtered {
		xs[i] = d.X
		ys[i] = d.Y
	}

	idx := newSpatialIndex(baseEpsilon(params))
	idx.build(xs, ys)

	labels := make([]int, n) // 0=unvisited, -1=noise, >0=clusterID
	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}
		neighbors := regionQuery(filtered, idx, i, params)
		if len(neighbors) < params.MinPoints {
			labels[i] = -1
			continue
		}
		if params.MaxClusters > 0 && clusterID >= params.MaxClusters {
			stats.CappedClusters++
			labels[i] = -1
			continue
		}
		clusterID++
		expandCluster(filtered, idx, labels, i, neighbors, clusterID, params)
	}

	clusters := buildClusters(filtered, labels, clusterID, params)

	for _, l := range labels {
		if l == -1 {
			stats.NoisePoints++
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].CentroidX != clusters[j].CentroidX {
			return clusters[i].CentroidX < clusters[j].CentroidX
		}
		return clusters[i].CentroidY < clusters[j].CentroidY
	})
	for i := range clusters {
		clusters[i].ID = i
	}

	return clusters, stats
}

func baseEpsilon(p Params) float64 {
	if p.WeightPos <= 0 {
		return p.Epsilon
	}
	return p.Epsilon / math.Sqrt(p.WeightPos)
}

func adaptiveEpsilon(d detect.Detection, p Params) float64 {
	if !p.UseAdaptiveEpsilon {
		return p.Epsilon
	}
	return p.Epsilon * (1 + p.AdaptiveK*d.Range)
}

// weightedDistanceSquared implements the composite distance metric:
// d(a,b)^2 = w_pos*||pos||^2 + w_vel*||vel||^2 + w_rng*(range diff)^2 + w_az*(az diff)^2.
func weightedDistanceSquared(a, b detect.Detection, p Params) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	posTerm := dx*dx + dy*dy + dz*dz

	var velTerm float64
	if a.HasVelocity && b.HasVelocity {
		dvx, dvy, dvz := a.VX-b.VX, a.VY-b.VY, a.VZ-b.VZ
		velTerm = dvx*dvx + dvy*dvy + dvz*dvz
	}

	rngDiff := a.Range - b.Range
	rngTerm := rngDiff * rngDiff

	azTerm := normalizeAngleDiff(a.Azimuth - b.Azimuth)
	azTerm *= azTerm

	d2 := p.WeightPos*posTerm + p.WeightVel*velTerm + p.WeightRange*rngTerm + p.WeightAzimuth*azTerm
	if d2 < 0 {
		d2 = 0 // clamp numerical underflow
	}
	return d2
}

// normalizeAngleDiff maps an angular difference to [-pi, pi].
func normalizeAngleDiff(diff float64) float64 {
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff < -math.Pi {
		diff += 2 * math.Pi
	}
	return diff
}

func regionQuery(points []detect.Detection, idx *spatialIndex, i int, p Params) []int {
	eps := adaptiveEpsilon(points[i], p)
	eps2 := eps * eps
	cands := idx.candidates(points[i].X, points[i].Y, eps)

	out := make([]int, 0, len(cands))
	for _, j := range cands {
		if weightedDistanceSquared(points[i], points[j], p) <= eps2 {
			out = append(out, j)
		}
	}
	return out
}

func expandCluster(points []detect.Detection, idx *spatialIndex, labels []int, seedIdx int, neighbors []int, clusterID int, p Params) {
	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		i := neighbors[j]
		if labels[i] == -1 {
			labels[i] = clusterID // noise becomes a border point
		}
		if labels[i] != 0 {
			continue
		}
		labels[i] = clusterID
		more := regionQuery(points, idx, i, p)
		if len(more) >= p.MinPoints {
			neighbors = append(neighbors, more...)
		}
	}
}

func buildClusters(points []detect.Detection, labels []int, maxClusterID int, p Params) []Cluster {
	out := make([]Cluster, 0, maxClusterID)
	for cid := 1; cid <= maxClusterID; cid++ {
		members := make([]detect.Detection, 0)
		for i, l := range labels {
			if l == cid {
				members = append(members, points[i])
			}
		}
		if len(members) == 0 {
			continue
		}
		if len(members) < p.MinPoints || (p.MaxClusterSize > 0 && len(members) > p.MaxClusterSize) {
			continue
		}
		c := computeMetrics(members, p)
		if p.MinClusterDensity > 0 && c.density() < p.MinClusterDensity {
			continue
		}
		out = append(out, c.Cluster)
	}
	return out
}

type metricsResult struct {
	Cluster
	volume float64
}

func (m metricsResult) density() float64 {
	if m.volume <= 0 {
		return math.Inf(1) // a degenerate (zero-volume) cluster is never density-rejected
	}
	return float64(m.Count) / m.volume
}

func computeMetrics(members []detect.Detection, p Params) metricsResult {
	n := float64(len(members))
	var sumX, sumY, sumZ float64
	var sumVX, sumVY, sumVZ float64
	velCount := 0
	var sumSNR float64

	for _, d := range members {
		sumX += d.X
		sumY += d.Y
		sumZ += d.Z
		sumSNR += float64(d.SNR)
		if d.HasVelocity {
			sumVX += d.VX
			sumVY += d.VY
			sumVZ += d.VZ
			velCount++
		}
	}
	cx, cy, cz := sumX/n, sumY/n, sumZ/n

	var cov [9]float64
	for _, d := range members {
		dx, dy, dz := d.X-cx, d.Y-cy, d.Z-cz
		cov[0] += dx * dx
		cov[1] += dx * dy
		cov[2] += dx * dz
		cov[3] += dy * dx
		cov[4] += dy * dy
		cov[5] += dy * dz
		cov[6] += dz * dx
		cov[7] += dz * dy
		cov[8] += dz * dz
	}
	for i := range cov {
		cov[i] /= n
	}

	minX, maxX := members[0].X, members[0].X
	minY, maxY := members[0].Y, members[0].Y
	minZ, maxZ := members[0].Z, members[0].Z
	for _, d := range members {
		minX, maxX = math.Min(minX, d.X), math.Max(maxX, d.X)
		minY, maxY = math.Min(minY, d.Y), math.Max(maxY, d.Y)
		minZ, maxZ = math.Min(minZ, d.Z), math.Max(maxZ, d.Z)
	}
	volume := (maxX - minX) * (maxY - minY) * (maxZ - minZ)

	meanSNR := sumSNR / n
	confidence := math.Min(1.0, math.Max(0.0, (meanSNR/30.0)*math.Min(1.0, n/float64(max(1, p.MinPoints)))))

	refs := ringbuf.New[uint64](max(1, p.MaxClusterSize))
	for _, d := range members {
		refs.Push(detectionRef(d))
	}

	c := Cluster{
		CentroidX:          cx,
		CentroidY:          cy,
		CentroidZ:          cz,
		PositionCovariance: cov,
		Confidence:         confidence,
		MeanSNR:            meanSNR,
		DetectionRefs:      refs,
		Count:              len(members),
	}
	if velCount > 0 {
		c.HasVelocity = true
		c.CentroidVX = sumVX / float64(velCount)
		c.CentroidVY = sumVY / float64(velCount)
		c.CentroidVZ = sumVZ / float64(velCount)
	}

	return metricsResult{Cluster: c, volume: volume}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
