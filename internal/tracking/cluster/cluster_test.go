package cluster

import (
	"testing"

	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/detect"
)

func detAt(id uint64, x, y, z float64, snr float32) detect.Detection {
	return detect.Detection{
		ID: id, X: x, Y: y, Z: z,
		Range: x, Azimuth: 0, Elevation: 0,
		SNR: snr,
	}
}

func testParams() Params {
	p := DefaultParams()
	p.MinPoints = 2
	p.Epsilon = 5.0
	return p
}

func TestClusterEmptyInput(t *testing.T) {
	got, stats := Run(nil, testParams())
	if got != nil {
		t.Fatalf("expected nil clusters for empty input, got %v", got)
	}
	if stats.DroppedBelowSNR != 0 {
		t.Fatalf("expected no drops for empty input")
	}
}

func TestClusterGroupsNearbyDetections(t *testing.T) {
	dets := []detect.Detection{
		detAt(1, 0, 0, 0, 20),
		detAt(2, 1, 0, 0, 20),
		detAt(3, 0, 1, 0, 20),
		detAt(4, 500, 500, 0, 20),
		detAt(5, 501, 500, 0, 20),
	}
	clusters, _ := Run(dets, testParams())
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	total := 0
	for _, c := range clusters {
		total += c.Count
		if c.Count < testParams().MinPoints {
			t.Errorf("cluster %d has %d members, below min_points", c.ID, c.Count)
		}
	}
	if total != 5 {
		t.Fatalf("expected all 5 detections assigned to a cluster, got %d", total)
	}
}

func TestClusterDropsBelowSNRThreshold(t *testing.T) {
	p := testParams()
	p.SNRThreshold = 15
	dets := []detect.Detection{
		detAt(1, 0, 0, 0, 5),
		detAt(2, 1, 0, 0, 5),
	}
	clusters, stats := Run(dets, p)
	if len(clusters) != 0 {
		t.Fatalf("expected zero clusters when all detections are below SNR threshold, got %d", len(clusters))
	}
	if stats.DroppedBelowSNR != 2 {
		t.Fatalf("expected 2 dropped detections, got %d", stats.DroppedBelowSNR)
	}
}

func TestClusterNoisePointsExcluded(t *testing.T) {
	p := testParams()
	p.MinPoints = 3
	dets := []detect.Detection{
		detAt(1, 0, 0, 0, 20),
		detAt(2, 1, 0, 0, 20),
		// only 2 points close together, below min_points=3 -> noise
		detAt(3, 900, 900, 0, 20),
	}
	clusters, stats := Run(dets, p)
	if len(clusters) != 0 {
		t.Fatalf("expected no clusters to form below min_points, got %d", len(clusters))
	}
	if stats.NoisePoints != 3 {
		t.Fatalf("expected all 3 points marked noise, got %d", stats.NoisePoints)
	}
}

func TestClusterPermutationInvariant(t *testing.T) {
	dets := []detect.Detection{
		detAt(1, 0, 0, 0, 20),
		detAt(2, 1, 0, 0, 20),
		detAt(3, 0, 1, 0, 20),
	}
	reversed := []detect.Detection{dets[2], dets[1], dets[0]}

	c1, _ := Run(dets, testParams())
	c2, _ := Run(reversed, testParams())

	if len(c1) != len(c2) {
		t.Fatalf("expected same cluster count regardless of input order: %d vs %d", len(c1), len(c2))
	}
	if len(c1) == 1 {
		if c1[0].Count != c2[0].Count {
			t.Fatalf("expected same member count regardless of input order")
		}
	}
}

func TestClusterRespectsMaxClusterSize(t *testing.T) {
	p := testParams()
	p.MinPoints = 1
	p.MaxClusterSize = 2
	dets := []detect.Detection{
		detAt(1, 0, 0, 0, 20),
		detAt(2, 0.1, 0, 0, 20),
		detAt(3, 0.2, 0, 0, 20),
	}
	clusters, _ := Run(dets, p)
	for _, c := range clusters {
		if c.Count > p.MaxClusterSize {
			t.Fatalf("cluster %d has %d members, exceeds max_cluster_size %d", c.ID, c.Count, p.MaxClusterSize)
		}
	}
}

func TestClusterVelocityAveraging(t *testing.T) {
	a := detAt(1, 0, 0, 0, 20)
	a.HasVelocity = true
	a.VX, a.VY = 10, 0
	b := detAt(2, 1, 0, 0, 20)
	b.HasVelocity = true
	b.VX, b.VY = 20, 0

	clusters, _ := Run([]detect.Detection{a, b}, testParams())
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if !clusters[0].HasVelocity {
		t.Fatal("expected cluster to carry inherited velocity")
	}
	if clusters[0].CentroidVX != 15 {
		t.Fatalf("expected averaged VX=15, got %f", clusters[0].CentroidVX)
	}
}
