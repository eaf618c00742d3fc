package pipeline

import (
	"context"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shridharbhandiwad/ModularTracker/internal/config"
	"github.com/shridharbhandiwad/ModularTracker/internal/monitoring"
	"github.com/shridharbhandiwad/ModularTracker/internal/telemetry"
	"github.com/shridharbhandiwad/ModularTracker/internal/timeutil"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/assoc"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/beam"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/cluster"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/detect"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/health"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/track"
)

// decodeStage is the DECODE worker: consumes raw byte frames, decodes
// them into detection batches, and enqueues the batch for CLUSTER. A
// frame that fails to decode is logged and dropped; decode errors never
// propagate across the queue boundary.
type decodeStage struct {
	in      <-chan []byte
	out     chan []detect.Detection
	timeout time.Duration
	clock   timeutil.Clock
	stats   *telemetry.Stats
	breaker *health.Breaker
	budget  *latencyBudget
}

func (s *decodeStage) Serve(ctx context.Context) error {
	for {
		frame, ok := dequeue[[]byte](ctx, s.in)
		if !ok {
			return ctx.Err()
		}

		start := s.clock.Now()
		dets, err := detect.Decode(frame)
		if err != nil {
			monitoring.Logf("DECODE: dropping frame: %v", err)
			continue
		}
		s.stats.DetectionsProcessed.Add(int64(len(dets)))
		s.budget.record(s.clock.Since(start))

		enqueue(s.out, dets, s.timeout, s.clock, s.stats, telemetry.StageDecode, s.breaker)
	}
}

// clusterStage is the CLUSTER worker: groups each detection batch into
// clusters via the weighted-distance DBSCAN variant. Large batches are
// split into chunks and clustered concurrently by a bounded worker
// pool, then merged — the per-cluster-batch subcomputation offload
// CLUSTER is allowed under load.
type clusterStage struct {
	cfg     *config.TrackerConfig
	in      <-chan []detect.Detection
	out     chan []cluster.Cluster
	timeout time.Duration
	clock   timeutil.Clock
	stats   *telemetry.Stats
	breaker *health.Breaker
	budget  *latencyBudget

	offloadThreshold int
}

func (s *clusterStage) Serve(ctx context.Context) error {
	params := clusterParams(s.cfg)
	for {
		dets, ok := dequeue[[]detect.Detection](ctx, s.in)
		if !ok {
			return ctx.Err()
		}

		start := s.clock.Now()
		clusters := s.clusterBatch(dets, params)
		s.budget.record(s.clock.Since(start))
		s.stats.ClustersFormed.Add(int64(len(clusters)))

		enqueue(s.out, clusters, s.timeout, s.clock, s.stats, telemetry.StageCluster, s.breaker)
	}
}

// clusterBatch runs the DBSCAN variant directly for small batches, or
// splits the batch into one chunk per worker (processing thread pool
// size, or GOMAXPROCS when that is unset) clustered in parallel and
// re-identified into one contiguous id space once the batch exceeds
// offloadThreshold.
func (s *clusterStage) clusterBatch(dets []detect.Detection, params cluster.Params) []cluster.Cluster {
	if len(dets) <= s.offloadThreshold {
		clusters, _ := cluster.Run(dets, params)
		return clusters
	}

	workers := s.cfg.GetThreadPoolSize()
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunkSize := (len(dets) + workers - 1) / workers
	if chunkSize < 1 {
		chunkSize = 1
	}

	nChunks := (len(dets) + chunkSize - 1) / chunkSize
	results := make([][]cluster.Cluster, nChunks)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < nChunks; i++ {
		i := i
		lo := i * chunkSize
		hi := lo + chunkSize
		if hi > len(dets) {
			hi = len(dets)
		}
		chunk := dets[lo:hi]
		g.Go(func() error {
			clusters, _ := cluster.Run(chunk, params)
			results[i] = clusters
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]cluster.Cluster, 0, len(dets))
	nextID := 0
	for _, cs := range results {
		for _, c := range cs {
			c.ID = nextID
			nextID++
			merged = append(merged, c)
		}
	}
	return merged
}

func clusterParams(cfg *config.TrackerConfig) cluster.Params {
	return cluster.Params{
		Epsilon:            cfg.GetClusterEpsilon(),
		MinPoints:          cfg.GetClusterMinPoints(),
		MaxClusterSize:     cfg.GetClusterMaxSize(),
		WeightPos:          cfg.GetClusterWeightPos(),
		WeightVel:          cfg.GetClusterWeightVel(),
		WeightRange:        cfg.GetClusterWeightRange(),
		WeightAzimuth:      cfg.GetClusterWeightAzimuth(),
		UseAdaptiveEpsilon: cfg.GetClusterUseAdaptiveEpsilon(),
		AdaptiveK:          cfg.GetClusterAdaptiveK(),
		SNRThreshold:       cfg.GetClusterSNRThreshold(),
		MaxClusters:        cfg.GetClusterMaxClusters(),
		MinClusterDensity:  cfg.GetClusterMinDensity(),
	}
}

// manageStage runs ASSOCIATE+UPDATE followed by MANAGE in one beat:
// gating+assignment+IMM update, then track birth from unassociated
// clusters, capacity enforcement, Beam Request cueing for CONFIRMED
// tracks, and registry GC of one cycle's worth of TERMINATED tombstones.
type manageStage struct {
	cfg      *config.TrackerConfig
	sensorID string
	in       <-chan []cluster.Cluster
	out      chan []*track.Track
	timeout  time.Duration
	clock    timeutil.Clock
	stats    *telemetry.Stats
	breaker  *health.Breaker
	budget   *latencyBudget

	registry *track.Registry
	cuer     *beam.Cuer

	lastTick time.Time
}

func (s *manageStage) Serve(ctx context.Context) error {
	s.lastTick = s.clock.Now()
	for {
		clusters, ok := dequeue[[]cluster.Cluster](ctx, s.in)
		if !ok {
			return ctx.Err()
		}

		start := s.clock.Now()
		now := start
		dt := now.Sub(s.lastTick).Seconds()
		if dt <= 0 {
			dt = 0.05
		}
		s.lastTick = now

		tracks := s.registry.Active()
		result := assoc.Run(s.cfg, tracks, clusters, dt, now)
		s.stats.GatingRejections.Add(int64(result.GatingRejections))
		s.stats.CovarianceRepairs.Add(int64(result.CovarianceRepairs))

		for _, ci := range result.UnassociatedClusters {
			c := clusters[ci]
			born := track.NewTrack(s.cfg, s.sensorID, c.CentroidX, c.CentroidY, c.CentroidVX, c.CentroidVY, c.HasVelocity, c.MeanSNR, now)
			s.registry.Register(born)
			s.stats.TracksCreated.Add(1)
		}

		s.registry.EnforceCapacity(s.cfg)

		published := s.registry.Snapshot()
		for _, t := range published {
			if t.State == track.Terminated {
				s.stats.TracksTerminated.Add(1)
				if s.cuer != nil {
					s.cuer.Forget(t.ID)
				}
			}
			if t.State == track.Confirmed && s.cuer != nil && s.cfg.GetTrackingMode() == config.TrackingModeBeamRequest {
				s.requestCue(t, now)
			}
		}
		s.registry.GC()

		s.budget.record(s.clock.Since(start))

		enqueue(s.out, published, s.timeout, s.clock, s.stats, telemetry.StageManage, s.breaker)
	}
}

// requestCue predicts where a CONFIRMED track will be at its next
// expected dwell and submits a BeamRequest cue for it. The predicted
// scan epoch is the track's fused position advanced one dwell period
// along its fused velocity, converted to azimuth/elevation for the
// dedicated-dwell scheduler.
func (s *manageStage) requestCue(t *track.Track, now time.Time) {
	x, y := t.FusedPosition()
	vx, vy := t.FusedVelocity()
	dwell := 1.0 / s.cfg.GetMaxCueRateHz()

	nx := x + vx*dwell
	ny := y + vy*dwell
	az := math.Atan2(ny, nx)

	droppedBefore := s.cuer.Dropped()
	s.cuer.Request(beam.Request{
		BeamID:        t.ID,
		Azimuth:       az,
		Elevation:     0, // no Z estimate in the 2D fused state; a flat-earth cue
		DwellSec:      dwell,
		TrackID:       t.ID,
		PredictedScan: now.Add(time.Duration(dwell * float64(time.Second))),
	})
	// Only a full cue channel counts as a drop; a request refused by the
	// per-track rate limit is not one.
	s.stats.BeamRequestsDropped.Add(s.cuer.Dropped() - droppedBefore)
}
