// Package pipeline wires the DECODE, CLUSTER, ASSOCIATE+UPDATE, MANAGE
// and PUBLISH stages into one supervised, bounded-queue pipeline, plus
// the Beam Request cueing channel as a low-rate fifth output of
// MANAGE.
package pipeline

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/shridharbhandiwad/ModularTracker/internal/monitoring"
	"github.com/shridharbhandiwad/ModularTracker/internal/telemetry"
	"github.com/shridharbhandiwad/ModularTracker/internal/timeutil"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/beam"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/cluster"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/detect"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/health"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/track"
)

// clusterOffloadThreshold is the batch size above which CLUSTER splits
// work across the worker pool instead of clustering the whole batch on
// its single dedicated goroutine.
const clusterOffloadThreshold = 256

// Pipeline is the composition root: bounded channels between stages, a
// suture.Supervisor tree governing their lifecycle, and the shared
// Track Registry, Beam Request cuer, health registry and telemetry
// stats every stage reads or writes.
type Pipeline struct {
	cfg   Config
	clock timeutil.Clock

	rawFrames  chan []byte
	detections chan []detect.Detection
	clusters   chan []cluster.Cluster
	managed    chan []*track.Track

	registry *track.Registry
	cuer     *beam.Cuer
	stats    *telemetry.Stats
	healthR  *health.Registry

	tree     *suture.Supervisor
	ingest   *suture.Supervisor
	tracking *suture.Supervisor
	output   *suture.Supervisor

	latencies     map[string]*latencyBudget
	decodeBreaker *health.Breaker
}

// New constructs a Pipeline from cfg. It does not start any goroutines;
// call Serve or ServeBackground to run it.
func New(cfg Config) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	tuning := cfg.Tuning

	queueSize := tuning.GetQueueSizeLimit()
	p := &Pipeline{
		cfg:        cfg,
		clock:      cfg.Clock,
		rawFrames:  make(chan []byte, queueSize),
		detections: make(chan []detect.Detection, queueSize),
		clusters:   make(chan []cluster.Cluster, queueSize),
		managed:    make(chan []*track.Track, queueSize),
		registry:   track.NewRegistry(),
		cuer:       beam.NewCuer(queueSize, tuning.GetMaxCueRateHz()),
		stats:      &telemetry.Stats{},
		healthR:    health.NewRegistry(),
		latencies:  make(map[string]*latencyBudget),
	}

	deadline := time.Duration(tuning.GetProcessingTimeoutMs()) * time.Millisecond
	for _, stage := range []string{"decode", "cluster", "manage", "publish"} {
		p.latencies[stage] = newLatencyBudget(stage, deadline, 64)
	}

	spec := suture.Spec{
		EventHook:        p.eventHook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          tuning.GetShutdownHardDeadline(),
	}
	p.tree = suture.New("tracker", spec)
	p.ingest = suture.New("ingest", spec)
	p.tracking = suture.New("tracking", spec)
	p.output = suture.New("output", spec)
	p.tree.Add(p.ingest)
	p.tree.Add(p.tracking)
	p.tree.Add(p.output)

	drainTimeout := tuning.GetShutdownDrainTimeout()

	p.decodeBreaker = p.healthR.Boundary("decode", 5, 10*time.Second)
	p.ingest.Add(&decodeStage{
		in:      p.rawFrames,
		out:     p.detections,
		timeout: drainTimeout,
		clock:   p.clock,
		stats:   p.stats,
		breaker: p.decodeBreaker,
		budget:  p.latencies["decode"],
	})
	p.ingest.Add(&clusterStage{
		cfg:              tuning,
		in:               p.detections,
		out:              p.clusters,
		timeout:          drainTimeout,
		clock:            p.clock,
		stats:            p.stats,
		breaker:          p.healthR.Boundary("cluster", 5, 10*time.Second),
		budget:           p.latencies["cluster"],
		offloadThreshold: clusterOffloadThreshold,
	})

	p.tracking.Add(&manageStage{
		cfg:      tuning,
		sensorID: cfg.SensorID,
		in:       p.clusters,
		out:      p.managed,
		timeout:  drainTimeout,
		clock:    p.clock,
		stats:    p.stats,
		breaker:  p.healthR.Boundary("manage", 5, 10*time.Second),
		budget:   p.latencies["manage"],
		registry: p.registry,
		cuer:     p.cuer,
	})

	p.output.Add(&publishStage{
		in:      p.managed,
		clock:   p.clock,
		health:  p.healthR,
		hmiRate: tuning.GetPublishRateHMIHz(),
		fusRate: tuning.GetPublishRateFusionHz(),
		hmiSink: cfg.HMIAdapter,
		fusSink: cfg.FusionAdapter,
		stats:   p.stats,
		budget:  p.latencies["publish"],
	})
	if cfg.CueAdapter != nil {
		p.output.Add(&cueStage{out: p.cuer.Out(), sink: cfg.CueAdapter})
	}

	return p
}

func (p *Pipeline) eventHook(ev suture.Event) {
	monitoring.Logf("pipeline supervisor event: %v", ev)
}

// Submit offers one raw byte frame to DECODE. It is the detection
// ingestion contract's on_bytes callback: it must return quickly and
// not block the caller beyond an enqueue of bounded cost, so a full
// queue past the drain timeout drops the oldest queued frame rather
// than blocking indefinitely.
func (p *Pipeline) Submit(frame []byte) {
	enqueue(p.rawFrames, frame, p.cfg.Tuning.GetShutdownDrainTimeout(), p.clock, p.stats, telemetry.StageDecode, p.decodeBreaker)
}

// Serve runs the pipeline until ctx is cancelled, then drains
// cooperatively up to the configured hard shutdown deadline before the
// supervisor force-terminates any stage still running.
func (p *Pipeline) Serve(ctx context.Context) error {
	return p.tree.Serve(ctx)
}

// ServeBackground runs the pipeline in a background goroutine.
func (p *Pipeline) ServeBackground(ctx context.Context) <-chan error {
	return p.tree.ServeBackground(ctx)
}

// Stats returns a point-in-time snapshot of the pipeline's hot-path
// counters.
func (p *Pipeline) Stats() telemetry.Snapshot {
	return p.stats.Snapshot()
}

// Health returns the aggregate DEGRADED/NOMINAL status across every
// queue boundary's circuit breaker.
func (p *Pipeline) Health() health.Status {
	return p.healthR.Overall()
}

// ActiveTracks returns the current count of non-terminated tracks, for
// mirroring into telemetry.Mirror's gauge.
func (p *Pipeline) ActiveTracks() int {
	return p.registry.ActiveCount()
}

// MirrorTelemetry republishes the current Stats snapshot and health
// status into the telemetry package's Prometheus instruments. Call
// this on a schedule (e.g. from the embedding binary's own ticker).
func (p *Pipeline) MirrorTelemetry() {
	telemetry.Mirror(p.Stats(), p.ActiveTracks(), p.Health() == health.Nominal)
}
