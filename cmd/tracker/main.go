// Command tracker wires a synthetic radar byte source through the
// tracking pipeline to a stdout publisher. It is a minimal composition
// root for exercising the pipeline end to end, not a production
// ingestion daemon (byte framing, HMI transport and fusion transport
// are all external collaborators per the core's scope).
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/config"
	"github.com/shridharbhandiwad/ModularTracker/internal/monitoring"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/beam"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/pipeline"
)

var (
	configPath = flag.String("config", "", "path to a tuning config JSON file (defaults to config/tracker.defaults.json)")
	sensorID   = flag.String("sensor", "sim-0", "sensor id tagged onto tracks born from this source")
	rateHz     = flag.Float64("rate", 10.0, "synthetic detection batch rate, Hz")
	targets    = flag.Int("targets", 3, "number of synthetic targets to simulate")
	quiet      = flag.Bool("quiet", false, "suppress per-publish stdout output; only log stats periodically")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	hmi := &stdoutAdapter{quiet: *quiet}
	cue := &stdoutCueAdapter{quiet: *quiet}

	p := pipeline.New(pipeline.Config{
		Tuning:        cfg,
		SensorID:      *sensorID,
		HMIAdapter:    hmi,
		FusionAdapter: hmi,
		CueAdapter:    cue,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := p.ServeBackground(ctx)

	sim := newSimulator(*targets)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rateHz))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	log.Printf("tracker: running with %d synthetic targets at %.1f Hz, sensor=%s", *targets, *rateHz, *sensorID)

	for {
		select {
		case <-ctx.Done():
			log.Print("tracker: shutdown signal received, draining pipeline")
			if err := <-serveErr; err != nil && err != context.Canceled {
				log.Printf("tracker: pipeline exited with error: %v", err)
			}
			return
		case now := <-ticker.C:
			p.Submit(sim.nextFrame(now))
		case <-statsTicker.C:
			p.MirrorTelemetry()
			snap := p.Stats()
			log.Printf("tracker: detections=%d clusters=%d tracks_created=%d active=%d health=%s",
				snap.DetectionsProcessed, snap.ClustersFormed, snap.TracksCreated, p.ActiveTracks(), p.Health())
		}
	}
}

// loadConfig loads tuning from path, or falls back to the canonical
// defaults file and finally to EmptyTrackerConfig's built-in defaults if
// neither is found on disk.
func loadConfig(path string) (cfg *config.TrackerConfig, err error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tracker: %v; using built-in defaults", r)
			cfg, err = config.EmptyTrackerConfig(), nil
		}
	}()
	return config.MustLoadDefaultConfig(), nil
}

// stdoutAdapter implements pipeline.OutputAdapter by printing each
// snapshot as a JSON line, standing in for the real HMI/fusion
// consumers this module treats as external collaborators.
type stdoutAdapter struct {
	quiet bool
}

func (a *stdoutAdapter) PublishSnapshot(s pipeline.HealthSnapshot) {
	if a.quiet || len(s.Tracks) == 0 {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(s)
}

// stdoutCueAdapter implements pipeline.CueAdapter by logging each
// accepted BeamRequest, standing in for the real dwell scheduler.
type stdoutCueAdapter struct {
	quiet bool
}

func (a *stdoutCueAdapter) PublishCue(r beam.Request) {
	if a.quiet {
		return
	}
	monitoring.Logf("beam cue: track=%s az=%.3f el=%.3f dwell=%.3fs scan_at=%s",
		r.TrackID, r.Azimuth, r.Elevation, r.DwellSec, r.PredictedScan.Format(time.RFC3339Nano))
}

// simulator produces synthetic DECODE frames for a handful of targets
// moving on simple straight-line paths, purely to exercise the pipeline
// without a real radar byte source.
type simulator struct {
	nextID  uint64
	targets []simTarget
}

type simTarget struct {
	x, y, vx, vy float64
}

func newSimulator(n int) *simulator {
	if n < 1 {
		n = 1
	}
	s := &simulator{targets: make([]simTarget, n)}
	for i := range s.targets {
		angle := rand.Float64() * 2 * math.Pi
		speed := 20 + rand.Float64()*30
		s.targets[i] = simTarget{
			x:  rand.Float64()*2000 - 1000,
			y:  rand.Float64()*2000 - 1000,
			vx: speed * math.Cos(angle),
			vy: speed * math.Sin(angle),
		}
	}
	return s
}

func (s *simulator) nextFrame(now time.Time) []byte {
	const dt = 0.1
	recs := make([][101]byte, len(s.targets))
	for i := range s.targets {
		t := &s.targets[i]
		t.x += t.vx * dt
		t.y += t.vy * dt
		s.nextID++
		writeRecord(&recs[i], s.nextID, now, t.x, t.y, t.vx, t.vy)
	}
	return encodeFrame(recs, now)
}

func writeRecord(rec *[101]byte, id uint64, now time.Time, x, y, vx, vy float64) {
	off := 0
	putU64 := func(v uint64) { binary.BigEndian.PutUint64(rec[off:], v); off += 8 }
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }
	putU8 := func(v uint8) { rec[off] = v; off++ }
	putF32 := func(v float32) { binary.BigEndian.PutUint32(rec[off:], math.Float32bits(v)); off += 4 }
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(rec[off:], v); off += 4 }

	rng := math.Hypot(x, y)
	az := math.Atan2(y, x)

	putU64(id)
	putU64(uint64(now.UnixNano()))
	putF64(x)
	putF64(y)
	putF64(0) // z
	putU8(1)  // hasVelocity
	putF64(vx)
	putF64(vy)
	putF64(0) // vz
	putF64(rng)
	putF64(az)
	putF64(0) // elevation
	putF32(18 + rand.Float32()*10)
	putF32(1.0)
	putU32(0)
}

func encodeFrame(recs [][101]byte, _ time.Time) []byte {
	const headerSize = 6
	buf := make([]byte, headerSize+len(recs)*101)
	buf[0] = 0xAD
	buf[1] = 1
	buf[2] = 1
	buf[3] = 0
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(recs)))
	off := headerSize
	for _, r := range recs {
		copy(buf[off:], r[:])
		off += 101
	}
	return buf
}
