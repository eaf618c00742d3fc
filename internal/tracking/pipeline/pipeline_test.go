package pipeline

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shridharbhandiwad/ModularTracker/internal/config"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/beam"
)

// syntheticDetection is the handful of fields this test's frame encoder
// needs; it mirrors detect.Detection's on-wire layout without importing
// the detect package's internals.
type syntheticDetection struct {
	id    uint64
	tsNs  int64
	x, y  float64
	snr   float32
}

// encodeFrame builds a raw DECODE frame byte-for-byte matching the
// layout documented in internal/tracking/detect/decode.go: a 6-byte
// header (magic, version, kind, reserved, count) followed by one
// 101-byte fixed record per detection.
func encodeFrame(dets []syntheticDetection) []byte {
	const (
		magicByte          = 0xAD
		frameVersion       = 1
		kindDetectionBatch = 1
		headerSize         = 6
		recordSize         = 101
	)

	buf := make([]byte, headerSize+len(dets)*recordSize)
	buf[0] = magicByte
	buf[1] = frameVersion
	buf[2] = kindDetectionBatch
	buf[3] = 0
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(dets)))

	off := headerSize
	putU64 := func(v uint64) { binary.BigEndian.PutUint64(buf[off:], v); off += 8 }
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }
	putU8 := func(v uint8) { buf[off] = v; off++ }
	putF32 := func(v float32) {
		binary.BigEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(buf[off:], v); off += 4 }

	for _, d := range dets {
		putU64(d.id)
		putU64(uint64(d.tsNs))
		putF64(d.x)
		putF64(d.y)
		putF64(0) // z
		putU8(0)  // hasVelocity
		putF64(0) // vx
		putF64(0) // vy
		putF64(0) // vz
		putF64(math.Hypot(d.x, d.y))     // range
		putF64(math.Atan2(d.y, d.x))     // azimuth
		putF64(0)                        // elevation
		putF32(d.snr)
		putF32(1.0) // rcs
		putU32(0)   // beamID
	}
	return buf
}

type capturingAdapter struct {
	mu   sync.Mutex
	last HealthSnapshot
	n    int
}

func (c *capturingAdapter) PublishSnapshot(s HealthSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
	c.n++
}

func (c *capturingAdapter) snapshot() (HealthSnapshot, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.n
}

type capturingCueAdapter struct {
	mu    sync.Mutex
	cues  []beam.Request
}

func (c *capturingCueAdapter) PublishCue(r beam.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cues = append(c.cues, r)
}

func testTuning() *config.TrackerConfig {
	cfg := config.EmptyTrackerConfig()
	confirm := 2
	maxCue := 1000.0 // avoid rate-limiting cue requests within the test window
	cfg.ConfirmationThreshold = &confirm
	cfg.MaxCueRateHz = &maxCue
	return cfg
}

func newTestPipeline(t *testing.T, hmi, fusion OutputAdapter, cue CueAdapter) *Pipeline {
	t.Helper()
	return New(Config{
		Tuning:        testTuning(),
		SensorID:      "test-sensor",
		HMIAdapter:    hmi,
		FusionAdapter: fusion,
		CueAdapter:    cue,
	})
}

func TestPipelineDecodesClustersAssociatesAndPublishes(t *testing.T) {
	hmi := &capturingAdapter{}
	p := newTestPipeline(t, hmi, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Serve(ctx) }()

	// The same single detection submitted three times, 20ms apart, so the
	// same track gets matched and confirmed across batches.
	frame := encodeFrame([]syntheticDetection{{id: 1, tsNs: 1, x: 100, y: 10, snr: 25}})
	for i := 0; i < 3; i++ {
		p.Submit(frame)
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		_, n := hmi.snapshot()
		return n > 0
	}, 2*time.Second, 10*time.Millisecond, "expected at least one HMI snapshot")

	require.Eventually(t, func() bool {
		snap, _ := hmi.snapshot()
		for _, tr := range snap.Tracks {
			if tr.State == "CONFIRMED" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "expected a track to reach CONFIRMED")
}

func TestPipelineSubmitNeverBlocksOnMalformedFrame(t *testing.T) {
	p := newTestPipeline(t, &capturingAdapter{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Serve(ctx) }()

	done := make(chan struct{})
	go func() {
		p.Submit([]byte{0x00, 0x00})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a malformed frame")
	}
}

func TestPipelineEmitsBeamRequestsForConfirmedTracks(t *testing.T) {
	cue := &capturingCueAdapter{}
	// Cues are only emitted in BEAM_REQUEST mode; the default is TWS.
	tuning := testTuning()
	mode := config.TrackingModeBeamRequest
	tuning.TrackingMode = &mode
	p := New(Config{
		Tuning:     tuning,
		SensorID:   "test-sensor",
		HMIAdapter: &capturingAdapter{},
		CueAdapter: cue,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Serve(ctx) }()

	frame := encodeFrame([]syntheticDetection{{id: 1, tsNs: 1, x: 200, y: 20, snr: 25}})
	for i := 0; i < 4; i++ {
		p.Submit(frame)
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		cue.mu.Lock()
		defer cue.mu.Unlock()
		return len(cue.cues) > 0
	}, 2*time.Second, 10*time.Millisecond, "expected at least one BeamRequest cue once a track confirms")
}

func TestPipelineStatsAndHealthAreObservable(t *testing.T) {
	p := newTestPipeline(t, &capturingAdapter{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Serve(ctx) }()

	frame := encodeFrame([]syntheticDetection{{id: 1, tsNs: 1, x: 300, y: 30, snr: 25}})
	p.Submit(frame)

	require.Eventually(t, func() bool {
		return p.Stats().DetectionsProcessed > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, "NOMINAL", string(p.Health()))
}
