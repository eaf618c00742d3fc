package main

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/detect"
)

// TestDefaultFlags verifies the package-level flag vars exist with the
// documented defaults.
func TestDefaultFlags(t *testing.T) {
	if *configPath != "" {
		t.Errorf("configPath default = %q, want empty", *configPath)
	}
	if *sensorID != "sim-0" {
		t.Errorf("sensorID default = %q, want sim-0", *sensorID)
	}
	if *rateHz != 10.0 {
		t.Errorf("rateHz default = %v, want 10.0", *rateHz)
	}
	if *targets != 3 {
		t.Errorf("targets default = %v, want 3", *targets)
	}
	if *quiet != false {
		t.Errorf("quiet default = %v, want false", *quiet)
	}
}

func TestNewSimulatorClampsToAtLeastOneTarget(t *testing.T) {
	s := newSimulator(0)
	if len(s.targets) != 1 {
		t.Fatalf("newSimulator(0) produced %d targets, want 1", len(s.targets))
	}
}

// TestSyntheticFrameDecodesBackToDetections is the round-trip check: a
// frame this binary writes must decode cleanly through the same wire
// format the DECODE stage expects, with record count and id preserved.
func TestSyntheticFrameDecodesBackToDetections(t *testing.T) {
	sim := newSimulator(2)
	frame := sim.nextFrame(time.Unix(0, 1000))

	dets, err := detect.Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed on synthetic frame: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	for i, d := range dets {
		if d.ID == 0 {
			t.Errorf("detection %d has zero ID", i)
		}
		if !d.HasVelocity {
			t.Errorf("detection %d expected HasVelocity true", i)
		}
	}
}

func TestEncodeFrameHeaderLayout(t *testing.T) {
	var recs [][101]byte
	recs = append(recs, [101]byte{})
	buf := encodeFrame(recs, time.Now())

	if buf[0] != 0xAD {
		t.Errorf("magic byte = %#x, want 0xAD", buf[0])
	}
	if buf[1] != 1 {
		t.Errorf("version = %d, want 1", buf[1])
	}
	if buf[2] != 1 {
		t.Errorf("kind = %d, want 1", buf[2])
	}
	count := binary.BigEndian.Uint16(buf[4:6])
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if len(buf) != 6+101 {
		t.Errorf("frame length = %d, want %d", len(buf), 6+101)
	}
}

func TestWriteRecordRangeMatchesHypot(t *testing.T) {
	var rec [101]byte
	writeRecord(&rec, 1, time.Now(), 30, 40, 0, 0)

	// range is the 10th field of the record, after
	// id(8) ts(8) x(8) y(8) z(8) hasVel(1) vx(8) vy(8) vz(8) = 65 bytes
	rangeBits := binary.BigEndian.Uint64(rec[65:73])
	got := math.Float64frombits(rangeBits)
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("range = %v, want 50", got)
	}
}
