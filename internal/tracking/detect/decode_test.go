package detect

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/gopacket"
)

// frameHeader is a minimal gopacket.SerializableLayer wrapping this
// package's 6-byte frame header, used only to build literal test frames
// the same way the rest of the retrieval pack builds synthetic wire
// frames for its decode tests.
type frameHeader struct {
	kind  uint8
	count uint16
}

func (h frameHeader) LayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

func (h frameHeader) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(headerSize)
	if err != nil {
		return err
	}
	buf[0] = magicByte
	buf[1] = frameVersion
	buf[2] = h.kind
	buf[3] = 0
	binary.BigEndian.PutUint16(buf[4:6], h.count)
	return nil
}

func encodeRecord(d Detection) []byte {
	rec := make([]byte, recordSize)
	off := 0
	putU64 := func(v uint64) {
		binary.BigEndian.PutUint64(rec[off:], v)
		off += 8
	}
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }
	putU8 := func(v uint8) { rec[off] = v; off++ }
	putF32 := func(v float32) {
		binary.BigEndian.PutUint32(rec[off:], math.Float32bits(v))
		off += 4
	}
	putU32 := func(v uint32) {
		binary.BigEndian.PutUint32(rec[off:], v)
		off += 4
	}

	putU64(d.ID)
	putU64(uint64(d.TimestampNanos))
	putF64(d.X)
	putF64(d.Y)
	putF64(d.Z)
	if d.HasVelocity {
		putU8(1)
	} else {
		putU8(0)
	}
	putF64(d.VX)
	putF64(d.VY)
	putF64(d.VZ)
	putF64(d.Range)
	putF64(d.Azimuth)
	putF64(d.Elevation)
	putF32(d.SNR)
	putF32(d.RCS)
	putU32(d.BeamID)
	return rec
}

func buildFrame(t *testing.T, kind uint8, dets []Detection) []byte {
	t.Helper()
	records := make([]byte, 0, len(dets)*recordSize)
	for _, d := range dets {
		records = append(records, encodeRecord(d)...)
	}

	buf := gopacket.NewSerializeBuffer()
	hdr := frameHeader{kind: kind, count: uint16(len(dets))}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, hdr, gopacket.Payload(records)); err != nil {
		t.Fatalf("failed to serialize test frame: %v", err)
	}
	return buf.Bytes()
}

func sampleDetection(id uint64, ts int64) Detection {
	return Detection{
		ID:             id,
		TimestampNanos: ts,
		X:              1000, Y: 200, Z: 50,
		HasVelocity: true,
		VX:          10, VY: -5, VZ: 0,
		Range:     1020,
		Azimuth:   0.2,
		Elevation: 0.05,
		SNR:       18,
		RCS:       5,
		BeamID:    3,
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	want := []Detection{
		sampleDetection(1, 200),
		sampleDetection(2, 100),
	}
	frame := buildFrame(t, kindDetectionBatch, want)

	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(got))
	}
	// Sorted by timestamp ascending.
	if got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("expected output sorted by timestamp, got ids %d,%d", got[0].ID, got[1].ID)
	}
}

func TestDecodeEmptyFrameNoDetections(t *testing.T) {
	frame := buildFrame(t, kindDetectionBatch, nil)
	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero detections, got %d", len(got))
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	frame := buildFrame(t, 99, []Detection{sampleDetection(1, 1)})
	_, err := Decode(frame)
	if err == nil {
		t.Fatal("expected error for unknown frame kind")
	}
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindUnknownKind {
		t.Fatalf("expected KindUnknownKind, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	frame := buildFrame(t, kindDetectionBatch, []Detection{sampleDetection(1, 1)})
	_, err := Decode(frame[:len(frame)-10])
	if err == nil {
		t.Fatal("expected error for truncated frame")
	}
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindTruncated {
		t.Fatalf("expected KindTruncated, got %v", err)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	frame := buildFrame(t, kindDetectionBatch, []Detection{sampleDetection(1, 1)})
	frame[0] = 0x00
	_, err := Decode(frame)
	if err == nil {
		t.Fatal("expected error for bad magic byte")
	}
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindBadMagic {
		t.Fatalf("expected KindBadMagic, got %v", err)
	}
}

func TestDecodeInvalidRange(t *testing.T) {
	bad := sampleDetection(1, 1)
	bad.Range = -5
	frame := buildFrame(t, kindDetectionBatch, []Detection{bad})
	_, err := Decode(frame)
	if err == nil {
		t.Fatal("expected error for negative range")
	}
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindInvalidField {
		t.Fatalf("expected KindInvalidField, got %v", err)
	}
}

func TestDecodeTiesBrokenByID(t *testing.T) {
	dets := []Detection{
		sampleDetection(5, 100),
		sampleDetection(3, 100),
		sampleDetection(4, 100),
	}
	frame := buildFrame(t, kindDetectionBatch, dets)
	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].ID != 3 || got[1].ID != 4 || got[2].ID != 5 {
		t.Fatalf("expected tie-break by ascending id, got %d,%d,%d", got[0].ID, got[1].ID, got[2].ID)
	}
}
