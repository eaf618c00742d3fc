package detect

import (
	"encoding/binary"
	"math"
	"sort"
)

// Frame layout (big endian, fixed-size records):
//
//	offset 0: magic    uint8  = 0xAD
//	offset 1: version  uint8  = 1
//	offset 2: kind      uint8  (KindDetectionBatch = 1)
//	offset 3: reserved uint8
//	offset 4: count    uint16
//	offset 6: records, recordSize bytes each
const (
	magicByte         = 0xAD
	frameVersion      = 1
	kindDetectionBatch = 1
	headerSize        = 6
	recordSize        = 101
)

// Decode translates an opaque byte frame into a batch of detections.
// It is a pure function of its input: it holds no state across calls
// and a malformed frame returns a non-nil *Error without touching any
// shared pipeline state. Successful output is sorted by timestamp
// ascending, ties broken by detection id.
func Decode(frame []byte) ([]Detection, error) {
	if len(frame) < headerSize {
		return nil, newError(KindTruncated, len(frame), "frame shorter than header")
	}
	if frame[0] != magicByte {
		return nil, newError(KindBadMagic, 0, "unexpected magic byte")
	}
	kind := frame[2]
	if kind != kindDetectionBatch {
		return nil, newError(KindUnknownKind, 2, "unrecognised frame kind")
	}

	count := int(binary.BigEndian.Uint16(frame[4:6]))
	want := headerSize + count*recordSize
	if len(frame) < want {
		return nil, newError(KindTruncated, len(frame), "frame shorter than declared record count")
	}

	out := make([]Detection, 0, count)
	off := headerSize
	for i := 0; i < count; i++ {
		rec := frame[off : off+recordSize]
		d, err := decodeRecord(rec, off)
		if err != nil {
			return nil, err
		}
		if !d.Valid() {
			return nil, newError(KindInvalidField, off, "detection violates range/azimuth/elevation invariant")
		}
		out = append(out, d)
		off += recordSize
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimestampNanos != out[j].TimestampNanos {
			return out[i].TimestampNanos < out[j].TimestampNanos
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func decodeRecord(b []byte, baseOffset int) (Detection, error) {
	var d Detection
	r := &cursor{buf: b, base: baseOffset}

	d.ID = r.u64()
	d.TimestampNanos = int64(r.u64())
	d.X = r.f64()
	d.Y = r.f64()
	d.Z = r.f64()
	d.HasVelocity = r.u8() != 0
	d.VX = r.f64()
	d.VY = r.f64()
	d.VZ = r.f64()
	d.Range = r.f64()
	d.Azimuth = r.f64()
	d.Elevation = r.f64()
	d.SNR = r.f32()
	d.RCS = r.f32()
	d.BeamID = r.u32()

	if r.err != nil {
		return Detection{}, r.err
	}
	return d, nil
}

// cursor is a tiny sequential reader over a fixed-size record, tracking
// the absolute offset for error reporting.
type cursor struct {
	buf []byte
	pos int
	base int
	err *Error
}

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.pos+n > len(c.buf) {
		c.err = newError(KindTruncated, c.base+c.pos, "record truncated")
		return false
	}
	return true
}

func (c *cursor) u8() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.buf[c.pos]
	c.pos++
	return v
}

func (c *cursor) u32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) u64() uint64 {
	if !c.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v
}

func (c *cursor) f32() float32 {
	return math.Float32frombits(c.u32())
}

func (c *cursor) f64() float64 {
	return math.Float64frombits(c.u64())
}
