package pipeline

import (
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/config"
	"github.com/shridharbhandiwad/ModularTracker/internal/timeutil"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/beam"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/track"
)

// PublishedTrack is the external, read-only view of one track handed to
// an OutputAdapter. It deliberately mirrors only the fields an
// out-of-process consumer (HMI, fusion) needs, not the internal IMM
// bundle or history ring.
type PublishedTrack struct {
	ID       string
	State    string
	X, Y     float64
	VX, VY   float64
	Quality  float64
	SensorID string
	AsOf     time.Time
}

// HealthSnapshot pairs a batch of published tracks with the system's
// current health status, so consumers can observe degradation without a
// separate health channel.
type HealthSnapshot struct {
	Tracks []PublishedTrack
	Status string // "NOMINAL" or "DEGRADED"
	AsOf   time.Time
}

// OutputAdapter is the external collaborator PUBLISH hands snapshots
// to. HMI and fusion consumers are out-of-scope external components
// specified only by this interface.
type OutputAdapter interface {
	PublishSnapshot(HealthSnapshot)
}

// CueAdapter is the external collaborator the Beam Request cueing
// channel hands accepted dwell requests to.
type CueAdapter interface {
	PublishCue(beam.Request)
}

// Config bundles everything the pipeline's construction needs beyond
// the tuning config itself: the sensor identity tagged onto newly born
// tracks, an injectable clock (RealClock in production, MockClock in
// tests), and the output adapters PUBLISH and the cueing channel feed.
type Config struct {
	Tuning   *config.TrackerConfig
	SensorID string
	Clock    timeutil.Clock

	HMIAdapter    OutputAdapter
	FusionAdapter OutputAdapter
	CueAdapter    CueAdapter
}

func trackToPublished(t *track.Track) PublishedTrack {
	x, y := t.FusedPosition()
	vx, vy := t.FusedVelocity()
	return PublishedTrack{
		ID:       t.ID,
		State:    string(t.State),
		X:        x,
		Y:        y,
		VX:       vx,
		VY:       vy,
		Quality:  t.QualityScore,
		SensorID: t.SensorID,
		AsOf:     t.LastUpdateTimestamp,
	}
}
