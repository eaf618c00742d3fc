// Package beam implements Beam Request cueing for Beam Request mode:
// for each CONFIRMED track, a rate-limited request for a dedicated
// radar dwell at the track's predicted next-scan epoch.
package beam

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Request carries one dwell-scheduling cue for a CONFIRMED track.
type Request struct {
	BeamID        string
	Azimuth       float64
	Elevation     float64
	DwellSec      float64
	TrackID       string
	PredictedScan time.Time
}

// Cuer rate-limits BeamRequest emission per track id and delivers
// accepted requests on a bounded, non-blocking channel. A full channel
// (downstream scheduler backpressure) drops the request rather than
// blocking MANAGE; callers should treat a drop as ResourceExhausted.
type Cuer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cueRate  rate.Limit
	burst    int

	out     chan Request
	dropped int64
}

// NewCuer creates a Cuer emitting onto a channel of the given capacity,
// rate-limiting each track to maxCueRateHz requests per second.
func NewCuer(capacity int, maxCueRateHz float64) *Cuer {
	if capacity <= 0 {
		capacity = 1
	}
	if maxCueRateHz <= 0 {
		maxCueRateHz = 10
	}
	return &Cuer{
		limiters: make(map[string]*rate.Limiter),
		cueRate:  rate.Limit(maxCueRateHz),
		burst:    1,
		out:      make(chan Request, capacity),
	}
}

// Out returns the channel accepted requests are delivered on.
func (c *Cuer) Out() <-chan Request { return c.out }

// Dropped returns the number of requests dropped so far because the
// output channel was full.
func (c *Cuer) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Request attempts to emit a BeamRequest for req.TrackID. Returns true
// if the request was accepted (rate budget available and the output
// channel had room), false if it was rate-limited or dropped under
// backpressure.
func (c *Cuer) Request(req Request) bool {
	limiter := c.limiterFor(req.TrackID)
	if !limiter.Allow() {
		return false
	}

	select {
	case c.out <- req:
		return true
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		return false
	}
}

func (c *Cuer) limiterFor(trackID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[trackID]
	if !ok {
		l = rate.NewLimiter(c.cueRate, c.burst)
		c.limiters[trackID] = l
	}
	return l
}

// Forget releases the rate limiter state for a track, called once the
// track terminates so the limiter map doesn't grow unbounded over a
// long-running deployment.
func (c *Cuer) Forget(trackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, trackID)
}
