package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/telemetry"
	"github.com/shridharbhandiwad/ModularTracker/internal/timeutil"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/beam"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/health"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/track"
)

// publishStage is the PUBLISH worker. It continuously drains the
// MANAGE output queue, retaining only the latest track snapshot (older
// ones are superseded, never processed — there is no value in
// publishing a stale batch once a newer one exists), and fans that
// snapshot out to the HMI and fusion adapters on their own independent
// tickers, since the two consumers publish at different rates from the
// same underlying track state.
type publishStage struct {
	in       <-chan []*track.Track
	clock    timeutil.Clock
	health   *health.Registry
	hmiRate  float64
	fusRate  float64
	hmiSink  OutputAdapter
	fusSink  OutputAdapter
	stats    *telemetry.Stats
	budget   *latencyBudget

	mu     sync.Mutex
	latest []*track.Track
}

func (s *publishStage) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.drain(ctx)
	}()

	if s.hmiSink != nil && s.hmiRate > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick(ctx, s.hmiRate, s.hmiSink)
		}()
	}
	if s.fusSink != nil && s.fusRate > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick(ctx, s.fusRate, s.fusSink)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (s *publishStage) drain(ctx context.Context) {
	for {
		tracks, ok := dequeue[[]*track.Track](ctx, s.in)
		if !ok {
			return
		}
		s.mu.Lock()
		s.latest = tracks
		s.mu.Unlock()
	}
}

func (s *publishStage) tick(ctx context.Context, hz float64, sink OutputAdapter) {
	period := time.Duration(float64(time.Second) / hz)
	ticker := s.clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			start := s.clock.Now()
			s.publishOnce(now, sink)
			s.budget.record(s.clock.Since(start))
		}
	}
}

func (s *publishStage) publishOnce(now time.Time, sink OutputAdapter) {
	s.mu.Lock()
	tracks := s.latest
	s.mu.Unlock()

	published := make([]PublishedTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.State == track.Terminated {
			continue
		}
		published = append(published, trackToPublished(t))
	}

	sink.PublishSnapshot(HealthSnapshot{
		Tracks: published,
		Status: string(s.health.Overall()),
		AsOf:   now,
	})
}

// cueStage forwards accepted BeamRequest cues from the Cuer's output
// channel to the external CueAdapter. It is a single forwarding loop,
// run as one more service under the pipeline's output supervisor.
type cueStage struct {
	out  <-chan beam.Request
	sink CueAdapter
}

func (s *cueStage) Serve(ctx context.Context) error {
	for {
		req, ok := dequeue[beam.Request](ctx, s.out)
		if !ok {
			return ctx.Err()
		}
		if s.sink != nil {
			s.sink.PublishCue(req)
		}
	}
}
