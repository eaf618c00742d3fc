package pipeline

import (
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/monitoring"
	"github.com/shridharbhandiwad/ModularTracker/internal/telemetry"
	"github.com/shridharbhandiwad/ModularTracker/internal/timeutil"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/health"
)

// enqueue offers item to ch, blocking for up to timeout (the classic
// full-queue backpressure suspension point). If the queue is still
// full once the timeout elapses, the oldest queued item is dropped to
// make room rather than rejecting the new item outright, matching the
// "oldest-batch drop for queues (with counter)" resource-exhaustion
// policy: newer work is worth more than stale work under sustained
// overload.
func enqueue[T any](ch chan T, item T, timeout time.Duration, clock timeutil.Clock, stats *telemetry.Stats, stage telemetry.Stage, breaker *health.Breaker) {
	select {
	case ch <- item:
		breaker.Record(true)
		return
	default:
	}

	timer := clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- item:
		breaker.Record(true)
		return
	case <-timer.C():
	}

	// Backpressure persisted past the timeout: this counts against
	// the breaker regardless of whether the retry below finds room.
	breaker.Record(false)

	select {
	case <-ch:
		stats.RecordQueueDrop(stage)
		monitoring.Logf("pipeline: dropping oldest queued item at stage=%s past backpressure timeout=%s", stage, timeout)
	default:
	}

	select {
	case ch <- item:
	default:
		// Another producer won the race for the freed slot; count this
		// item as the drop instead of blocking indefinitely.
		stats.RecordQueueDrop(stage)
	}
}

// dequeue blocks on ch until an item is available or ctx is done,
// reporting whether an item was actually received.
func dequeue[T any](ctx doneWaiter, ch <-chan T) (T, bool) {
	var zero T
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, false
		}
		return v, true
	case <-ctx.Done():
		return zero, false
	}
}

// doneWaiter is satisfied by context.Context; named narrowly so
// dequeue doesn't need to import context just for this one method.
type doneWaiter interface {
	Done() <-chan struct{}
}
