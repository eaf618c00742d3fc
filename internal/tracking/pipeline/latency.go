package pipeline

import (
	"sync"
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/monitoring"
)

// latencyBudget tracks the last N processing durations for one pipeline
// stage and reports when the configured soft deadline is exceeded.
// Exceeding the deadline never drops work; it only emits a
// LatencyBudgetExceeded event through the logger.
type latencyBudget struct {
	mu       sync.Mutex
	stage    string
	deadline time.Duration
	samples  []time.Duration
	depth    int
	next     int
	filled   bool
	exceeded int64
}

func newLatencyBudget(stage string, deadline time.Duration, depth int) *latencyBudget {
	if depth <= 0 {
		depth = 32
	}
	return &latencyBudget{
		stage:    stage,
		deadline: deadline,
		samples:  make([]time.Duration, depth),
		depth:    depth,
	}
}

// record stores d and, if it exceeds the stage's soft deadline, emits a
// LatencyBudgetExceeded event without affecting the caller's control flow.
func (b *latencyBudget) record(d time.Duration) {
	b.mu.Lock()
	b.samples[b.next] = d
	b.next = (b.next + 1) % b.depth
	if b.next == 0 {
		b.filled = true
	}
	exceeded := d > b.deadline
	if exceeded {
		b.exceeded++
	}
	b.mu.Unlock()

	if exceeded {
		monitoring.Logf("LatencyBudgetExceeded stage=%s took=%s budget=%s", b.stage, d, b.deadline)
	}
}

// mean returns the mean of the retained samples, or 0 if none have been
// recorded yet.
func (b *latencyBudget) mean() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.next
	if b.filled {
		n = b.depth
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += b.samples[i]
	}
	return sum / time.Duration(n)
}

// exceededCount returns how many recorded samples blew the soft deadline.
func (b *latencyBudget) exceededCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}
