package track

import (
	"sort"
	"sync"
	"time"

	"github.com/shridharbhandiwad/ModularTracker/internal/config"
)

// Registry owns the live Track set, keyed by track id. MANAGE is the
// sole writer; ASSOCIATE+UPDATE reads it under a reader lock and
// PUBLISH reads snapshots — never the live map.
type Registry struct {
	mu     sync.RWMutex
	tracks map[string]*Track
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tracks: make(map[string]*Track)}
}

// Register adds a newly-born track to the registry.
func (r *Registry) Register(t *Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[t.ID] = t
}

// Get returns the live track for id, or nil if absent. Callers that
// only read should prefer Snapshot to avoid racing with MANAGE's
// in-place mutations.
func (r *Registry) Get(id string) *Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracks[id]
}

// Remove deletes a track by id, used by the registry GC once a
// TERMINATED track's tombstone has been observed by one PUBLISH cycle.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracks, id)
}

// Active returns the live tracks not in TERMINATED. MANAGE is the sole
// writer and is expected to mutate these in place (RecordHit,
// RecordMiss, the IMM bundle update) — callers other than MANAGE's own
// single goroutine must use Snapshot instead, which hands out
// independent copies safe to read concurrently with the next cycle's
// mutations.
func (r *Registry) Active() []*Track {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		if t.State != Terminated {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns a deep copy of the full active set (all states
// including TERMINATED, for one GC cycle's worth of tombstone
// visibility), safe for PUBLISH to read on its own goroutine while
// MANAGE's next cycle continues mutating the live tracks. The IMM
// bundle and trajectory history are cloned, not just the Track struct
// itself, since both hold pointers MANAGE writes into in place.
func (r *Registry) Snapshot() []*Track {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		copied := *t
		copied.Bundle = t.Bundle.Clone()
		copied.History = t.History.Clone()
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of tracks currently in the registry,
// including any not-yet-garbage-collected TERMINATED tracks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}

// ActiveCount returns the number of tracks not in TERMINATED.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tracks {
		if t.State != Terminated {
			n++
		}
	}
	return n
}

// EnforceCapacity evicts the worst-quality active track (tie-break:
// earliest creation first) while the active count exceeds
// cfg.GetMaxTracks(), per the MANAGE capacity-overflow transition.
func (r *Registry) EnforceCapacity(cfg *config.TrackerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit := cfg.GetMaxTracks()
	for {
		active := make([]*Track, 0, len(r.tracks))
		for _, t := range r.tracks {
			if t.State != Terminated {
				active = append(active, t)
			}
		}
		if len(active) <= limit {
			return
		}

		worst := active[0]
		for _, t := range active[1:] {
			if t.QualityScore < worst.QualityScore ||
				(t.QualityScore == worst.QualityScore && t.CreationTimestamp.Before(worst.CreationTimestamp)) {
				worst = t
			}
		}
		worst.State = Terminated
		worst.LastUpdateTimestamp = time.Now()
	}
}

// GC removes every TERMINATED track. MANAGE calls this once per cycle,
// right after taking the Snapshot it enqueues for PUBLISH, so each
// tombstone appears in exactly one such snapshot.
func (r *Registry) GC() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tracks {
		if t.State == Terminated {
			delete(r.tracks, id)
		}
	}
}
