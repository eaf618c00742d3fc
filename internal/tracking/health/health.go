// Package health tracks DEGRADED/NOMINAL status at each pipeline queue
// boundary, backed by a circuit breaker over enqueue outcomes.
package health

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Status is the coarse health state surfaced on a Track Registry
// snapshot.
type Status string

const (
	Nominal  Status = "NOMINAL"
	Degraded Status = "DEGRADED"
)

// ErrResourceExhausted is returned by Breaker.Record when an enqueue
// attempt failed (queue full, offload rejected), driving the breaker's
// failure count.
var ErrResourceExhausted = errors.New("resource exhausted")

// Breaker wraps one gobreaker instance per queue boundary (the pipeline
// registers decode, cluster and manage). It trips to DEGRADED once
// failureThreshold consecutive enqueue failures have been recorded, and
// half-open probes back to NOMINAL after timeout.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// New builds a Breaker for the named queue boundary. failureThreshold
// is the number of consecutive enqueue failures that trips the breaker
// open; timeout is how long it stays open before a half-open probe.
func New(name string, failureThreshold uint32, timeout time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// Record reports the outcome of one enqueue/publish attempt and
// returns the breaker's status after accounting for it.
func (b *Breaker) Record(ok bool) Status {
	_, _ = b.cb.Execute(func() (any, error) {
		if !ok {
			return nil, ErrResourceExhausted
		}
		return nil, nil
	})
	return b.Status()
}

// Status returns the breaker's current status without recording a new
// outcome: StateClosed/StateHalfOpen map to NOMINAL, StateOpen maps to
// DEGRADED.
func (b *Breaker) Status() Status {
	if b.cb.State() == gobreaker.StateOpen {
		return Degraded
	}
	return Nominal
}

// Name returns the queue boundary name this breaker protects.
func (b *Breaker) Name() string { return b.name }

// Registry tracks one Breaker per named queue boundary and reports the
// aggregate system health: DEGRADED if any boundary is degraded.
type Registry struct {
	breakers map[string]*Breaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Boundary returns (creating if necessary) the breaker for name.
func (r *Registry) Boundary(name string, failureThreshold uint32, timeout time.Duration) *Breaker {
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, failureThreshold, timeout)
	r.breakers[name] = b
	return b
}

// Overall returns DEGRADED if any registered boundary is degraded,
// NOMINAL otherwise.
func (r *Registry) Overall() Status {
	for _, b := range r.breakers {
		if b.Status() == Degraded {
			return Degraded
		}
	}
	return Nominal
}
