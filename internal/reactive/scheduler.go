package reactive

import (
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler coalesces update requests into a serialized sequence of render
// passes. At most one render runs at a time, and a render observes state as
// of when it starts, not as of when it was requested.
type Scheduler struct {
	render       func() error
	firstUpdated func()
	updated      func()
	observe      func(error)

	gate      chan struct{}
	gateOnce  sync.Once
	closing   chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	pending    bool
	executing  bool
	hasUpdated bool
	complete   chan struct{}
}

type Option func(*Scheduler)

// WithFirstUpdated runs fn once, after the first completed cycle.
func WithFirstUpdated(fn func()) Option {
	return func(s *Scheduler) { s.firstUpdated = fn }
}

// WithUpdated runs fn after every completed cycle.
func WithUpdated(fn func()) Option {
	return func(s *Scheduler) { s.updated = fn }
}

// WithErrorObserver receives render failures. The default logs them.
func WithErrorObserver(fn func(error)) Option {
	return func(s *Scheduler) { s.observe = fn }
}

// New returns a scheduler for render. Cycles are held until Enable.
func New(render func() error, opts ...Option) *Scheduler {
	done := make(chan struct{})
	close(done)

	s := &Scheduler{
		render:   render,
		gate:     make(chan struct{}),
		closing:  make(chan struct{}),
		complete: done,
		observe: func(err error) {
			slog.Error("update failed", "err", err)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestUpdate schedules a render cycle unless one is already pending.
func (s *Scheduler) RequestUpdate() {
	select {
	case <-s.closing:
		return
	default:
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = true
	prev := s.complete
	done := make(chan struct{})
	s.complete = done
	s.mu.Unlock()

	go s.cycle(prev, done)
}

func (s *Scheduler) cycle(prev <-chan struct{}, done chan struct{}) {
	defer close(done)

	// Wait for the previous cycle, whatever its outcome.
	select {
	case <-prev:
	case <-s.closing:
		s.abort()
		return
	}

	select {
	case <-s.gate:
	case <-s.closing:
		s.abort()
		return
	}

	s.mu.Lock()
	select {
	case <-s.closing:
		s.pending = false
		s.mu.Unlock()
		return
	default:
	}
	s.pending = false
	s.executing = true
	s.mu.Unlock()

	err := s.run()

	s.mu.Lock()
	s.executing = false
	first := !s.hasUpdated
	s.hasUpdated = true
	s.mu.Unlock()

	if first && s.firstUpdated != nil {
		s.firstUpdated()
	}
	if s.updated != nil {
		s.updated()
	}
	if err != nil {
		s.observe(err)
	}
}

func (s *Scheduler) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
		}
	}()
	return s.render()
}

func (s *Scheduler) abort() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}

// Enable releases held and future cycles.
func (s *Scheduler) Enable() {
	s.gateOnce.Do(func() { close(s.gate) })
}

// Close aborts cycles that have not started rendering. A render already in
// progress finishes; wait on UpdateComplete to observe it.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// UpdateComplete is closed when the most recently requested cycle ends.
func (s *Scheduler) UpdateComplete() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

func (s *Scheduler) IsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler) IsExecuting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executing
}

// HasUpdated reports whether any cycle has completed.
func (s *Scheduler) HasUpdated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasUpdated
}
