// scheduler.go - Real-time event scheduling between capture and synthesis

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler reconciles the irregular event arrival process with the audio
// sink's fixed-rate pull. One producer calls Push, one consumer (the audio
// callback) calls Pull; the bounded ring between them is guarded by a
// mutex whose critical sections are O(1) and allocation-free, so the
// callback can never be stalled for long enough to cause a dropout.
type Scheduler struct {
	mu    sync.Mutex
	ring  []ParameterEvent
	head  int
	count int

	engine  *SynthEngine
	scratch []ParameterEvent // drained events, consumer-side only

	pendingProfile atomic.Pointer[Profile]
	stopRequested  atomic.Bool
	dropped        atomic.Uint64

	now func() time.Time // injectable clock
}

func NewScheduler(engine *SynthEngine, queueSize int) *Scheduler {
	return &Scheduler{
		ring:    make([]ParameterEvent, queueSize),
		engine:  engine,
		scratch: make([]ParameterEvent, queueSize),
		now:     time.Now,
	}
}

// Push enqueues a mapped event without ever blocking. On overflow the
// oldest queued event is discarded in favor of the new one: for
// monitoring, the newest traffic activity matters more than stale events.
func (s *Scheduler) Push(ev ParameterEvent) {
	s.mu.Lock()
	if s.count == len(s.ring) {
		s.head = (s.head + 1) % len(s.ring)
		s.count--
		s.dropped.Add(1)
	}
	s.ring[(s.head+s.count)%len(s.ring)] = ev
	s.count++
	s.mu.Unlock()
}

// SwitchProfile requests a profile change; it takes effect at the next
// Pull boundary. Events already queued keep the parameter space they were
// mapped under.
func (s *Scheduler) SwitchProfile(p *Profile) {
	s.pendingProfile.Store(p)
}

// Stop requests an immediate stop: at the next Pull boundary all in-flight
// voices get a short forced release instead of a sample discontinuity.
// Pull keeps rendering the fade-out tail; Drained reports completion.
func (s *Scheduler) Stop() {
	s.stopRequested.Store(true)
}

// Pull renders the next SampleBlock into dst. It drains every queued event
// whose target time has arrived, feeds them to the engine, and renders.
// An empty queue is an underrun, not an error: no new voices start, the
// existing ones decay naturally, and once all are silent the output is
// true silence. Pull never blocks.
func (s *Scheduler) Pull(dst []float32) {
	if p := s.pendingProfile.Swap(nil); p != nil {
		s.engine.SetProfile(p)
	}
	if s.stopRequested.CompareAndSwap(true, false) {
		s.engine.ForceRelease()
	}

	now := s.now()
	n := s.drainDue(now)
	for i := 0; i < n; i++ {
		s.engine.Trigger(s.scratch[i])
	}

	s.engine.RenderBlock(dst)
}

// drainDue moves due events from the ring into the consumer-side scratch
// buffer. O(queued) copies, no allocation, no I/O.
func (s *Scheduler) drainDue(now time.Time) int {
	s.mu.Lock()
	n := 0
	for s.count > 0 && n < len(s.scratch) {
		ev := s.ring[s.head]
		if ev.When.After(now) {
			break
		}
		s.scratch[n] = ev
		n++
		s.head = (s.head + 1) % len(s.ring)
		s.count--
	}
	s.mu.Unlock()
	return n
}

// Drained reports whether the queue is empty and every voice has gone
// silent: the steady idle state, and the stop-completion signal.
func (s *Scheduler) Drained() bool {
	s.mu.Lock()
	empty := s.count == 0
	s.mu.Unlock()
	return empty && s.engine.Quiet()
}

// Queued returns the number of pending events.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Dropped returns how many events were discarded under overflow pressure.
// Documented degradation, not an error.
func (s *Scheduler) Dropped() uint64 {
	return s.dropped.Load()
}
