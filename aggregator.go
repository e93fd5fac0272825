// aggregator.go - Windowed batch rendering for offline export

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"sort"
	"time"
)

// window owns the events whose timestamps fall inside one half-open
// interval [origin + index*size, origin + (index+1)*size).
type window struct {
	index  int64
	events []ParameterEvent
}

// WindowAggregator groups mapped events into fixed-duration windows and
// renders each window to a finite buffer. It trades the scheduler's
// real-time responsiveness for determinism: the output is fully
// reproducible from a static event list.
type WindowAggregator struct {
	windowSize time.Duration
	sampleRate int
	polyphony  int
	profile    *Profile

	origin  time.Time
	started bool
	cursor  int64
	windows []*window
	late    uint64
}

func NewWindowAggregator(profile *Profile, windowSize time.Duration, sampleRate, polyphony int) *WindowAggregator {
	return &WindowAggregator{
		windowSize: windowSize,
		sampleRate: sampleRate,
		polyphony:  polyphony,
		profile:    profile,
	}
}

// Add assigns an event to the window covering its timestamp. The window
// origin is fixed by the first event; the cursor only moves forward, so
// events with timestamps behind the current window are dropped as late.
func (a *WindowAggregator) Add(ev ParameterEvent) {
	if !a.started {
		a.origin = ev.When
		a.started = true
	}

	offset := ev.When.Sub(a.origin)
	if offset < 0 {
		a.late++
		return
	}
	idx := int64(offset / a.windowSize)
	if idx < a.cursor {
		a.late++
		return
	}
	if idx > a.cursor {
		a.cursor = idx
	}

	if n := len(a.windows); n > 0 && a.windows[n-1].index == idx {
		a.windows[n-1].events = append(a.windows[n-1].events, ev)
		return
	}
	a.windows = append(a.windows, &window{index: idx, events: []ParameterEvent{ev}})
}

// Late returns how many events were dropped for arriving behind the
// cursor.
func (a *WindowAggregator) Late() uint64 { return a.late }

// WindowCount returns the number of non-empty windows collected so far.
func (a *WindowAggregator) WindowCount() int { return len(a.windows) }

// Flush renders every collected window in timestamp order and returns the
// concatenated sample buffer. Empty gap windows between non-empty ones
// render as silence so the output timeline stays contiguous. A fresh
// engine performs the whole pass, which makes repeated flushes of the
// same event list bit-identical. The aggregator is reset afterwards.
func (a *WindowAggregator) Flush() []float32 {
	if len(a.windows) == 0 {
		return nil
	}

	windowSamples := int(a.windowSize.Seconds() * float64(a.sampleRate))
	span := a.windows[len(a.windows)-1].index + 1
	out := make([]float32, span*int64(windowSamples))

	engine := NewSynthEngine(a.sampleRate, a.polyphony, a.profile)

	next := 0
	for idx := int64(0); idx < span; idx++ {
		dst := out[idx*int64(windowSamples) : (idx+1)*int64(windowSamples)]
		if next < len(a.windows) && a.windows[next].index == idx {
			a.renderWindow(engine, a.windows[next], dst)
			next++
		} else {
			// Gap window: no events, voices from the previous window
			// keep decaying through it.
			engine.RenderBlock(dst)
		}
	}

	a.windows = nil
	a.started = false
	a.cursor = 0
	return out
}

// renderWindow renders exactly one window's worth of samples, triggering
// each event at its sample offset inside the window.
func (a *WindowAggregator) renderWindow(engine *SynthEngine, w *window, dst []float32) {
	winStart := a.origin.Add(time.Duration(w.index) * a.windowSize)

	events := w.events
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].When.Before(events[j].When)
	})

	pos := 0
	for _, ev := range events {
		off := int(float64(ev.When.Sub(winStart)) / float64(time.Second) * float64(a.sampleRate))
		if off > len(dst) {
			off = len(dst)
		}
		if off > pos {
			engine.RenderBlock(dst[pos:off])
			pos = off
		}
		engine.Trigger(ev)
	}
	if pos < len(dst) {
		engine.RenderBlock(dst[pos:])
	}
}
