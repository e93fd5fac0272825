// sink.go - Output sink contract and backend selection

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"sync"
	"time"
)

const (
	AUDIO_SINK_OTO = iota
	AUDIO_SINK_HEADLESS
)

// BlockSource is the pull contract a sink drives: fill dst with the next
// block of samples at the configured rate. The Scheduler implements it.
type BlockSource interface {
	Pull(dst []float32)
}

// AudioSink drains a BlockSource at a fixed rate, either into an audio
// device or nowhere (headless). The sink owns device I/O; the core only
// guarantees blocks are ready whenever the sink asks.
type AudioSink interface {
	Start() error
	Stop()
	Close() error
}

func NewAudioSink(backend, sampleRate int, src BlockSource) (AudioSink, error) {
	switch backend {
	case AUDIO_SINK_OTO:
		return newOtoSink(sampleRate, src)
	case AUDIO_SINK_HEADLESS:
		return newHeadlessSink(sampleRate, src), nil
	default:
		return nil, fmt.Errorf("unknown audio sink backend: %d", backend)
	}
}

// headlessSink drains the source at the configured rate and discards the
// samples. Used by tests and headless builds; the pipeline upstream runs
// exactly as it would against a real device.
type headlessSink struct {
	src        BlockSource
	sampleRate int

	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.WaitGroup
}

func newHeadlessSink(sampleRate int, src BlockSource) *headlessSink {
	return &headlessSink{src: src, sampleRate: sampleRate}
}

func (h *headlessSink) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return nil
	}
	h.stop = make(chan struct{})
	h.stopped.Add(1)

	const blockSize = 1024
	interval := time.Duration(blockSize) * time.Second / time.Duration(h.sampleRate)

	go func() {
		defer h.stopped.Done()
		buf := make([]float32, blockSize)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				h.src.Pull(buf)
			}
		}
	}()
	return nil
}

func (h *headlessSink) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return
	}
	close(h.stop)
	h.stopped.Wait()
	h.stop = nil
}

func (h *headlessSink) Close() error {
	h.Stop()
	return nil
}
