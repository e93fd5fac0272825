//go:build !headless

// sink_oto.go - OTO v3 audio device sink

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// otoSink pulls sample blocks from a BlockSource through oto's player
// callback. The source reference is set once at construction and read
// lock-free on the hot path; the mutex only guards start/stop state.
type otoSink struct {
	ctx       *oto.Context
	player    *oto.Player
	src       BlockSource
	sampleBuf []float32 // pre-allocated, resized only on oversized reads
	started   bool
	mutex     sync.Mutex
}

func newOtoSink(sampleRate int, src BlockSource) (*otoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &otoSink{
		ctx:       ctx,
		src:       src,
		sampleBuf: make([]float32, 4096),
	}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

// Read is oto's pull callback. It must never block on anything but the
// scheduler's O(1) drain, so underruns degrade to silence rather than
// stalling the device.
func (s *otoSink) Read(p []byte) (n int, err error) {
	numSamples := len(p) / 4
	if numSamples == 0 {
		return 0, nil
	}
	if len(s.sampleBuf) < numSamples {
		s.sampleBuf = make([]float32, numSamples)
	}
	samples := s.sampleBuf[:numSamples]

	s.src.Pull(samples)

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:len(p)])
	return len(p), nil
}

func (s *otoSink) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.started && s.player != nil {
		s.player.Play()
		s.started = true
	}
	return nil
}

func (s *otoSink) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started && s.player != nil {
		s.player.Pause()
		s.started = false
	}
}

func (s *otoSink) Close() error {
	s.Stop()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.player != nil {
		err := s.player.Close()
		s.player = nil
		return err
	}
	return nil
}
