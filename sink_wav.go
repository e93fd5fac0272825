// sink_wav.go - WAV file export for batch renders

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const PCM16_FULL_SCALE = 32767

// WriteWAV writes a mono 16-bit PCM WAV file from float32 samples in
// [-1,1]. The synthesis engine already soft-limits, so conversion here is
// plain full-scale expansion with a final safety clamp.
func WriteWAV(path string, sampleRate int, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wav export: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = floatToPCM16(s)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav export: %w", err)
	}
	return nil
}

func floatToPCM16(s float32) int {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int(s * PCM16_FULL_SCALE)
}
