// main_test.go - End-to-end pipeline tests

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunBatch_DemoTrafficToWAV(t *testing.T) {
	t.Log("=== END-TO-END BATCH RENDER ===")
	t.Log("Synthetic traffic through the full pipeline into a decodable WAV file")

	cfg := DefaultConfig()
	extractor := NewFeatureExtractor()
	normalizer := NewNormalizer(cfg.NormalizerRanges())
	profile, err := LoadProfile(PROFILE_MUSICAL, extractor.FeatureNames())
	if err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(t.TempDir(), "demo.wav")
	source := NewTrafficGenerator(42, 100)

	if err := runBatch(cfg, profile, extractor, normalizer, source, outPath, quietLogger()); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Data) == 0 {
		t.Fatal("empty render")
	}
	// 100 bursty events at 20-300ms apart always span multiple 1s windows.
	if len(buf.Data)%cfg.SampleRate != 0 {
		t.Errorf("render length %d is not a whole number of windows", len(buf.Data))
	}
	if len(buf.Data) < 2*cfg.SampleRate {
		t.Errorf("render covers %d samples, expected multiple windows", len(buf.Data))
	}

	var peak int
	for _, s := range buf.Data {
		if s > peak {
			peak = s
		}
		if -s > peak {
			peak = -s
		}
	}
	if peak == 0 {
		t.Error("rendered audio is pure silence")
	}
	if peak > PCM16_FULL_SCALE {
		t.Errorf("peak %d exceeds full scale", peak)
	}
}

func TestRunBatch_NoEvents(t *testing.T) {
	cfg := DefaultConfig()
	extractor := NewFeatureExtractor()
	normalizer := NewNormalizer(cfg.NormalizerRanges())
	profile, err := LoadProfile(PROFILE_AMBIENT, extractor.FeatureNames())
	if err != nil {
		t.Fatal(err)
	}

	source := NewTrafficGenerator(1, 0)
	outPath := filepath.Join(t.TempDir(), "empty.wav")
	if err := runBatch(cfg, profile, extractor, normalizer, source, outPath, quietLogger()); err == nil {
		t.Error("empty source rendered without error, want a no-events failure")
	}
}

func TestRunLive_HeadlessDemo(t *testing.T) {
	t.Log("=== END-TO-END LIVE PIPELINE (HEADLESS) ===")

	cfg := DefaultConfig()
	extractor := NewFeatureExtractor()
	normalizer := NewNormalizer(cfg.NormalizerRanges())
	profile, err := LoadProfile(PROFILE_ABSTRACT, extractor.FeatureNames())
	if err != nil {
		t.Fatal(err)
	}

	// The headless sink drains the scheduler at block rate, so the
	// producer path, queue and shutdown sequencing all run for real.
	// Unpaced so the test is quick.
	source := NewTrafficGenerator(7, 50)
	if err := runLive(cfg, profile, extractor, normalizer, source, true, quietLogger()); err != nil {
		t.Fatal(err)
	}
}
