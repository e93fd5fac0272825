// sink_wav_test.go - WAV export round-trip tests

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestWriteWAV_RoundTrip(t *testing.T) {
	t.Log("=== WAV EXPORT ===")
	t.Log("Exported files must decode back with the same rate, length and sample values")

	samples := []float32{0, 0.5, -0.5, 1.0, -1.0, 0.25}
	path := filepath.Join(t.TempDir(), "out.wav")

	if err := WriteWAV(path, testSampleRate, samples); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if !dec.WasPCMAccessed() || dec.SampleRate != testSampleRate {
		t.Fatalf("decoded sample rate = %d, want %d", dec.SampleRate, testSampleRate)
	}
	if int(dec.NumChans) != 1 {
		t.Errorf("channels = %d, want mono", dec.NumChans)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}

	for i, want := range []int{0, 16383, -16383, 32767, -32767, 8191} {
		if buf.Data[i] != want {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want)
		}
	}
}

func TestFloatToPCM16_Clamps(t *testing.T) {
	cases := []struct {
		in   float32
		want int
	}{
		{0, 0},
		{1.0, 32767},
		{-1.0, -32767},
		{2.5, 32767},
		{-3.0, -32767},
	}
	for _, c := range cases {
		if got := floatToPCM16(c.in); got != c.want {
			t.Errorf("floatToPCM16(%g) = %d, want %d", c.in, got, c.want)
		}
	}
}
