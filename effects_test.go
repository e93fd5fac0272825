// effects_test.go - Effect chain behavior tests

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"testing"
)

func TestBuildEffectChain_MatchesPatchOrder(t *testing.T) {
	patch := Patch{
		Effects: []EffectConfig{
			{Type: EFFECT_REVERB, Mix: 0.3, DecayS: 1.0},
			{Type: EFFECT_LOWPASS, Cutoff: 800},
			{Type: EFFECT_COMPRESSOR, Threshold: -20, Ratio: 4.0},
		},
	}
	chain := buildEffectChain(patch, testSampleRate)
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if _, ok := chain[0].(*Reverb); !ok {
		t.Errorf("stage 0 is %T, want *Reverb", chain[0])
	}
	if _, ok := chain[1].(*SVFilter); !ok {
		t.Errorf("stage 1 is %T, want *SVFilter", chain[1])
	}
	if _, ok := chain[2].(*Compressor); !ok {
		t.Errorf("stage 2 is %T, want *Compressor", chain[2])
	}
}

func TestSVFilter_LowpassAttenuatesHighFrequencies(t *testing.T) {
	t.Log("=== STATE VARIABLE FILTER ===")
	t.Log("A lowpass at 800Hz must pass 200Hz with far more energy than 8kHz")

	measure := func(freq float32) float64 {
		f := newSVFilter(EffectConfig{Type: EFFECT_LOWPASS, Cutoff: 800}, testSampleRate)
		var energy float64
		phase := float32(0)
		dt := freq / testSampleRate
		for i := 0; i < testSampleRate/2; i++ {
			out := f.Process(fastSin(phase * TWO_PI))
			phase += dt
			if phase >= 1 {
				phase -= 1
			}
			// Skip the settling transient
			if i > 1000 {
				energy += float64(out) * float64(out)
			}
		}
		return energy
	}

	low := measure(200)
	high := measure(8000)
	t.Logf("Energy at 200Hz: %.1f, at 8kHz: %.1f", low, high)
	if low < high*4 {
		t.Errorf("lowpass barely attenuates: low=%g high=%g", low, high)
	}
}

func TestSVFilter_ResetClearsState(t *testing.T) {
	f := newSVFilter(EffectConfig{Type: EFFECT_LOWPASS, Cutoff: 500}, testSampleRate)
	for i := 0; i < 100; i++ {
		f.Process(0.7)
	}
	if f.lp == 0 && f.bp == 0 {
		t.Fatal("filter accumulated no state")
	}
	f.Reset()
	if f.lp != 0 || f.bp != 0 || f.hp != 0 {
		t.Error("Reset left residual filter state")
	}
}

func TestReverb_ProducesTail(t *testing.T) {
	t.Log("=== REVERB TAIL ===")
	t.Log("An impulse must keep producing energy after the dry signal ends")

	r := newReverb(EffectConfig{Type: EFFECT_REVERB, Mix: 0.5, DecayS: 2.0}, testSampleRate)

	r.Process(1.0)
	var tail float64
	for i := 0; i < testSampleRate; i++ {
		out := r.Process(0)
		tail += float64(out) * float64(out)
	}
	if tail == 0 {
		t.Error("no reverb tail after impulse")
	}
}

func TestReverb_SetMixClamps(t *testing.T) {
	r := newReverb(EffectConfig{Type: EFFECT_REVERB, Mix: 0.3, DecayS: 1.0}, testSampleRate)
	r.SetMix(1.7)
	if r.mix != 1.0 {
		t.Errorf("mix = %g after SetMix(1.7), want clamped 1.0", r.mix)
	}
	r.SetMix(-0.2)
	if r.mix != 0.0 {
		t.Errorf("mix = %g after SetMix(-0.2), want clamped 0.0", r.mix)
	}
}

func TestCompressor_ReducesLoudPassesQuiet(t *testing.T) {
	t.Log("=== COMPRESSOR ===")

	c := newCompressor(EffectConfig{Type: EFFECT_COMPRESSOR, Threshold: -20, Ratio: 4.0})

	// Quiet signal well under the -20dB threshold passes unchanged.
	for i := 0; i < 1000; i++ {
		in := float32(0.01)
		if out := c.Process(in); out != in {
			t.Fatalf("quiet sample altered: %g -> %g", in, out)
		}
	}

	// Loud steady signal settles to reduced gain.
	c.Reset()
	var out float32
	for i := 0; i < 5000; i++ {
		out = c.Process(0.9)
	}
	if out >= 0.9 {
		t.Errorf("loud sample not compressed: out = %g", out)
	}
	if out <= 0 {
		t.Errorf("compression inverted or muted the signal: out = %g", out)
	}
}

func TestEffectMemory_ResetMatchesFreshChain(t *testing.T) {
	t.Log("=== EFFECT MEMORY RESET ===")
	t.Log("A profile switch rebuilds the chain; its output must match a chain that never ran")

	features := builtinFeatures()
	p, err := LoadProfile(PROFILE_AMBIENT, features)
	if err != nil {
		t.Fatal(err)
	}

	// Dirty engine: run signal through, then switch to the same profile,
	// which rebuilds the chain with zeroed memory.
	dirty := NewSynthEngine(testSampleRate, 4, p)
	dirty.Trigger(testEvent(440, WAVE_SINE, 0.2))
	buf := make([]float32, 4096)
	dirty.RenderBlock(buf)
	dirty.SetProfile(p)

	fresh := NewSynthEngine(testSampleRate, 4, p)

	// Same trigger into both; if old delay-line contents survived the
	// switch, outputs diverge.
	ev := testEvent(330, WAVE_SINE, 0.1)
	dirty.ForceRelease()
	for !dirty.Quiet() {
		dirty.RenderBlock(buf)
	}
	dirty.SetProfile(p) // clear the tail the fade-out pushed into the chain

	dirty.Trigger(ev)
	fresh.Trigger(ev)

	a := make([]float32, 4096)
	b := make([]float32, 4096)
	dirty.RenderBlock(a)
	fresh.RenderBlock(b)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs after effect reset: %g vs %g", i, a[i], b[i])
		}
	}
}
