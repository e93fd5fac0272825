// audio_lut_test.go - Lookup table accuracy tests

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"math"
	"testing"
)

func TestFastSin_Accuracy(t *testing.T) {
	t.Log("=== SINE LOOKUP TABLE ACCURACY ===")
	t.Log("Comparing interpolated table output against math.Sin across a full cycle")

	const steps = 10000
	worst := 0.0
	for i := 0; i < steps; i++ {
		phase := float32(i) / steps * TWO_PI
		got := float64(fastSin(phase))
		want := math.Sin(float64(phase))
		if diff := math.Abs(got - want); diff > worst {
			worst = diff
		}
	}
	t.Logf("Worst-case error across %d phase points: %.2e", steps, worst)
	if worst > 1e-3 {
		t.Errorf("sine LUT error %.2e exceeds 1e-3", worst)
	}
}

func TestFastTanh_BoundedAndMonotonic(t *testing.T) {
	prev := float32(math.Inf(-1))
	for i := -200; i <= 200; i++ {
		x := float32(i) / 40.0
		y := fastTanh(x)
		if y < -1.0 || y > 1.0 {
			t.Fatalf("fastTanh(%g) = %g escapes [-1,1]", x, y)
		}
		if y < prev {
			t.Fatalf("fastTanh not monotonic at x=%g: %g < %g", x, y, prev)
		}
		prev = y
	}
}

func TestPolyBLEP_ZeroAwayFromEdges(t *testing.T) {
	// The correction is only non-zero within one sample step of a phase
	// discontinuity; mid-cycle phases must pass through untouched.
	dt := float32(440.0 / 44100.0)
	for _, phase := range []float32{0.1, 0.25, 0.5, 0.75, 0.9} {
		if c := polyBLEP32(phase, dt); c != 0 {
			t.Errorf("polyBLEP32(%g, %g) = %g, want 0 away from edges", phase, dt, c)
		}
	}
	if c := polyBLEP32(dt/2, dt); c == 0 {
		t.Error("polyBLEP32 returned no correction just after the edge")
	}
}
