// mapper_test.go - Parameter mapping tests

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"math/rand"
	"testing"
	"time"
)

func randomVector(rng *rand.Rand, at time.Time, proto string) FeatureVector {
	return FeatureVector{
		Timestamp: at,
		Protocol:  proto,
		Values: map[string]float32{
			FEAT_PACKET_SIZE: rng.Float32(),
			FEAT_PORT_RANGE:  rng.Float32(),
			FEAT_ARRIVAL_GAP: rng.Float32(),
			FEAT_DIRECTION:   rng.Float32(),
		},
	}
}

func paramValue(ev ParameterEvent, param int) float32 {
	switch param {
	case PARAM_FREQUENCY:
		return ev.Frequency
	case PARAM_AMPLITUDE:
		return ev.Amplitude
	case PARAM_DURATION:
		return ev.Duration
	case PARAM_PAN:
		return ev.Pan
	case PARAM_FILTER_CUTOFF:
		return ev.FilterCutoff
	default:
		return ev.EffectMix
	}
}

func TestParamMapper_FilterCutoffModifier(t *testing.T) {
	p, err := LoadProfile(PROFILE_AMBIENT, builtinFeatures())
	if err != nil {
		t.Fatal(err)
	}
	p.Rules = append(p.Rules, MappingRule{
		Feature: FEAT_ARRIVAL_GAP, Param: PARAM_FILTER_CUTOFF,
		Min: 400, Max: 1600, Curve: CURVE_LINEAR,
	})
	m := NewParamMapper(p, 0)

	ev := m.Map(FeatureVector{
		Timestamp: time.Unix(0, 0),
		Protocol:  PROTO_TCP,
		Values:    map[string]float32{FEAT_ARRIVAL_GAP: 0.5},
	})
	if ev.FilterCutoff != 1000 {
		t.Errorf("filter cutoff = %g, want 1000", ev.FilterCutoff)
	}

	// Unmapped in the stock profile.
	m.SetProfile(mustProfile(t, PROFILE_AMBIENT))
	ev = m.Map(FeatureVector{Timestamp: time.Unix(1, 0), Protocol: PROTO_TCP,
		Values: map[string]float32{}})
	if ev.FilterCutoff != -1 {
		t.Errorf("unmapped filter cutoff = %g, want -1 sentinel", ev.FilterCutoff)
	}
}

func mustProfile(t *testing.T, name string) *Profile {
	t.Helper()
	p, err := LoadProfile(name, builtinFeatures())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParamMapper_OutputsStayInRuleRange(t *testing.T) {
	t.Log("=== MAPPING RANGE CONTRACT ===")
	t.Log("Every mapped parameter must land inside its rule's declared [Min,Max]")
	t.Log("for every profile, including smoothed values and extreme inputs")

	features := builtinFeatures()
	rng := rand.New(rand.NewSource(99))

	for name := range BuiltinProfiles() {
		p, err := LoadProfile(name, features)
		if err != nil {
			t.Fatalf("load %q: %v", name, err)
		}
		m := NewParamMapper(p, 50)

		at := time.Unix(0, 0)
		for i := 0; i < 200; i++ {
			fv := randomVector(rng, at, PROTO_TCP)
			if i%10 == 0 {
				// Hostile inputs: the mapper clamps, never rejects.
				fv.Values[FEAT_PACKET_SIZE] = -5.0
				fv.Values[FEAT_PORT_RANGE] = 7.0
			}
			ev := m.Map(fv)

			for _, rule := range p.Rules {
				got := paramValue(ev, rule.Param)
				if got < rule.Min || got > rule.Max {
					t.Fatalf("profile %q event %d: param %d = %g escapes [%g,%g]",
						name, i, rule.Param, got, rule.Min, rule.Max)
				}
			}
			at = at.Add(time.Duration(rng.Intn(200)+1) * time.Millisecond)
		}
	}
}

func TestParamMapper_UnmappedParamsKeepDefaults(t *testing.T) {
	// Alert maps frequency, amplitude and duration only.
	p, err := LoadProfile(PROFILE_ALERT, builtinFeatures())
	if err != nil {
		t.Fatal(err)
	}
	m := NewParamMapper(p, 0)

	ev := m.Map(randomVector(rand.New(rand.NewSource(1)), time.Unix(0, 0), PROTO_TCP))
	if ev.Pan != DEFAULT_PAN {
		t.Errorf("unmapped pan = %g, want default %g", ev.Pan, float32(DEFAULT_PAN))
	}
	if ev.EffectMix != -1 {
		t.Errorf("unmapped effect mix = %g, want -1 sentinel", ev.EffectMix)
	}
}

func TestParamMapper_WaveformPerProtocol(t *testing.T) {
	t.Log("=== WAVEFORM SELECTION ===")
	t.Log("Protocol classes select their patch waveform; unknown classes fall back to default")

	p, err := LoadProfile(PROFILE_ALERT, builtinFeatures())
	if err != nil {
		t.Fatal(err)
	}
	m := NewParamMapper(p, 0)
	rng := rand.New(rand.NewSource(2))

	cases := []struct {
		proto string
		want  int
		desc  string
	}{
		{PROTO_TCP, WAVE_SAW, "TCP uses the sawtooth"},
		{PROTO_UDP, WAVE_SQUARE, "UDP uses the square"},
		{PROTO_ICMP, WAVE_SAW, "ICMP uses the sawtooth"},
		{PROTO_OTHER, WAVE_SQUARE, "unclassified traffic falls back to default"},
		{"GRE", WAVE_SQUARE, "unlisted protocol falls back to default"},
	}

	for _, c := range cases {
		ev := m.Map(randomVector(rng, time.Unix(0, 0), c.proto))
		if ev.Waveform != c.want {
			t.Errorf("%s: waveform = %d, want %d", c.desc, ev.Waveform, c.want)
		}
	}
}

func TestApplyCurve_LogEndpoints(t *testing.T) {
	rule := MappingRule{Min: 200, Max: 800, Curve: CURVE_LOG}

	if got := applyCurve(rule, 0, nil); got != 200 {
		t.Errorf("log curve at 0 = %g, want 200", got)
	}
	if got := applyCurve(rule, 1, nil); got < 799.9 || got > 800.1 {
		t.Errorf("log curve at 1 = %g, want 800", got)
	}
	// Geometric midpoint, not arithmetic: sqrt(200*800) = 400.
	if got := applyCurve(rule, 0.5, nil); got < 399.9 || got > 400.1 {
		t.Errorf("log curve at 0.5 = %g, want 400", got)
	}
}

func TestApplyCurve_ScaleQuantization(t *testing.T) {
	t.Log("=== MUSICAL SCALE QUANTIZATION ===")
	t.Log("Scale-curve outputs must always be members of the profile's scale")

	scale := pentatonicScale(220, 880)
	rule := MappingRule{Min: 220, Max: 880, Curve: CURVE_SCALE}

	members := make(map[float32]bool, len(scale))
	for _, f := range scale {
		members[f] = true
	}

	for i := 0; i <= 100; i++ {
		in := float32(i) / 100
		got := applyCurve(rule, in, scale)
		if !members[got] {
			t.Fatalf("applyCurve(%g) = %g is not a scale note", in, got)
		}
	}
}

func TestQuantizeToScale_NearestNote(t *testing.T) {
	scale := []float32{100, 200, 400}

	cases := []struct {
		in   float32
		want float32
	}{
		{50, 100},  // below the scale snaps up to the lowest note
		{149, 100}, // closer to 100
		{151, 200}, // closer to 200
		{200, 200}, // exact note passes through
		{900, 400}, // above the scale snaps down to the highest note
	}
	for _, c := range cases {
		if got := quantizeToScale(c.in, scale); got != c.want {
			t.Errorf("quantizeToScale(%g) = %g, want %g", c.in, got, c.want)
		}
	}
}

func TestParamMapper_SmoothingConverges(t *testing.T) {
	t.Log("=== PARAMETER SMOOTHING ===")
	t.Log("Consecutive events on the same parameter approach the target without overshoot")

	p, err := LoadProfile(PROFILE_NATURE, builtinFeatures())
	if err != nil {
		t.Fatal(err)
	}
	m := NewParamMapper(p, 50)

	at := time.Unix(0, 0)
	low := FeatureVector{
		Timestamp: at,
		Protocol:  PROTO_TCP,
		Values:    map[string]float32{FEAT_PACKET_SIZE: 0.0},
	}
	first := m.Map(low)
	if first.Frequency != 300 {
		t.Fatalf("initial frequency = %g, want the rule minimum 300", first.Frequency)
	}

	// A jump to full-size packets 10ms later must move toward 1200Hz but
	// not arrive: tau is 50ms.
	high := FeatureVector{
		Timestamp: at.Add(10 * time.Millisecond),
		Protocol:  PROTO_TCP,
		Values:    map[string]float32{FEAT_PACKET_SIZE: 1.0},
	}
	second := m.Map(high)
	if second.Frequency <= 300 || second.Frequency >= 1200 {
		t.Fatalf("smoothed frequency = %g, want strictly between 300 and 1200", second.Frequency)
	}

	// Repeated full-size events converge on the target.
	freq := second.Frequency
	for i := 0; i < 100; i++ {
		high.Timestamp = high.Timestamp.Add(50 * time.Millisecond)
		ev := m.Map(high)
		if ev.Frequency < freq-0.01 {
			t.Fatalf("smoothing moved away from target: %g after %g", ev.Frequency, freq)
		}
		freq = ev.Frequency
	}
	if freq < 1199 {
		t.Errorf("frequency converged to %g, want ~1200", freq)
	}
}

func TestParamMapper_SetProfileClearsSmoothing(t *testing.T) {
	features := builtinFeatures()
	p1, _ := LoadProfile(PROFILE_NATURE, features)
	p2, _ := LoadProfile(PROFILE_ALERT, features)

	m := NewParamMapper(p1, 50)
	at := time.Unix(0, 0)
	m.Map(FeatureVector{Timestamp: at, Protocol: PROTO_TCP,
		Values: map[string]float32{FEAT_PACKET_SIZE: 0.0}})

	m.SetProfile(p2)

	// First event after the switch starts clean: no pull toward the old
	// profile's history.
	ev := m.Map(FeatureVector{Timestamp: at.Add(time.Millisecond), Protocol: PROTO_TCP,
		Values: map[string]float32{FEAT_PACKET_SIZE: 1.0}})
	if ev.Frequency != 3000 {
		t.Errorf("post-switch frequency = %g, want unsmoothed 3000", ev.Frequency)
	}
}
