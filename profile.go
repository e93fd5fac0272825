// profile.go - Sonification profiles, mapping rules and synthesis patches

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"errors"
	"fmt"
	"math"
)

// Oscillator types. Square through noise follow the engine's channel
// ordering; saw and filtered noise extend it for the sonification patches.
const (
	WAVE_SQUARE = iota
	WAVE_TRIANGLE
	WAVE_SINE
	WAVE_NOISE
	WAVE_SAW
	WAVE_FILTERED_NOISE
)

// Mapping curves.
const (
	CURVE_LINEAR = iota
	CURVE_LOG
	CURVE_SCALE // quantize to the profile's musical scale
)

// Synthesis parameters targeted by mapping rules.
const (
	PARAM_FREQUENCY = iota
	PARAM_AMPLITUDE
	PARAM_DURATION
	PARAM_PAN
	PARAM_FILTER_CUTOFF
	PARAM_EFFECT_MIX
)

// Effect types in a patch chain.
const (
	EFFECT_REVERB = iota
	EFFECT_LOWPASS
	EFFECT_HIGHPASS
	EFFECT_BANDPASS
	EFFECT_COMPRESSOR
)

// Built-in profile names.
const (
	PROFILE_AMBIENT  = "ambient"
	PROFILE_MUSICAL  = "musical"
	PROFILE_NATURE   = "nature"
	PROFILE_ABSTRACT = "abstract"
	PROFILE_ALERT    = "alert"
)

// Configuration error sentinels. All are fatal at load time; nothing in
// this taxonomy surfaces during steady-state processing.
var (
	ErrUnknownProfile  = errors.New("unknown profile")
	ErrUnknownFeature  = errors.New("mapping rule references unknown feature")
	ErrUnknownParam    = errors.New("mapping rule references unknown parameter")
	ErrUnknownCurve    = errors.New("mapping rule references unknown curve")
	ErrUnknownWaveform = errors.New("patch references unknown waveform")
	ErrUnknownEffect   = errors.New("patch references unknown effect type")
	ErrBadRange        = errors.New("invalid mapping range (min >= max)")
	ErrBadEnvelope     = errors.New("invalid envelope time")
)

// MappingRule binds one feature dimension to one synthesis parameter.
type MappingRule struct {
	Feature string
	Param   int
	Min     float32
	Max     float32
	Curve   int
}

// EnvelopeSpec holds ADSR times in milliseconds plus the sustain level.
type EnvelopeSpec struct {
	AttackMS  float32
	DecayMS   float32
	Sustain   float32
	ReleaseMS float32
}

// EffectConfig is one entry in a patch's effect chain. Only the fields
// meaningful for Type are read.
type EffectConfig struct {
	Type      int
	Mix       float32 // reverb dry/wet
	DecayS    float32 // reverb tail length, seconds
	Cutoff    float32 // low/highpass cutoff, Hz
	Center    float32 // bandpass center, Hz
	Q         float32 // bandpass resonance
	Threshold float32 // compressor threshold, dBFS
	Ratio     float32 // compressor ratio
}

// Patch is the synthesis configuration bound to a profile: which oscillator
// answers each protocol class, the envelope, and the ordered effect chain.
type Patch struct {
	Waveforms map[string]int // protocol class -> oscillator; "default" required
	Envelope  EnvelopeSpec
	Effects   []EffectConfig
	AmpScale  float32
}

// Profile is a named, immutable bundle of mapping rules and a patch.
// Profiles are validated once at load and never mutated afterwards;
// switching the active profile swaps a reference.
type Profile struct {
	Name  string
	Rules []MappingRule
	Patch Patch
	Scale []float32 // musical scale frequencies for CURVE_SCALE, sorted
}

// pentatonicScale generates pentatonic frequencies across [minFreq, maxFreq],
// octave by octave over intervals 0,2,4,7,9 semitones.
func pentatonicScale(minFreq, maxFreq float32) []float32 {
	intervals := []float64{0, 2, 4, 7, 9}
	var freqs []float32
	for base := float64(minFreq); base <= float64(maxFreq); base *= 2 {
		for _, semis := range intervals {
			f := base * math.Pow(2, semis/12)
			if f <= float64(maxFreq) {
				freqs = append(freqs, float32(f))
			}
		}
	}
	return freqs
}

// BuiltinProfiles returns the five built-in profiles keyed by name. Each
// call builds fresh copies so callers can never alias shared rule slices.
func BuiltinProfiles() map[string]*Profile {
	return map[string]*Profile{
		PROFILE_AMBIENT: {
			Name: PROFILE_AMBIENT,
			Rules: []MappingRule{
				{Feature: FEAT_PACKET_SIZE, Param: PARAM_FREQUENCY, Min: 200, Max: 800, Curve: CURVE_LOG},
				{Feature: FEAT_PORT_RANGE, Param: PARAM_AMPLITUDE, Min: 0.4, Max: 0.7, Curve: CURVE_LINEAR},
				{Feature: FEAT_ARRIVAL_GAP, Param: PARAM_DURATION, Min: 0.2, Max: 0.4, Curve: CURVE_LINEAR},
				{Feature: FEAT_DIRECTION, Param: PARAM_PAN, Min: 0.2, Max: 0.8, Curve: CURVE_LINEAR},
			},
			Patch: Patch{
				Waveforms: map[string]int{
					PROTO_TCP:  WAVE_FILTERED_NOISE,
					PROTO_UDP:  WAVE_SINE,
					PROTO_ICMP: WAVE_FILTERED_NOISE,
					"default":  WAVE_FILTERED_NOISE,
				},
				Envelope: EnvelopeSpec{AttackMS: 60, DecayMS: 120, Sustain: 0.7, ReleaseMS: 400},
				Effects: []EffectConfig{
					{Type: EFFECT_REVERB, Mix: 0.3, DecayS: 2.0},
					{Type: EFFECT_LOWPASS, Cutoff: 800},
				},
				AmpScale: 0.6,
			},
		},
		PROFILE_MUSICAL: {
			Name: PROFILE_MUSICAL,
			Rules: []MappingRule{
				{Feature: FEAT_PACKET_SIZE, Param: PARAM_FREQUENCY, Min: 220, Max: 880, Curve: CURVE_SCALE},
				{Feature: FEAT_PORT_RANGE, Param: PARAM_AMPLITUDE, Min: 0.5, Max: 0.8, Curve: CURVE_LINEAR},
				{Feature: FEAT_ARRIVAL_GAP, Param: PARAM_DURATION, Min: 0.15, Max: 0.3, Curve: CURVE_LINEAR},
				{Feature: FEAT_DIRECTION, Param: PARAM_PAN, Min: 0.25, Max: 0.75, Curve: CURVE_LINEAR},
			},
			Patch: Patch{
				Waveforms: map[string]int{
					PROTO_TCP:  WAVE_SINE,
					PROTO_UDP:  WAVE_TRIANGLE,
					PROTO_ICMP: WAVE_SINE,
					"default":  WAVE_SINE,
				},
				Envelope: EnvelopeSpec{AttackMS: 8, DecayMS: 80, Sustain: 0.6, ReleaseMS: 250},
				Effects: []EffectConfig{
					{Type: EFFECT_REVERB, Mix: 0.2, DecayS: 1.0},
					{Type: EFFECT_COMPRESSOR, Threshold: -20, Ratio: 4.0},
				},
				AmpScale: 0.7,
			},
			Scale: pentatonicScale(220, 880),
		},
		PROFILE_NATURE: {
			Name: PROFILE_NATURE,
			Rules: []MappingRule{
				{Feature: FEAT_PACKET_SIZE, Param: PARAM_FREQUENCY, Min: 300, Max: 1200, Curve: CURVE_LINEAR},
				{Feature: FEAT_PORT_RANGE, Param: PARAM_AMPLITUDE, Min: 0.4, Max: 0.7, Curve: CURVE_LINEAR},
				{Feature: FEAT_ARRIVAL_GAP, Param: PARAM_DURATION, Min: 0.3, Max: 0.5, Curve: CURVE_LINEAR},
				{Feature: FEAT_ARRIVAL_GAP, Param: PARAM_EFFECT_MIX, Min: 0.2, Max: 0.5, Curve: CURVE_LINEAR},
			},
			Patch: Patch{
				Waveforms: map[string]int{
					PROTO_TCP:  WAVE_NOISE,
					PROTO_UDP:  WAVE_FILTERED_NOISE,
					PROTO_ICMP: WAVE_NOISE,
					"default":  WAVE_NOISE,
				},
				Envelope: EnvelopeSpec{AttackMS: 40, DecayMS: 150, Sustain: 0.5, ReleaseMS: 350},
				Effects: []EffectConfig{
					{Type: EFFECT_BANDPASS, Center: 500, Q: 1.0},
					{Type: EFFECT_REVERB, Mix: 0.4, DecayS: 1.5},
				},
				AmpScale: 0.5,
			},
		},
		PROFILE_ABSTRACT: {
			Name: PROFILE_ABSTRACT,
			Rules: []MappingRule{
				{Feature: FEAT_PACKET_SIZE, Param: PARAM_FREQUENCY, Min: 500, Max: 2000, Curve: CURVE_LOG},
				{Feature: FEAT_PORT_RANGE, Param: PARAM_AMPLITUDE, Min: 0.5, Max: 0.8, Curve: CURVE_LINEAR},
				{Feature: FEAT_ARRIVAL_GAP, Param: PARAM_DURATION, Min: 0.1, Max: 0.3, Curve: CURVE_LINEAR},
			},
			Patch: Patch{
				Waveforms: map[string]int{
					PROTO_TCP:  WAVE_SINE,
					PROTO_UDP:  WAVE_SQUARE,
					PROTO_ICMP: WAVE_SINE,
					"default":  WAVE_SINE,
				},
				Envelope: EnvelopeSpec{AttackMS: 4, DecayMS: 60, Sustain: 0.4, ReleaseMS: 120},
				Effects: []EffectConfig{
					{Type: EFFECT_HIGHPASS, Cutoff: 200},
					{Type: EFFECT_COMPRESSOR, Threshold: -15, Ratio: 3.0},
				},
				AmpScale: 0.4,
			},
		},
		PROFILE_ALERT: {
			Name: PROFILE_ALERT,
			Rules: []MappingRule{
				{Feature: FEAT_PACKET_SIZE, Param: PARAM_FREQUENCY, Min: 300, Max: 3000, Curve: CURVE_LINEAR},
				{Feature: FEAT_PORT_RANGE, Param: PARAM_AMPLITUDE, Min: 0.6, Max: 0.9, Curve: CURVE_LINEAR},
				{Feature: FEAT_ARRIVAL_GAP, Param: PARAM_DURATION, Min: 0.1, Max: 0.2, Curve: CURVE_LINEAR},
			},
			Patch: Patch{
				Waveforms: map[string]int{
					PROTO_TCP:  WAVE_SAW,
					PROTO_UDP:  WAVE_SQUARE,
					PROTO_ICMP: WAVE_SAW,
					"default":  WAVE_SQUARE,
				},
				Envelope: EnvelopeSpec{AttackMS: 2, DecayMS: 40, Sustain: 0.8, ReleaseMS: 80},
				Effects: []EffectConfig{
					{Type: EFFECT_COMPRESSOR, Threshold: -10, Ratio: 2.0},
				},
				AmpScale: 0.8,
			},
		},
	}
}

// LoadProfile resolves a built-in profile by name and validates it against
// the feature vocabulary. Unknown names are a fatal configuration error.
func LoadProfile(name string, features []string) (*Profile, error) {
	p, ok := BuiltinProfiles()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	if err := p.Validate(features); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the profile against the error taxonomy's configuration
// class. It runs once at load; the mapper and engine assume a validated
// profile and never re-check.
func (p *Profile) Validate(features []string) error {
	known := make(map[string]bool, len(features))
	for _, f := range features {
		known[f] = true
	}

	for i, r := range p.Rules {
		if !known[r.Feature] {
			return fmt.Errorf("profile %q rule %d: %w: %q", p.Name, i, ErrUnknownFeature, r.Feature)
		}
		if r.Min >= r.Max {
			return fmt.Errorf("profile %q rule %d: %w: [%g,%g]", p.Name, i, ErrBadRange, r.Min, r.Max)
		}
		if r.Param < PARAM_FREQUENCY || r.Param > PARAM_EFFECT_MIX {
			return fmt.Errorf("profile %q rule %d: %w: %d", p.Name, i, ErrUnknownParam, r.Param)
		}
		switch r.Curve {
		case CURVE_LINEAR, CURVE_SCALE:
		case CURVE_LOG:
			if r.Min <= 0 {
				return fmt.Errorf("profile %q rule %d: %w: log curve needs min > 0", p.Name, i, ErrBadRange)
			}
		default:
			return fmt.Errorf("profile %q rule %d: %w: %d", p.Name, i, ErrUnknownCurve, r.Curve)
		}
		if r.Curve == CURVE_SCALE && r.Param == PARAM_FREQUENCY && len(p.Scale) == 0 {
			return fmt.Errorf("profile %q rule %d: %w: scale curve without a musical scale", p.Name, i, ErrUnknownCurve)
		}
	}

	if _, ok := p.Patch.Waveforms["default"]; !ok {
		return fmt.Errorf("profile %q: %w: missing default", p.Name, ErrUnknownWaveform)
	}
	for proto, w := range p.Patch.Waveforms {
		if w < WAVE_SQUARE || w > WAVE_FILTERED_NOISE {
			return fmt.Errorf("profile %q: %w: %q -> %d", p.Name, ErrUnknownWaveform, proto, w)
		}
	}

	env := p.Patch.Envelope
	if env.AttackMS < 0 || env.DecayMS < 0 || env.ReleaseMS < 0 || env.Sustain < 0 || env.Sustain > 1 {
		return fmt.Errorf("profile %q: %w", p.Name, ErrBadEnvelope)
	}

	for i, fx := range p.Patch.Effects {
		switch fx.Type {
		case EFFECT_REVERB:
			if fx.Mix < 0 || fx.Mix > 1 || fx.DecayS <= 0 {
				return fmt.Errorf("profile %q effect %d: %w: reverb", p.Name, i, ErrUnknownEffect)
			}
		case EFFECT_LOWPASS, EFFECT_HIGHPASS:
			if fx.Cutoff <= 0 {
				return fmt.Errorf("profile %q effect %d: %w: cutoff", p.Name, i, ErrUnknownEffect)
			}
		case EFFECT_BANDPASS:
			if fx.Center <= 0 || fx.Q <= 0 {
				return fmt.Errorf("profile %q effect %d: %w: bandpass", p.Name, i, ErrUnknownEffect)
			}
		case EFFECT_COMPRESSOR:
			if fx.Ratio < 1 {
				return fmt.Errorf("profile %q effect %d: %w: compressor ratio", p.Name, i, ErrUnknownEffect)
			}
		default:
			return fmt.Errorf("profile %q effect %d: %w: %d", p.Name, i, ErrUnknownEffect, fx.Type)
		}
	}

	return nil
}
