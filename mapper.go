// mapper.go - Feature vector to synthesis parameter mapping

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"math"
	"time"
)

// Mapper defaults when a profile has no rule for a parameter.
const (
	DEFAULT_FREQUENCY = 440.0
	DEFAULT_AMPLITUDE = 0.5
	DEFAULT_DURATION  = 0.1
	DEFAULT_PAN       = 0.5
)

// ParameterEvent is one mapped, ready-to-synthesize instruction. It is
// bound to the profile that produced it and never re-mapped after a
// profile switch.
type ParameterEvent struct {
	When         time.Time
	Profile      string
	Frequency    float32 // Hz
	Amplitude    float32 // 0..1
	Duration     float32 // seconds of held gate before release
	Pan          float32 // 0 left .. 1 right
	FilterCutoff float32 // Hz, modifies the patch's filter stage, -1 = unmapped
	EffectMix    float32 // wet mix modifier for the patch's reverb, -1 = unmapped
	Waveform     int
}

// smoothState carries per-parameter exponential smoothing history.
type smoothState struct {
	value float32
	last  time.Time
	init  bool
}

// ParamMapper converts normalized feature vectors into parameter events
// under the active profile. Stateless aside from per-parameter smoothing,
// which exists to keep the same feature dimension from jumping audibly
// between consecutive events.
type ParamMapper struct {
	profile *Profile
	tau     float32 // smoothing time constant, seconds; <= 0 disables
	smooth  [PARAM_EFFECT_MIX + 1]smoothState
}

func NewParamMapper(p *Profile, tauMS float32) *ParamMapper {
	return &ParamMapper{profile: p, tau: tauMS / 1000.0}
}

// Profile returns the mapper's active profile.
func (m *ParamMapper) Profile() *Profile { return m.profile }

// SetProfile swaps the active profile reference and clears smoothing
// history so the new parameter space starts clean.
func (m *ParamMapper) SetProfile(p *Profile) {
	m.profile = p
	m.smooth = [PARAM_EFFECT_MIX + 1]smoothState{}
}

// Map converts one feature vector into a ParameterEvent. Out-of-range
// feature inputs are clamped, never rejected; every output value lies
// within its rule's declared [Min,Max].
func (m *ParamMapper) Map(fv FeatureVector) ParameterEvent {
	p := m.profile
	ev := ParameterEvent{
		When:         fv.Timestamp,
		Profile:      p.Name,
		Frequency:    DEFAULT_FREQUENCY,
		Amplitude:    DEFAULT_AMPLITUDE,
		Duration:     DEFAULT_DURATION,
		Pan:          DEFAULT_PAN,
		FilterCutoff: -1,
		EffectMix:    -1,
	}

	for _, rule := range p.Rules {
		in := clamp01(fv.Values[rule.Feature])
		out := applyCurve(rule, in, p.Scale)
		out = m.smoothParam(rule.Param, out, fv.Timestamp)
		// Smoothing interpolates between in-range values, so out stays
		// inside [Min,Max]; clamp anyway to keep the contract explicit.
		out = clampRange(out, rule.Min, rule.Max)

		switch rule.Param {
		case PARAM_FREQUENCY:
			ev.Frequency = out
		case PARAM_AMPLITUDE:
			ev.Amplitude = out
		case PARAM_DURATION:
			ev.Duration = out
		case PARAM_PAN:
			ev.Pan = out
		case PARAM_FILTER_CUTOFF:
			ev.FilterCutoff = out
		case PARAM_EFFECT_MIX:
			ev.EffectMix = out
		}
	}

	wave, ok := p.Patch.Waveforms[fv.Protocol]
	if !ok {
		wave = p.Patch.Waveforms["default"]
	}
	ev.Waveform = wave

	return ev
}

// applyCurve maps a normalized input through the rule's curve into the
// rule's declared range.
func applyCurve(rule MappingRule, in float32, scale []float32) float32 {
	switch rule.Curve {
	case CURVE_LOG:
		// Geometric interpolation: equal input steps give equal pitch
		// ratios. Validation guarantees Min > 0.
		return rule.Min * float32(math.Pow(float64(rule.Max/rule.Min), float64(in)))
	case CURVE_SCALE:
		v := rule.Min + in*(rule.Max-rule.Min)
		return quantizeToScale(v, scale)
	default:
		return rule.Min + in*(rule.Max-rule.Min)
	}
}

// quantizeToScale snaps a frequency to the nearest scale note. The scale
// is sorted ascending, so a binary search narrows to two candidates.
func quantizeToScale(freq float32, scale []float32) float32 {
	if len(scale) == 0 {
		return freq
	}
	lo, hi := 0, len(scale)
	for lo < hi {
		mid := (lo + hi) / 2
		if scale[mid] < freq {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return scale[0]
	}
	if lo == len(scale) {
		return scale[len(scale)-1]
	}
	if freq-scale[lo-1] <= scale[lo]-freq {
		return scale[lo-1]
	}
	return scale[lo]
}

// smoothParam applies exponential smoothing per target parameter. The
// effective alpha follows the gap since the previous event for the same
// parameter, so slow traffic converges and bursts stay coherent.
func (m *ParamMapper) smoothParam(param int, v float32, at time.Time) float32 {
	if m.tau <= 0 {
		return v
	}
	st := &m.smooth[param]
	if !st.init {
		st.value = v
		st.last = at
		st.init = true
		return v
	}
	dt := float32(at.Sub(st.last).Seconds())
	if dt < 0 {
		dt = 0
	}
	alpha := 1 - float32(math.Exp(float64(-dt/m.tau)))
	st.value += alpha * (v - st.value)
	st.last = at
	return st.value
}

func clampRange(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
