// profile_lua.go - User-defined profiles loaded from Lua scripts

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Name tables for the script surface. Scripts speak strings; the loader
// resolves them to the closed constant sets and then runs the same
// validation as the built-ins, so a bad script fails at load time exactly
// like a bad built-in would.
var (
	luaWaveforms = map[string]int{
		"square":         WAVE_SQUARE,
		"triangle":       WAVE_TRIANGLE,
		"sine":           WAVE_SINE,
		"noise":          WAVE_NOISE,
		"sawtooth":       WAVE_SAW,
		"filtered_noise": WAVE_FILTERED_NOISE,
	}
	luaCurves = map[string]int{
		"linear": CURVE_LINEAR,
		"log":    CURVE_LOG,
		"scale":  CURVE_SCALE,
	}
	luaParams = map[string]int{
		"frequency":     PARAM_FREQUENCY,
		"amplitude":     PARAM_AMPLITUDE,
		"duration":      PARAM_DURATION,
		"pan":           PARAM_PAN,
		"filter_cutoff": PARAM_FILTER_CUTOFF,
		"effect_mix":    PARAM_EFFECT_MIX,
	}
	luaEffects = map[string]int{
		"reverb":     EFFECT_REVERB,
		"lowpass":    EFFECT_LOWPASS,
		"highpass":   EFFECT_HIGHPASS,
		"bandpass":   EFFECT_BANDPASS,
		"compressor": EFFECT_COMPRESSOR,
	}
)

// LoadLuaProfile executes a profile script and converts its returned
// table into a validated Profile. The script surface mirrors the built-in
// profile structure:
//
//	return {
//	  name = "sonar",
//	  rules = {
//	    {feature="packet_size", param="frequency", min=200, max=1600, curve="log"},
//	  },
//	  waveforms = {TCP="sine", default="triangle"},
//	  envelope = {attack=10, decay=80, sustain=0.6, release=200},
//	  effects = {
//	    {type="reverb", mix=0.3, decay=1.5},
//	  },
//	  amp_scale = 0.6,
//	  scale = {min=220, max=880},  -- optional pentatonic quantization range
//	}
func LoadLuaProfile(path string, features []string) (*Profile, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("lua profile %s: %w", path, err)
	}

	ret := L.Get(-1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua profile %s: script must return a table, got %s", path, ret.Type())
	}

	p, err := profileFromLua(tbl)
	if err != nil {
		return nil, fmt.Errorf("lua profile %s: %w", path, err)
	}
	if err := p.Validate(features); err != nil {
		return nil, err
	}
	return p, nil
}

func profileFromLua(tbl *lua.LTable) (*Profile, error) {
	p := &Profile{
		Name: luaString(tbl, "name", "custom"),
		Patch: Patch{
			Waveforms: map[string]int{"default": WAVE_SINE},
			Envelope:  EnvelopeSpec{AttackMS: 10, DecayMS: 80, Sustain: 0.6, ReleaseMS: 200},
			AmpScale:  luaNumber(tbl, "amp_scale", 0.6),
		},
	}

	rules, err := luaRules(tbl)
	if err != nil {
		return nil, err
	}
	p.Rules = rules

	if wf, ok := tbl.RawGetString("waveforms").(*lua.LTable); ok {
		waves := make(map[string]int)
		var werr error
		wf.ForEach(func(k, v lua.LValue) {
			name := lua.LVAsString(v)
			w, ok := luaWaveforms[name]
			if !ok {
				werr = fmt.Errorf("%w: %q", ErrUnknownWaveform, name)
				return
			}
			waves[lua.LVAsString(k)] = w
		})
		if werr != nil {
			return nil, werr
		}
		if _, ok := waves["default"]; !ok {
			waves["default"] = WAVE_SINE
		}
		p.Patch.Waveforms = waves
	}

	if env, ok := tbl.RawGetString("envelope").(*lua.LTable); ok {
		p.Patch.Envelope = EnvelopeSpec{
			AttackMS:  luaNumber(env, "attack", 10),
			DecayMS:   luaNumber(env, "decay", 80),
			Sustain:   luaNumber(env, "sustain", 0.6),
			ReleaseMS: luaNumber(env, "release", 200),
		}
	}

	effects, err := luaEffectChain(tbl)
	if err != nil {
		return nil, err
	}
	p.Patch.Effects = effects

	if sc, ok := tbl.RawGetString("scale").(*lua.LTable); ok {
		min := luaNumber(sc, "min", 220)
		max := luaNumber(sc, "max", 880)
		if min <= 0 || min >= max {
			return nil, fmt.Errorf("%w: scale [%g,%g]", ErrBadRange, min, max)
		}
		p.Scale = pentatonicScale(min, max)
	}

	return p, nil
}

func luaRules(tbl *lua.LTable) ([]MappingRule, error) {
	rt, ok := tbl.RawGetString("rules").(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: profile has no rules table", ErrUnknownFeature)
	}

	var rules []MappingRule
	var rerr error
	rt.ForEach(func(_, v lua.LValue) {
		if rerr != nil {
			return
		}
		rv, ok := v.(*lua.LTable)
		if !ok {
			rerr = fmt.Errorf("rule entries must be tables")
			return
		}
		param, ok := luaParams[luaString(rv, "param", "")]
		if !ok {
			rerr = fmt.Errorf("%w: %q", ErrUnknownParam, luaString(rv, "param", ""))
			return
		}
		curveName := luaString(rv, "curve", "linear")
		curve, ok := luaCurves[curveName]
		if !ok {
			rerr = fmt.Errorf("%w: %q", ErrUnknownCurve, curveName)
			return
		}
		rules = append(rules, MappingRule{
			Feature: luaString(rv, "feature", ""),
			Param:   param,
			Min:     luaNumber(rv, "min", 0),
			Max:     luaNumber(rv, "max", 0),
			Curve:   curve,
		})
	})
	return rules, rerr
}

func luaEffectChain(tbl *lua.LTable) ([]EffectConfig, error) {
	et, ok := tbl.RawGetString("effects").(*lua.LTable)
	if !ok {
		return nil, nil
	}

	var effects []EffectConfig
	var eerr error
	et.ForEach(func(_, v lua.LValue) {
		if eerr != nil {
			return
		}
		ev, ok := v.(*lua.LTable)
		if !ok {
			eerr = fmt.Errorf("effect entries must be tables")
			return
		}
		typeName := luaString(ev, "type", "")
		fxType, ok := luaEffects[typeName]
		if !ok {
			eerr = fmt.Errorf("%w: %q", ErrUnknownEffect, typeName)
			return
		}
		effects = append(effects, EffectConfig{
			Type:      fxType,
			Mix:       luaNumber(ev, "mix", 0.3),
			DecayS:    luaNumber(ev, "decay", 1.0),
			Cutoff:    luaNumber(ev, "cutoff", 1000),
			Center:    luaNumber(ev, "center", 500),
			Q:         luaNumber(ev, "q", 1.0),
			Threshold: luaNumber(ev, "threshold", -20),
			Ratio:     luaNumber(ev, "ratio", 4.0),
		})
	})
	return effects, eerr
}

func luaString(tbl *lua.LTable, key, def string) string {
	v := tbl.RawGetString(key)
	if v == lua.LNil {
		return def
	}
	return lua.LVAsString(v)
}

func luaNumber(tbl *lua.LTable, key string, def float32) float32 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float32(n)
	}
	return def
}
